package repository

import (
	"context"
	"fmt"

	"github.com/go-kivik/kivik/v4"

	"github.com/rghv234/wolffia/internal/domain"
)

// ContainerStore is the containers collection of the local replica.
type ContainerStore interface {
	Get(id domain.Identifier) (*domain.Container, error)
	Put(container *domain.Container) error
	Delete(id domain.Identifier) error
	List() ([]*domain.Container, error)
	ReplaceAll(containers []*domain.Container) error
}

type containerStore struct {
	client *kivik.Client
	dbName string
}

func NewContainerStore(client *kivik.Client, dbName string) ContainerStore {
	return &containerStore{client: client, dbName: dbName}
}

type containerDoc struct {
	Rev  string `json:"_rev,omitempty"`
	Kind string `json:"kind"`
	domain.Container
}

func containerDocID(id domain.Identifier) string {
	return fmt.Sprintf("container:%s", id.Key())
}

func (r *containerStore) Get(id domain.Identifier) (*domain.Container, error) {
	db := r.client.DB(r.dbName)

	var wrapped containerDoc
	if err := db.Get(context.Background(), containerDocID(id)).ScanDoc(&wrapped); err != nil {
		if kivik.HTTPStatus(err) == 404 {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get container %s: %w", id, err)
	}

	return &wrapped.Container, nil
}

func (r *containerStore) Put(container *domain.Container) error {
	db := r.client.DB(r.dbName)
	docID := containerDocID(container.ID)

	wrapped := containerDoc{Kind: "container", Container: *container}
	wrapped.Rev = currentRev(db, docID)

	if _, err := db.Put(context.Background(), docID, wrapped); err != nil {
		return fmt.Errorf("failed to put container %s: %w", container.ID, err)
	}

	return nil
}

func (r *containerStore) Delete(id domain.Identifier) error {
	return deleteDoc(r.client.DB(r.dbName), containerDocID(id))
}

func (r *containerStore) List() ([]*domain.Container, error) {
	db := r.client.DB(r.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{"kind": "container"},
	}

	rows := db.Find(context.Background(), query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	defer rows.Close()

	var containers []*domain.Container
	for rows.Next() {
		var wrapped containerDoc
		if err := rows.ScanDoc(&wrapped); err != nil {
			continue
		}
		container := wrapped.Container
		containers = append(containers, &container)
	}

	return containers, nil
}

func (r *containerStore) ReplaceAll(containers []*domain.Container) error {
	existing, err := r.List()
	if err != nil {
		return err
	}
	for _, container := range existing {
		if err := r.Delete(container.ID); err != nil {
			return err
		}
	}
	for _, container := range containers {
		if err := r.Put(container); err != nil {
			return err
		}
	}
	return nil
}
