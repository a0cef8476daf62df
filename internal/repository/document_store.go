package repository

import (
	"context"
	"fmt"

	"github.com/go-kivik/kivik/v4"

	"github.com/rghv234/wolffia/internal/domain"
)

// DocumentStore is the documents collection of the local replica.
type DocumentStore interface {
	Get(id domain.Identifier) (*domain.Document, error)
	Put(doc *domain.Document) error
	Delete(id domain.Identifier) error
	List() ([]*domain.Document, error)
	ListByContainer(containerID domain.Identifier) ([]*domain.Document, error)
	// ReplaceAll clears the collection and writes the given set, so stale
	// entries never survive a successful full reload.
	ReplaceAll(docs []*domain.Document) error
}

type documentStore struct {
	client *kivik.Client
	dbName string
}

func NewDocumentStore(client *kivik.Client, dbName string) DocumentStore {
	return &documentStore{client: client, dbName: dbName}
}

type documentDoc struct {
	Rev  string `json:"_rev,omitempty"`
	Kind string `json:"kind"`
	domain.Document
}

func documentDocID(id domain.Identifier) string {
	return fmt.Sprintf("doc:%s", id.Key())
}

func (r *documentStore) Get(id domain.Identifier) (*domain.Document, error) {
	db := r.client.DB(r.dbName)

	var wrapped documentDoc
	if err := db.Get(context.Background(), documentDocID(id)).ScanDoc(&wrapped); err != nil {
		if kivik.HTTPStatus(err) == 404 {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document %s: %w", id, err)
	}

	return &wrapped.Document, nil
}

func (r *documentStore) Put(doc *domain.Document) error {
	db := r.client.DB(r.dbName)
	docID := documentDocID(doc.ID)

	wrapped := documentDoc{Kind: "document", Document: *doc}
	wrapped.Rev = currentRev(db, docID)

	if _, err := db.Put(context.Background(), docID, wrapped); err != nil {
		return fmt.Errorf("failed to put document %s: %w", doc.ID, err)
	}

	return nil
}

func (r *documentStore) Delete(id domain.Identifier) error {
	return deleteDoc(r.client.DB(r.dbName), documentDocID(id))
}

func (r *documentStore) List() ([]*domain.Document, error) {
	return r.find(map[string]interface{}{"kind": "document"})
}

func (r *documentStore) ListByContainer(containerID domain.Identifier) ([]*domain.Document, error) {
	return r.find(map[string]interface{}{
		"kind":         "document",
		"container_id": containerID,
	})
}

func (r *documentStore) ReplaceAll(docs []*domain.Document) error {
	existing, err := r.List()
	if err != nil {
		return err
	}
	for _, doc := range existing {
		if err := r.Delete(doc.ID); err != nil {
			return err
		}
	}
	for _, doc := range docs {
		if err := r.Put(doc); err != nil {
			return err
		}
	}
	return nil
}

func (r *documentStore) find(selector map[string]interface{}) ([]*domain.Document, error) {
	db := r.client.DB(r.dbName)

	rows := db.Find(context.Background(), map[string]interface{}{"selector": selector})
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		var wrapped documentDoc
		if err := rows.ScanDoc(&wrapped); err != nil {
			continue
		}
		doc := wrapped.Document
		docs = append(docs, &doc)
	}

	return docs, nil
}
