package repository

import (
	"context"
	"fmt"

	"github.com/go-kivik/kivik/v4"

	"github.com/rghv234/wolffia/internal/domain"
)

// ConflictStore holds pending conflict records, keyed by the conflicted
// document's id so at most one record exists per document.
type ConflictStore interface {
	Get(documentID domain.Identifier) (*domain.ConflictRecord, error)
	Put(record *domain.ConflictRecord) error
	Delete(documentID domain.Identifier) error
	ListPending() ([]*domain.ConflictRecord, error)
}

type conflictStore struct {
	client *kivik.Client
	dbName string
}

func NewConflictStore(client *kivik.Client, dbName string) ConflictStore {
	return &conflictStore{client: client, dbName: dbName}
}

type conflictDoc struct {
	Rev  string `json:"_rev,omitempty"`
	Kind string `json:"kind"`
	domain.ConflictRecord
}

func conflictDocID(id domain.Identifier) string {
	return fmt.Sprintf("conflict:%s", id.Key())
}

func (r *conflictStore) Get(documentID domain.Identifier) (*domain.ConflictRecord, error) {
	db := r.client.DB(r.dbName)

	var wrapped conflictDoc
	if err := db.Get(context.Background(), conflictDocID(documentID)).ScanDoc(&wrapped); err != nil {
		if kivik.HTTPStatus(err) == 404 {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get conflict for %s: %w", documentID, err)
	}

	return &wrapped.ConflictRecord, nil
}

func (r *conflictStore) Put(record *domain.ConflictRecord) error {
	db := r.client.DB(r.dbName)
	docID := conflictDocID(record.DocumentID)

	wrapped := conflictDoc{Kind: "conflict", ConflictRecord: *record}
	wrapped.Rev = currentRev(db, docID)

	if _, err := db.Put(context.Background(), docID, wrapped); err != nil {
		return fmt.Errorf("failed to put conflict for %s: %w", record.DocumentID, err)
	}

	return nil
}

func (r *conflictStore) Delete(documentID domain.Identifier) error {
	return deleteDoc(r.client.DB(r.dbName), conflictDocID(documentID))
}

func (r *conflictStore) ListPending() ([]*domain.ConflictRecord, error) {
	db := r.client.DB(r.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"kind":   "conflict",
			"status": domain.ConflictPending,
		},
	}

	rows := db.Find(context.Background(), query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}
	defer rows.Close()

	var records []*domain.ConflictRecord
	for rows.Next() {
		var wrapped conflictDoc
		if err := rows.ScanDoc(&wrapped); err != nil {
			continue
		}
		record := wrapped.ConflictRecord
		records = append(records, &record)
	}

	return records, nil
}
