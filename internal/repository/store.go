package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-kivik/kivik/v4"
)

// ErrNotFound is returned when a record is absent from the local replica.
var ErrNotFound = errors.New("not found in local replica")

// currentRev fetches the CouchDB revision of an existing doc so a Put acts
// as an upsert. An empty string means the doc does not exist yet.
func currentRev(db *kivik.DB, docID string) string {
	var existing struct {
		Rev string `json:"_rev"`
	}
	if err := db.Get(context.Background(), docID).ScanDoc(&existing); err != nil {
		return ""
	}
	return existing.Rev
}

func deleteDoc(db *kivik.DB, docID string) error {
	rev := currentRev(db, docID)
	if rev == "" {
		return nil
	}
	if _, err := db.Delete(context.Background(), docID, rev); err != nil {
		return fmt.Errorf("failed to delete %s: %w", docID, err)
	}
	return nil
}
