package repository

import (
	"context"
	"fmt"

	"github.com/go-kivik/kivik/v4"

	"github.com/rghv234/wolffia/internal/domain"
)

// SettingsStore persists the single user-preferences record.
type SettingsStore interface {
	Get() (*domain.Settings, error)
	Put(settings *domain.Settings) error
}

type settingsStore struct {
	client *kivik.Client
	dbName string
}

func NewSettingsStore(client *kivik.Client, dbName string) SettingsStore {
	return &settingsStore{client: client, dbName: dbName}
}

const settingsDocID = "settings"

type settingsDoc struct {
	Rev  string `json:"_rev,omitempty"`
	Kind string `json:"kind"`
	domain.Settings
}

func (r *settingsStore) Get() (*domain.Settings, error) {
	db := r.client.DB(r.dbName)

	var wrapped settingsDoc
	if err := db.Get(context.Background(), settingsDocID).ScanDoc(&wrapped); err != nil {
		if kivik.HTTPStatus(err) == 404 {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	return &wrapped.Settings, nil
}

func (r *settingsStore) Put(settings *domain.Settings) error {
	db := r.client.DB(r.dbName)

	wrapped := settingsDoc{Kind: "settings", Settings: *settings}
	wrapped.Rev = currentRev(db, settingsDocID)

	if _, err := db.Put(context.Background(), settingsDocID, wrapped); err != nil {
		return fmt.Errorf("failed to put settings: %w", err)
	}

	return nil
}
