package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/go-kivik/kivik/v4"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rghv234/wolffia/internal/domain"
)

// PendingLog is the durable pending-operation set: target id to operation,
// at most one entry per target. It survives process restart so replay and
// conflict detection work after an offline restart.
type PendingLog interface {
	Get(targetID domain.Identifier) (*domain.PendingOperation, error)
	Put(op *domain.PendingOperation) error
	Delete(targetID domain.Identifier) error
	List() ([]*domain.PendingOperation, error)
}

// pendingSchema guards against malformed persisted entries. An entry that
// fails validation is dropped with a warning instead of crashing startup.
const pendingSchema = `{
	"type": "object",
	"required": ["target_id", "kind", "payload", "base_modified", "enqueued_at"],
	"properties": {
		"target_id": {"type": ["integer", "string"]},
		"kind": {"enum": ["update", "delete"]},
		"payload": {"type": "object"},
		"base_modified": {"type": "string"},
		"enqueued_at": {"type": "string"}
	}
}`

type pendingLog struct {
	client *kivik.Client
	dbName string
	schema *jsonschema.Schema
}

func NewPendingLog(client *kivik.Client, dbName string) (PendingLog, error) {
	schema, err := compilePendingSchema()
	if err != nil {
		return nil, err
	}
	return &pendingLog{client: client, dbName: dbName, schema: schema}, nil
}

func compilePendingSchema() (*jsonschema.Schema, error) {
	raw, err := jsonschema.UnmarshalJSON(bytes.NewReader([]byte(pendingSchema)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pending-log schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("pending.json", raw); err != nil {
		return nil, fmt.Errorf("failed to register pending-log schema: %w", err)
	}
	schema, err := compiler.Compile("pending.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile pending-log schema: %w", err)
	}
	return schema, nil
}

// pendingDoc carries no kind discriminator: the operation itself already
// has a "kind" field, so pending entries are selected by doc-id prefix.
type pendingDoc struct {
	Rev string `json:"_rev,omitempty"`
	domain.PendingOperation
}

func pendingDocID(id domain.Identifier) string {
	return fmt.Sprintf("pending:%s", id.Key())
}

func (r *pendingLog) Get(targetID domain.Identifier) (*domain.PendingOperation, error) {
	db := r.client.DB(r.dbName)

	var wrapped pendingDoc
	if err := db.Get(context.Background(), pendingDocID(targetID)).ScanDoc(&wrapped); err != nil {
		if kivik.HTTPStatus(err) == 404 {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get pending operation %s: %w", targetID, err)
	}

	return &wrapped.PendingOperation, nil
}

func (r *pendingLog) Put(op *domain.PendingOperation) error {
	db := r.client.DB(r.dbName)
	docID := pendingDocID(op.TargetID)

	wrapped := pendingDoc{PendingOperation: *op}
	wrapped.Rev = currentRev(db, docID)

	if _, err := db.Put(context.Background(), docID, wrapped); err != nil {
		return fmt.Errorf("failed to put pending operation %s: %w", op.TargetID, err)
	}

	return nil
}

func (r *pendingLog) Delete(targetID domain.Identifier) error {
	return deleteDoc(r.client.DB(r.dbName), pendingDocID(targetID))
}

func (r *pendingLog) List() ([]*domain.PendingOperation, error) {
	db := r.client.DB(r.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"_id": map[string]interface{}{"$gt": "pending:", "$lt": "pending:\ufff0"},
		},
	}

	rows := db.Find(context.Background(), query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list pending operations: %w", err)
	}
	defer rows.Close()

	var ops []*domain.PendingOperation
	for rows.Next() {
		var raw json.RawMessage
		if err := rows.ScanDoc(&raw); err != nil {
			continue
		}

		op, err := DecodePendingOperation(r.schema, raw)
		if err != nil {
			log.Printf("[PendingLog] dropping corrupt entry: %v", err)
			continue
		}
		ops = append(ops, op)
	}

	return ops, nil
}

// DecodePendingOperation validates a persisted entry against the schema
// before decoding it.
func DecodePendingOperation(schema *jsonschema.Schema, raw []byte) (*domain.PendingOperation, error) {
	value, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("unreadable entry: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema violation: %w", err)
	}

	var wrapped pendingDoc
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("undecodable entry: %w", err)
	}
	return &wrapped.PendingOperation, nil
}
