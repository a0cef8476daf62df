package channel

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rghv234/wolffia/internal/remote"
)

type EventKind string

const (
	EventDocumentCreated  EventKind = "document_created"
	EventDocumentUpdated  EventKind = "document_updated"
	EventDocumentDeleted  EventKind = "document_deleted"
	EventContainerCreated EventKind = "container_created"
	EventContainerUpdated EventKind = "container_updated"
	EventContainerDeleted EventKind = "container_deleted"

	// kindHeartbeat is liveness only; kindConnected is emitted once on open
	// and carries no actionable data. Both are consumed inside the manager.
	kindHeartbeat EventKind = "heartbeat"
	kindConnected EventKind = "connected"
)

type Message struct {
	Type      EventKind       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Event is a remote-origin change delivered over the channel. Exactly one of
// Document/Container is set, matching the kind.
type Event struct {
	Kind      EventKind
	Document  *remote.Document
	Container *remote.Container
	Timestamp time.Time
}

type deletePayload struct {
	ID        int64     `json:"id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// parseMessage decodes one wire message. A nil event with nil error means
// the message was a keep-alive and should be ignored.
func parseMessage(data []byte) (*Event, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("malformed channel message: %w", err)
	}

	switch msg.Type {
	case kindHeartbeat, kindConnected:
		return nil, nil

	case EventDocumentCreated, EventDocumentUpdated:
		var doc remote.Document
		if err := json.Unmarshal(msg.Payload, &doc); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", msg.Type, err)
		}
		return &Event{Kind: msg.Type, Document: &doc, Timestamp: msg.Timestamp}, nil

	case EventDocumentDeleted:
		var p deletePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", msg.Type, err)
		}
		return &Event{Kind: msg.Type, Document: &remote.Document{ID: p.ID, UpdatedAt: p.UpdatedAt}, Timestamp: msg.Timestamp}, nil

	case EventContainerCreated, EventContainerUpdated:
		var container remote.Container
		if err := json.Unmarshal(msg.Payload, &container); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", msg.Type, err)
		}
		return &Event{Kind: msg.Type, Container: &container, Timestamp: msg.Timestamp}, nil

	case EventContainerDeleted:
		var p deletePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", msg.Type, err)
		}
		return &Event{Kind: msg.Type, Container: &remote.Container{ID: p.ID, UpdatedAt: p.UpdatedAt}, Timestamp: msg.Timestamp}, nil

	default:
		return nil, fmt.Errorf("unknown channel event type %q", msg.Type)
	}
}
