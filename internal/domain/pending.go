package domain

import "time"

type OperationKind string

const (
	OpUpdate OperationKind = "update"
	OpDelete OperationKind = "delete"
)

// PendingOperation is a durable record of a local mutation not yet confirmed
// by the remote store. At most one exists per target; a newer operation on
// the same target supersedes the older one.
type PendingOperation struct {
	TargetID Identifier    `json:"target_id"`
	Kind     OperationKind `json:"kind"`
	Payload  DocumentPatch `json:"payload"`
	// BaseModified is the document's last-modified timestamp at enqueue
	// time, used by the replay conflict check.
	BaseModified time.Time `json:"base_modified"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
}
