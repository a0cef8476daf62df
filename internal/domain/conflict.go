package domain

import "time"

type ConflictStatus string

const (
	ConflictPending  ConflictStatus = "pending"
	ConflictResolved ConflictStatus = "resolved"
)

type ResolutionChoice string

const (
	// ResolveLocal pushes the locally-held state to the remote store.
	ResolveLocal ResolutionChoice = "local"
	// ResolveServer overwrites the local record with the server state.
	ResolveServer ResolutionChoice = "server"
	// ResolveBoth keeps the local body at the original identity and
	// preserves the server body as a new sibling document.
	ResolveBoth ResolutionChoice = "both"
)

// ConflictRecord captures a divergence between local and remote state for a
// remote-identified document. Local-pending and transient documents cannot
// conflict; they have no competing writer until promoted.
type ConflictRecord struct {
	DocumentID     Identifier     `json:"document_id"`
	Title          string         `json:"title"`
	LocalBody      Blob           `json:"local_body"`
	RemoteBody     Blob           `json:"remote_body"`
	LocalModified  time.Time      `json:"local_modified"`
	RemoteModified time.Time      `json:"remote_modified"`
	DetectedAt     time.Time      `json:"detected_at"`
	Status         ConflictStatus `json:"status"`
}

type ResolveConflictRequest struct {
	Choice ResolutionChoice `json:"choice" validate:"required,oneof=local server both"`
}
