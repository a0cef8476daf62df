package domain

import (
	"bytes"
	"time"
)

// Blob is an opaque ciphertext payload. The engine never decrypts or
// inspects it; only byte equality is meaningful.
type Blob []byte

func (b Blob) Equal(other Blob) bool {
	return bytes.Equal(b, other)
}

type SyncState string

const (
	// SyncClean means the local record matches the last confirmed remote state.
	SyncClean SyncState = "clean"
	// SyncDirty means a local edit has not been confirmed by the remote store.
	SyncDirty SyncState = "dirty"
	// SyncConflicted means local and remote diverged and a user decision is
	// outstanding.
	SyncConflicted SyncState = "conflicted"
)

type Document struct {
	ID           Identifier  `json:"id"`
	ContainerID  *Identifier `json:"container_id"`
	Title        string      `json:"title"`
	Body         Blob        `json:"body"`
	LastModified time.Time   `json:"last_modified"`
	SyncState    SyncState   `json:"sync_state"`
}

// DocumentPatch is a partial update. Nil fields are left untouched.
type DocumentPatch struct {
	Title       *string     `json:"title,omitempty"`
	Body        *Blob       `json:"body,omitempty"`
	ContainerID *Identifier `json:"container_id,omitempty"`
}

func (p *DocumentPatch) Apply(doc *Document) {
	if p.Title != nil {
		doc.Title = *p.Title
	}
	if p.Body != nil {
		doc.Body = *p.Body
	}
	if p.ContainerID != nil {
		doc.ContainerID = p.ContainerID
	}
}

type CreateDocumentRequest struct {
	Title       string      `json:"title" validate:"required"`
	Body        Blob        `json:"body"`
	ContainerID *Identifier `json:"container_id"`
}

type UpdateDocumentRequest struct {
	Title       *string     `json:"title"`
	Body        *Blob       `json:"body"`
	ContainerID *Identifier `json:"container_id"`
}

func (r *UpdateDocumentRequest) Patch() DocumentPatch {
	return DocumentPatch{
		Title:       r.Title,
		Body:        r.Body,
		ContainerID: r.ContainerID,
	}
}
