package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/rghv234/wolffia/internal/domain"
	"github.com/rghv234/wolffia/internal/remote"
	"github.com/rghv234/wolffia/internal/repository"
	"github.com/rghv234/wolffia/pkg/hash"
)

// ConflictService decides, for every inbound remote change and every queued
// replay, whether local and remote diverged, and exposes the explicit
// resolution operations. Conflict detection never inspects plaintext:
// ciphertext blobs are compared by byte equality only.
type ConflictService struct {
	docs      repository.DocumentStore
	conflicts repository.ConflictStore
	pending   repository.PendingLog
	client    remote.Client

	mu sync.Mutex
}

func NewConflictService(
	docs repository.DocumentStore,
	conflicts repository.ConflictStore,
	pending repository.PendingLog,
	client remote.Client,
) *ConflictService {
	return &ConflictService{
		docs:      docs,
		conflicts: conflicts,
		pending:   pending,
		client:    client,
	}
}

// ApplyRemoteUpdate handles an inbound remote document snapshot. Clean
// targets and byte-identical bodies converge silently; a dirty local edit
// against a differing remote body raises a conflict and leaves the local
// record untouched until the user resolves it.
func (s *ConflictService) ApplyRemoteUpdate(rdoc *remote.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := domain.RemoteID(rdoc.ID)

	local, err := s.docs.Get(id)
	if errors.Is(err, repository.ErrNotFound) {
		return s.docs.Put(rdoc.ToDomain())
	}
	if err != nil {
		return err
	}

	if local.SyncState == domain.SyncClean {
		return s.docs.Put(rdoc.ToDomain())
	}

	if rdoc.Body.Equal(local.Body) {
		// The competing writer produced the same bytes; converge and drop
		// the queued retry.
		if err := s.docs.Put(rdoc.ToDomain()); err != nil {
			return err
		}
		if err := s.pending.Delete(id); err != nil {
			log.Printf("[Conflicts] failed to clear pending entry for %s: %v", id, err)
		}
		if local.SyncState == domain.SyncConflicted {
			if err := s.conflicts.Delete(id); err != nil {
				log.Printf("[Conflicts] failed to clear conflict for %s: %v", id, err)
			}
		}
		return nil
	}

	return s.raise(local, rdoc)
}

// ReplayPending is the reconnect replay path: fetch the current remote
// snapshot, divert to a conflict if the remote moved past the queued edit's
// base, otherwise push the queued operation. Returns true when the entry was
// pushed or dropped; false when it was diverted to a conflict.
func (s *ConflictService) ReplayPending(ctx context.Context, op *domain.PendingOperation) (bool, error) {
	id := op.TargetID

	rdoc, err := s.client.GetDocument(ctx, id.Remote())
	if err != nil {
		var rejected *remote.RejectedError
		if errors.As(err, &rejected) && rejected.NotFound() {
			// Target vanished remotely while we were offline. The queued
			// edit has nothing to apply to; drop it and leave the local
			// record dirty for the user.
			log.Printf("[Conflicts] target %s deleted remotely, dropping queued %s", id, op.Kind)
			return true, s.pending.Delete(id)
		}
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	local, err := s.docs.Get(id)
	if errors.Is(err, repository.ErrNotFound) {
		return true, s.pending.Delete(id)
	}
	if err != nil {
		return false, err
	}

	if rdoc.UpdatedAt.After(op.BaseModified) && !rdoc.Body.Equal(local.Body) {
		if err := s.raise(local, rdoc); err != nil {
			return false, err
		}
		if err := s.pending.Delete(id); err != nil {
			return false, err
		}
		return false, nil
	}

	if op.Kind == domain.OpDelete {
		if err := s.client.DeleteDocument(ctx, id.Remote()); err != nil {
			return false, err
		}
		return true, s.pending.Delete(id)
	}

	patch := remote.DocumentPatch{
		Title:       op.Payload.Title,
		Body:        op.Payload.Body,
		ContainerID: remoteContainerID(op.Payload.ContainerID),
	}
	updated, err := s.client.UpdateDocument(ctx, id.Remote(), patch)
	if err != nil {
		return false, err
	}

	local.LastModified = updated.UpdatedAt
	local.SyncState = domain.SyncClean
	if err := s.docs.Put(local); err != nil {
		return false, err
	}
	return true, s.pending.Delete(id)
}

// raise records a conflict without overwriting the local record. At most
// one pending record exists per document; a newer remote snapshot refreshes
// the remote side of an existing record.
func (s *ConflictService) raise(local *domain.Document, rdoc *remote.Document) error {
	id := local.ID

	record := &domain.ConflictRecord{
		DocumentID:     id,
		Title:          local.Title,
		LocalBody:      local.Body,
		RemoteBody:     rdoc.Body,
		LocalModified:  local.LastModified,
		RemoteModified: rdoc.UpdatedAt,
		DetectedAt:     time.Now(),
		Status:         domain.ConflictPending,
	}
	if existing, err := s.conflicts.Get(id); err == nil {
		record.DetectedAt = existing.DetectedAt
	}

	if err := s.conflicts.Put(record); err != nil {
		return fmt.Errorf("failed to record conflict for %s: %w", id, err)
	}

	if local.SyncState != domain.SyncConflicted {
		local.SyncState = domain.SyncConflicted
		if err := s.docs.Put(local); err != nil {
			return err
		}
	}

	log.Printf("[Conflicts] divergence on %s (local %s, remote %s)",
		id, hash.Fingerprint(local.Body), hash.Fingerprint(rdoc.Body))
	return nil
}

// Resolve re-converges a conflicted document according to the user's
// choice. All three paths delete the conflict record and any pending-log
// entry on success.
func (s *ConflictService) Resolve(ctx context.Context, id domain.Identifier, choice domain.ResolutionChoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.conflicts.Get(id)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNoConflict
	}
	if err != nil {
		return err
	}

	local, err := s.docs.Get(id)
	if err != nil {
		return err
	}

	switch choice {
	case domain.ResolveLocal:
		if err := s.pushLocal(ctx, local); err != nil {
			return err
		}

	case domain.ResolveServer:
		local.Body = record.RemoteBody
		local.LastModified = record.RemoteModified
		local.SyncState = domain.SyncClean
		if err := s.docs.Put(local); err != nil {
			return err
		}

	case domain.ResolveBoth:
		// Server content survives as a sibling; local wins the original
		// identity.
		created, err := s.client.CreateDocument(ctx, remote.NewDocument{
			Title:       resolutionCopyTitle(local.Title, time.Now()),
			Body:        record.RemoteBody,
			ContainerID: remoteContainerID(local.ContainerID),
		})
		if err != nil {
			return err
		}
		if err := s.docs.Put(created.ToDomain()); err != nil {
			return err
		}
		if err := s.pushLocal(ctx, local); err != nil {
			return err
		}

	default:
		return ErrInvalidChoice
	}

	if err := s.conflicts.Delete(id); err != nil {
		return err
	}
	if err := s.pending.Delete(id); err != nil {
		log.Printf("[Conflicts] failed to clear pending entry for %s: %v", id, err)
	}
	log.Printf("[Conflicts] resolved %s as %q", id, choice)
	return nil
}

// pushLocal overwrites the server state with the locally-held title and
// body. "Local" means the latest local state at resolution time, including
// edits made after the conflict was raised.
func (s *ConflictService) pushLocal(ctx context.Context, local *domain.Document) error {
	updated, err := s.client.UpdateDocument(ctx, local.ID.Remote(), remote.DocumentPatch{
		Title: &local.Title,
		Body:  &local.Body,
	})
	if err != nil {
		return err
	}

	local.LastModified = updated.UpdatedAt
	local.SyncState = domain.SyncClean
	return s.docs.Put(local)
}

// Clear drops any conflict record for the target; used when a successful
// propagation makes the divergence moot.
func (s *ConflictService) Clear(id domain.Identifier) {
	if err := s.conflicts.Delete(id); err != nil {
		log.Printf("[Conflicts] failed to clear conflict for %s: %v", id, err)
	}
}

// List returns the pending conflicts for the UI.
func (s *ConflictService) List() ([]*domain.ConflictRecord, error) {
	return s.conflicts.ListPending()
}

// resolutionCopyTitle disambiguates the sibling created by a "both"
// resolution, preserving the original extension.
func resolutionCopyTitle(title string, at time.Time) string {
	stamp := at.Format("2006-01-02 15.04.05")
	if dot := strings.LastIndex(title, "."); dot > 0 {
		return fmt.Sprintf("%s (conflict %s)%s", title[:dot], stamp, title[dot:])
	}
	return fmt.Sprintf("%s (conflict %s)", title, stamp)
}
