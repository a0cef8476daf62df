package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/rghv234/wolffia/internal/domain"
	"github.com/rghv234/wolffia/internal/remote"
	"github.com/rghv234/wolffia/internal/repository"
)

const propagateTimeout = 10 * time.Second

// DocumentService is the optimistic mutation coordinator: edits land in the
// local replica immediately, remote propagation is debounced per target, and
// failed updates fall back to the durable pending log.
type DocumentService struct {
	docs      repository.DocumentStore
	pending   repository.PendingLog
	client    remote.Client
	conflicts *ConflictService
	debounce  *debouncer

	// mu serializes multi-step replica transitions, most importantly the
	// placeholder-to-remote id swap which must complete before any other
	// operation observes the document.
	mu        sync.Mutex
	onPromote []func(oldID, newID domain.Identifier)
}

func NewDocumentService(
	docs repository.DocumentStore,
	pending repository.PendingLog,
	client remote.Client,
	conflicts *ConflictService,
	debounceWindow time.Duration,
) *DocumentService {
	return &DocumentService{
		docs:      docs,
		pending:   pending,
		client:    client,
		conflicts: conflicts,
		debounce:  newDebouncer(debounceWindow),
	}
}

// OnPromote registers a hook invoked whenever a placeholder id is exchanged
// for a remote id, so in-flight references (open views) can be rewritten.
func (s *DocumentService) OnPromote(fn func(oldID, newID domain.Identifier)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onPromote = append(s.onPromote, fn)
}

// Create inserts the document optimistically under a local-pending id, then
// issues the remote create. On success the placeholder id is swapped for the
// remote id everywhere it is referenced. A transport failure leaves the
// local-pending record in place for promotion on the next sync; an
// application-level rejection rolls the optimistic insert back.
func (s *DocumentService) Create(ctx context.Context, req *domain.CreateDocumentRequest) (*domain.Document, error) {
	doc := &domain.Document{
		ID:           domain.NewLocalPendingID(),
		ContainerID:  req.ContainerID,
		Title:        req.Title,
		Body:         req.Body,
		LastModified: time.Now(),
		SyncState:    domain.SyncDirty,
	}

	if err := s.docs.Put(doc); err != nil {
		return nil, fmt.Errorf("failed to insert document: %w", err)
	}

	created, err := s.client.CreateDocument(ctx, remote.NewDocument{
		Title:       doc.Title,
		Body:        doc.Body,
		ContainerID: remoteContainerID(doc.ContainerID),
	})
	if err != nil {
		if errors.Is(err, remote.ErrTransport) {
			log.Printf("[Documents] create deferred, store unreachable: %s", doc.ID)
			return doc, nil
		}
		if delErr := s.docs.Delete(doc.ID); delErr != nil {
			log.Printf("[Documents] failed to roll back rejected create %s: %v", doc.ID, delErr)
		}
		return nil, err
	}

	return s.promote(doc.ID, created)
}

// CreateTransient inserts an in-memory-only scratch document. Transient
// documents are excluded from sync until explicitly promoted.
func (s *DocumentService) CreateTransient(req *domain.CreateDocumentRequest) (*domain.Document, error) {
	doc := &domain.Document{
		ID:           domain.NewTransientID(),
		ContainerID:  req.ContainerID,
		Title:        req.Title,
		Body:         req.Body,
		LastModified: time.Now(),
		SyncState:    domain.SyncClean,
	}
	if err := s.docs.Put(doc); err != nil {
		return nil, fmt.Errorf("failed to insert transient document: %w", err)
	}
	return doc, nil
}

// Promote turns a transient scratch document into a real synced document.
func (s *DocumentService) Promote(ctx context.Context, id domain.Identifier) (*domain.Document, error) {
	if id.Kind() != domain.KindTransient {
		return nil, ErrNotPromotable
	}

	doc, err := s.docs.Get(id)
	if err != nil {
		return nil, err
	}

	created, err := s.client.CreateDocument(ctx, remote.NewDocument{
		Title:       doc.Title,
		Body:        doc.Body,
		ContainerID: remoteContainerID(doc.ContainerID),
	})
	if err != nil {
		if errors.Is(err, remote.ErrTransport) {
			// Re-key to a local-pending id so the next sync promotes it.
			pending := *doc
			pending.ID = domain.NewLocalPendingID()
			pending.SyncState = domain.SyncDirty
			if err := s.rekey(id, &pending); err != nil {
				return nil, err
			}
			return &pending, nil
		}
		return nil, err
	}

	return s.promote(id, created)
}

// Update applies the patch to the local replica immediately and
// unconditionally, then schedules a debounced remote push for
// remote-identified targets. Local wins provisionally on push failure.
func (s *DocumentService) Update(id domain.Identifier, req *domain.UpdateDocumentRequest) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.docs.Get(id)
	if err != nil {
		return nil, err
	}

	patch := req.Patch()
	patch.Apply(doc)
	doc.LastModified = time.Now()
	if doc.SyncState == domain.SyncClean {
		doc.SyncState = domain.SyncDirty
	}

	if err := s.docs.Put(doc); err != nil {
		return nil, fmt.Errorf("failed to apply update: %w", err)
	}

	// Only remote-identified, unconflicted documents propagate. Transient
	// and local-pending documents have no remote counterpart to push to;
	// conflicted documents wait for the user's resolution.
	if id.IsRemote() && doc.SyncState != domain.SyncConflicted {
		s.debounce.Schedule(id.Key(), func() { s.propagate(id) })
	}

	return doc, nil
}

// Delete removes the document optimistically and confirms with the remote
// store. A failed remote delete reverts the local removal: a queued delete
// racing a concurrent remote edit is ambiguous and must surface instead.
func (s *DocumentService) Delete(ctx context.Context, id domain.Identifier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.docs.Get(id)
	if err != nil {
		return err
	}

	s.debounce.Cancel(id.Key())

	if err := s.docs.Delete(id); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	if !id.IsRemote() {
		return nil
	}

	if err := s.client.DeleteDocument(ctx, id.Remote()); err != nil {
		var rejected *remote.RejectedError
		if errors.As(err, &rejected) && rejected.NotFound() {
			// Already gone remotely; converged.
		} else {
			if putErr := s.docs.Put(doc); putErr != nil {
				log.Printf("[Documents] failed to revert delete of %s: %v", id, putErr)
			}
			return err
		}
	}

	if err := s.pending.Delete(id); err != nil {
		log.Printf("[Documents] failed to clear pending entry for %s: %v", id, err)
	}
	s.conflicts.Clear(id)
	return nil
}

// Get and List serve the UI layer from the replica.
func (s *DocumentService) Get(id domain.Identifier) (*domain.Document, error) {
	return s.docs.Get(id)
}

func (s *DocumentService) List() ([]*domain.Document, error) {
	return s.docs.List()
}

// propagate pushes the last-applied state of a document. Rapid edits within
// the debounce window coalesce into a single call here. The coordinator
// lock is not held across the network call; a racing edit is detected by
// comparing the local timestamp before confirming.
func (s *DocumentService) propagate(id domain.Identifier) {
	s.mu.Lock()
	doc, err := s.docs.Get(id)
	if err != nil || doc.SyncState == domain.SyncConflicted {
		s.mu.Unlock()
		return
	}
	snapshot := *doc
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), propagateTimeout)
	defer cancel()

	patch := remote.DocumentPatch{
		Title:       &snapshot.Title,
		Body:        &snapshot.Body,
		ContainerID: remoteContainerID(snapshot.ContainerID),
	}

	updated, err := s.client.UpdateDocument(ctx, id.Remote(), patch)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		// Local wins provisionally; record the edit durably for replay.
		op := &domain.PendingOperation{
			TargetID:     id,
			Kind:         domain.OpUpdate,
			Payload:      domain.DocumentPatch{Title: &snapshot.Title, Body: &snapshot.Body, ContainerID: snapshot.ContainerID},
			BaseModified: snapshot.LastModified,
			EnqueuedAt:   time.Now(),
		}
		if putErr := s.pending.Put(op); putErr != nil {
			log.Printf("[Documents] failed to enqueue pending update for %s: %v", id, putErr)
			return
		}
		log.Printf("[Documents] push failed for %s, queued for replay: %v", id, err)
		return
	}

	current, err := s.docs.Get(id)
	if err != nil {
		return
	}
	if !current.LastModified.Equal(snapshot.LastModified) {
		// A newer edit landed while the push was in flight; its own
		// debounce timer owns the next propagation.
		return
	}

	current.LastModified = updated.UpdatedAt
	current.SyncState = domain.SyncClean
	if err := s.docs.Put(current); err != nil {
		log.Printf("[Documents] failed to confirm push for %s: %v", id, err)
		return
	}

	// Successful propagation clears any queued retry and stale conflict.
	if err := s.pending.Delete(id); err != nil {
		log.Printf("[Documents] failed to clear pending entry for %s: %v", id, err)
	}
	s.conflicts.Clear(id)
}

// PromoteLocalPending pushes an offline-created document to the remote
// store and swaps its placeholder id. Called by the reconciliation driver
// during pending replay.
func (s *DocumentService) PromoteLocalPending(ctx context.Context, id domain.Identifier) error {
	if id.Kind() != domain.KindLocalPending {
		return ErrNotPromotable
	}

	doc, err := s.docs.Get(id)
	if err != nil {
		return err
	}

	created, err := s.client.CreateDocument(ctx, remote.NewDocument{
		Title:       doc.Title,
		Body:        doc.Body,
		ContainerID: remoteContainerID(doc.ContainerID),
	})
	if err != nil {
		return err
	}

	_, err = s.promote(id, created)
	return err
}

// promote swaps a placeholder id for the confirmed remote id as a single
// synchronous step, before any other awaited operation can observe two
// representations of the same document.
func (s *DocumentService) promote(oldID domain.Identifier, created *remote.Document) (*domain.Document, error) {
	doc := created.ToDomain()
	if err := s.rekey(oldID, doc); err != nil {
		return nil, err
	}
	log.Printf("[Documents] promoted %s -> %s", oldID, doc.ID)
	return doc, nil
}

func (s *DocumentService) rekey(oldID domain.Identifier, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.debounce.Cancel(oldID.Key())

	if err := s.docs.Put(doc); err != nil {
		return fmt.Errorf("failed to write promoted document: %w", err)
	}
	if err := s.docs.Delete(oldID); err != nil {
		return fmt.Errorf("failed to drop placeholder %s: %w", oldID, err)
	}

	for _, fn := range s.onPromote {
		fn(oldID, doc.ID)
	}
	return nil
}

func remoteContainerID(id *domain.Identifier) *int64 {
	if id == nil || !id.IsRemote() {
		return nil
	}
	remoteID := id.Remote()
	return &remoteID
}
