package service

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/rghv234/wolffia/internal/channel"
	"github.com/rghv234/wolffia/internal/domain"
	"github.com/rghv234/wolffia/internal/remote"
	"github.com/rghv234/wolffia/internal/repository"
)

// ViewState is the UI session state the driver re-derives after every full
// reload and rewrites on id promotion, so the view layer never holds a
// dangling identifier.
type ViewState struct {
	OpenTabs           []domain.Identifier `json:"open_tabs"`
	ExpandedContainers []domain.Identifier `json:"expanded_containers"`
}

// EngineStatus is the driver's externally visible health summary.
type EngineStatus struct {
	Channel      channel.Status `json:"channel"`
	Offline      bool           `json:"offline"`
	PendingOps   int            `json:"pending_ops"`
	Conflicts    int            `json:"conflicts"`
	LastReloadAt *time.Time     `json:"last_reload_at,omitempty"`
}

// SyncService orchestrates full-state reload, pending replay and settings
// sync on connectivity transitions, and applies inbound channel events to
// the replica.
type SyncService struct {
	docs       repository.DocumentStore
	containers repository.ContainerStore
	pending    repository.PendingLog
	settings   repository.SettingsStore
	client     remote.Client
	conflicts  *ConflictService
	documents  *DocumentService
	ch         *channel.Manager

	loadTimeout time.Duration

	mu           sync.Mutex
	offline      bool
	syncing      bool
	view         ViewState
	lastReloadAt *time.Time
}

func NewSyncService(
	docs repository.DocumentStore,
	containers repository.ContainerStore,
	pending repository.PendingLog,
	settings repository.SettingsStore,
	client remote.Client,
	conflicts *ConflictService,
	documents *DocumentService,
	ch *channel.Manager,
	loadTimeout time.Duration,
) *SyncService {
	s := &SyncService{
		docs:        docs,
		containers:  containers,
		pending:     pending,
		settings:    settings,
		client:      client,
		conflicts:   conflicts,
		documents:   documents,
		ch:          ch,
		loadTimeout: loadTimeout,
	}
	documents.OnPromote(s.rewriteViewRefs)
	return s
}

// LoadAll performs the full reload: fetch the complete document and
// container sets, replace the replica, and re-derive the view state. Local
// edits survive the replace: dirty, conflicted and not-yet-promoted
// documents are carried over untouched. The fetch races the configured
// timeout; on transport failure the cached replica keeps serving and the
// session is marked offline.
func (s *SyncService) LoadAll(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.loadTimeout)
	defer cancel()

	remoteDocs, err := s.client.ListDocuments(ctx)
	if err != nil {
		return s.reloadFailed(err)
	}
	remoteContainers, err := s.client.ListContainers(ctx)
	if err != nil {
		return s.reloadFailed(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.docs.List()
	if err != nil {
		return err
	}

	// Locally modified state outranks the fetched snapshot; everything
	// clean is replaced wholesale so stale entries never survive.
	preserved := make(map[string]*domain.Document)
	for _, doc := range existing {
		if !doc.ID.IsRemote() || doc.SyncState != domain.SyncClean {
			preserved[doc.ID.Key()] = doc
		}
	}

	docs := make([]*domain.Document, 0, len(remoteDocs)+len(preserved))
	for i := range remoteDocs {
		if local, ok := preserved[domain.RemoteID(remoteDocs[i].ID).Key()]; ok {
			docs = append(docs, local)
			delete(preserved, local.ID.Key())
			continue
		}
		docs = append(docs, remoteDocs[i].ToDomain())
	}
	for _, doc := range preserved {
		docs = append(docs, doc)
	}

	containers := make([]*domain.Container, 0, len(remoteContainers))
	for i := range remoteContainers {
		containers = append(containers, remoteContainers[i].ToDomain())
	}

	if err := s.docs.ReplaceAll(docs); err != nil {
		return err
	}
	if err := s.containers.ReplaceAll(containers); err != nil {
		return err
	}

	s.rederiveView(docs, containers)
	s.offline = false
	now := time.Now()
	s.lastReloadAt = &now
	log.Printf("[Sync] full reload complete: %d documents, %d containers", len(docs), len(containers))
	return nil
}

// reloadFailed decides between offline fallback and a surfaced error. Only
// transport-level failures fall back to cached data.
func (s *SyncService) reloadFailed(err error) error {
	if errors.Is(err, remote.ErrTransport) {
		s.mu.Lock()
		s.offline = true
		s.mu.Unlock()
		log.Printf("[Sync] full reload unavailable, serving cached replica: %v", err)
		return nil
	}
	return err
}

// SyncPending replays the durable pending log through the conflict
// detector, then pushes offline-created documents. A transport failure
// aborts the pass; everything already replayed stays replayed.
func (s *SyncService) SyncPending(ctx context.Context) error {
	s.mu.Lock()
	if s.syncing {
		s.mu.Unlock()
		return nil
	}
	s.syncing = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.syncing = false
		s.mu.Unlock()
	}()

	ops, err := s.pending.List()
	if err != nil {
		return err
	}

	replayed, diverted := 0, 0
	for _, op := range ops {
		if !op.TargetID.IsRemote() {
			// An entry for a placeholder id means the create itself never
			// landed; promotion below carries the full document state.
			if err := s.pending.Delete(op.TargetID); err != nil {
				log.Printf("[Sync] failed to drop placeholder entry %s: %v", op.TargetID, err)
			}
			continue
		}

		pushed, err := s.conflicts.ReplayPending(ctx, op)
		if err != nil {
			if errors.Is(err, remote.ErrTransport) {
				s.mu.Lock()
				s.offline = true
				s.mu.Unlock()
				log.Printf("[Sync] replay interrupted, store unreachable: %v", err)
				return nil
			}
			log.Printf("[Sync] replay of %s failed: %v", op.TargetID, err)
			continue
		}
		if pushed {
			replayed++
		} else {
			diverted++
		}
	}

	promoted, err := s.promoteLocalPending(ctx)
	if err != nil {
		return err
	}

	log.Printf("[Sync] pending pass done: %d replayed, %d diverted to conflicts, %d promoted", replayed, diverted, promoted)
	return nil
}

func (s *SyncService) promoteLocalPending(ctx context.Context) (int, error) {
	docs, err := s.docs.List()
	if err != nil {
		return 0, err
	}

	promoted := 0
	for _, doc := range docs {
		if doc.ID.Kind() != domain.KindLocalPending {
			continue
		}
		if err := s.documents.PromoteLocalPending(ctx, doc.ID); err != nil {
			if errors.Is(err, remote.ErrTransport) {
				s.mu.Lock()
				s.offline = true
				s.mu.Unlock()
				log.Printf("[Sync] promotion interrupted, store unreachable: %v", err)
				return promoted, nil
			}
			log.Printf("[Sync] failed to promote %s: %v", doc.ID, err)
			continue
		}
		promoted++
	}
	return promoted, nil
}

// SyncSettings runs after documents: preferences are low priority and never
// block reconciliation. Last writer wins by timestamp.
func (s *SyncService) SyncSettings(ctx context.Context) error {
	remoteSettings, err := s.client.GetSettings(ctx)
	if err != nil {
		if errors.Is(err, remote.ErrTransport) {
			log.Printf("[Sync] settings sync skipped, store unreachable: %v", err)
			return nil
		}
		return err
	}

	local, err := s.settings.Get()
	if errors.Is(err, repository.ErrNotFound) {
		return s.settings.Put(remoteSettings)
	}
	if err != nil {
		return err
	}

	if remoteSettings.UpdatedAt.After(local.UpdatedAt) {
		return s.settings.Put(remoteSettings)
	}
	if local.UpdatedAt.After(remoteSettings.UpdatedAt) {
		if err := s.client.PutSettings(ctx, local); err != nil {
			if errors.Is(err, remote.ErrTransport) {
				log.Printf("[Sync] settings push skipped, store unreachable: %v", err)
				return nil
			}
			return err
		}
	}
	return nil
}

// Online is the external connectivity signal: reconnect the channel, reload
// state, replay the queue, then sync settings.
func (s *SyncService) Online(ctx context.Context) error {
	s.ch.Connect()

	if err := s.LoadAll(ctx); err != nil {
		return err
	}
	if err := s.SyncPending(ctx); err != nil {
		return err
	}
	return s.SyncSettings(ctx)
}

// Run consumes the realtime channel until the context ends. Intended to be
// started once, as a goroutine, at process start.
func (s *SyncService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-s.ch.Events():
			if !ok {
				return
			}
			if err := s.HandleEvent(&event); err != nil {
				log.Printf("[Sync] failed to apply %s event: %v", event.Kind, err)
			}
		}
	}
}

// HandleEvent applies one remote-origin change to the replica. Document
// writes go through the conflict detector; deletes are remote-wins.
func (s *SyncService) HandleEvent(event *channel.Event) error {
	switch event.Kind {
	case channel.EventDocumentCreated, channel.EventDocumentUpdated:
		return s.conflicts.ApplyRemoteUpdate(event.Document)

	case channel.EventDocumentDeleted:
		id := domain.RemoteID(event.Document.ID)
		if err := s.docs.Delete(id); err != nil {
			return err
		}
		if err := s.pending.Delete(id); err != nil {
			log.Printf("[Sync] failed to clear pending entry for %s: %v", id, err)
		}
		s.conflicts.Clear(id)
		s.dropViewRefs(id)
		return nil

	case channel.EventContainerCreated, channel.EventContainerUpdated:
		return s.containers.Put(event.Container.ToDomain())

	case channel.EventContainerDeleted:
		id := domain.RemoteID(event.Container.ID)
		if err := s.containers.Delete(id); err != nil {
			return err
		}
		// Documents in the deleted folder move to the root; the store has
		// already re-parented them on its side.
		orphans, err := s.docs.ListByContainer(id)
		if err != nil {
			return err
		}
		for _, doc := range orphans {
			doc.ContainerID = nil
			if err := s.docs.Put(doc); err != nil {
				log.Printf("[Sync] failed to re-parent %s: %v", doc.ID, err)
			}
		}
		s.dropViewRefs(id)
		return nil

	default:
		log.Printf("[Sync] ignoring unhandled event kind %q", event.Kind)
		return nil
	}
}

func (s *SyncService) Status() EngineStatus {
	status := EngineStatus{Channel: s.ch.Status()}

	if ops, err := s.pending.List(); err == nil {
		status.PendingOps = len(ops)
	}
	if records, err := s.conflicts.List(); err == nil {
		status.Conflicts = len(records)
	}

	s.mu.Lock()
	status.Offline = s.offline
	status.LastReloadAt = s.lastReloadAt
	s.mu.Unlock()
	return status
}

func (s *SyncService) View() ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ViewState{
		OpenTabs:           append([]domain.Identifier(nil), s.view.OpenTabs...),
		ExpandedContainers: append([]domain.Identifier(nil), s.view.ExpandedContainers...),
	}
}

// SetView replaces the UI session state; the driver only ever shrinks or
// rewrites it afterwards.
func (s *SyncService) SetView(view ViewState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = view
}

// rederiveView drops view references whose target no longer exists after a
// full reload. Caller holds s.mu.
func (s *SyncService) rederiveView(docs []*domain.Document, containers []*domain.Container) {
	known := make(map[string]bool, len(docs)+len(containers))
	for _, doc := range docs {
		known[doc.ID.Key()] = true
	}
	for _, container := range containers {
		known[container.ID.Key()] = true
	}

	s.view.OpenTabs = filterIDs(s.view.OpenTabs, func(id domain.Identifier) bool {
		return known[id.Key()]
	})
	s.view.ExpandedContainers = filterIDs(s.view.ExpandedContainers, func(id domain.Identifier) bool {
		return known[id.Key()]
	})
}

func (s *SyncService) dropViewRefs(id domain.Identifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.OpenTabs = filterIDs(s.view.OpenTabs, func(ref domain.Identifier) bool {
		return !ref.Equal(id)
	})
	s.view.ExpandedContainers = filterIDs(s.view.ExpandedContainers, func(ref domain.Identifier) bool {
		return !ref.Equal(id)
	})
}

// rewriteViewRefs swaps a promoted placeholder id everywhere the view still
// references it.
func (s *SyncService) rewriteViewRefs(oldID, newID domain.Identifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, ref := range s.view.OpenTabs {
		if ref.Equal(oldID) {
			s.view.OpenTabs[i] = newID
		}
	}
	for i, ref := range s.view.ExpandedContainers {
		if ref.Equal(oldID) {
			s.view.ExpandedContainers[i] = newID
		}
	}
}

func filterIDs(ids []domain.Identifier, keep func(domain.Identifier) bool) []domain.Identifier {
	out := ids[:0]
	for _, id := range ids {
		if keep(id) {
			out = append(out, id)
		}
	}
	return out
}
