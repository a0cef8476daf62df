package service

import (
	"context"
	"testing"
	"time"

	"github.com/rghv234/wolffia/internal/channel"
	"github.com/rghv234/wolffia/internal/domain"
	"github.com/rghv234/wolffia/internal/remote"
)

type syncFixture struct {
	svc        *SyncService
	documents  *DocumentService
	store      *mockDocStore
	containers *mockContainerStore
	pending    *mockPendingLog
	conflicts  *mockConflictStore
	settings   *mockSettingsStore
	client     *mockRemote
}

func newSyncFixture() *syncFixture {
	store := newMockDocStore()
	containers := newMockContainerStore()
	pending := newMockPendingLog()
	conflicts := newMockConflictStore()
	settings := &mockSettingsStore{}
	client := newMockRemote()

	conflictService := NewConflictService(store, conflicts, pending, client)
	documentService := NewDocumentService(store, pending, client, conflictService, testDebounce)
	ch := channel.NewManager("ws://localhost:9/channel", "", time.Second)

	svc := NewSyncService(store, containers, pending, settings, client, conflictService, documentService, ch, 5*time.Second)
	return &syncFixture{
		svc:        svc,
		documents:  documentService,
		store:      store,
		containers: containers,
		pending:    pending,
		conflicts:  conflicts,
		settings:   settings,
		client:     client,
	}
}

func TestSyncService_LoadAllReplacesCleanState(t *testing.T) {
	f := newSyncFixture()

	// Replica before reload: a stale clean copy, a dirty local edit, an
	// offline-created placeholder and a clean entry the store no longer has.
	f.store.Put(&domain.Document{ID: domain.RemoteID(1), Title: "a.md", Body: domain.Blob("stale"), SyncState: domain.SyncClean})
	f.store.Put(&domain.Document{ID: domain.RemoteID(2), Title: "b.md", Body: domain.Blob("local edit"), SyncState: domain.SyncDirty})
	pendingDoc := &domain.Document{ID: domain.NewLocalPendingID(), Title: "c.md", SyncState: domain.SyncDirty}
	f.store.Put(pendingDoc)
	f.store.Put(&domain.Document{ID: domain.RemoteID(4), Title: "gone.md", SyncState: domain.SyncClean})

	f.client.seed(remote.Document{ID: 1, Title: "a.md", Body: domain.Blob("fresh"), UpdatedAt: time.Now()})
	f.client.seed(remote.Document{ID: 2, Title: "b.md", Body: domain.Blob("remote b"), UpdatedAt: time.Now()})
	f.client.seed(remote.Document{ID: 3, Title: "new.md", Body: domain.Blob("new"), UpdatedAt: time.Now()})

	f.svc.SetView(ViewState{OpenTabs: []domain.Identifier{
		domain.RemoteID(2),
		domain.RemoteID(4),
		pendingDoc.ID,
	}})

	if err := f.svc.LoadAll(context.Background()); err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	doc1, _ := f.store.Get(domain.RemoteID(1))
	if !doc1.Body.Equal(domain.Blob("fresh")) {
		t.Error("clean entry must take the fetched state")
	}

	doc2, _ := f.store.Get(domain.RemoteID(2))
	if !doc2.Body.Equal(domain.Blob("local edit")) || doc2.SyncState != domain.SyncDirty {
		t.Error("dirty entry must survive the reload untouched")
	}

	if _, err := f.store.Get(pendingDoc.ID); err != nil {
		t.Error("offline-created placeholder must survive the reload")
	}
	if _, err := f.store.Get(domain.RemoteID(3)); err != nil {
		t.Error("newly fetched document missing")
	}
	if _, err := f.store.Get(domain.RemoteID(4)); err == nil {
		t.Error("stale clean entry must not survive the reload")
	}

	view := f.svc.View()
	if len(view.OpenTabs) != 2 {
		t.Fatalf("expected the dangling tab to be dropped, got %d tabs", len(view.OpenTabs))
	}
	for _, tab := range view.OpenTabs {
		if tab.Equal(domain.RemoteID(4)) {
			t.Error("tab for a vanished document must be dropped")
		}
	}

	if f.svc.Status().Offline {
		t.Error("successful reload must clear the offline flag")
	}
}

func TestSyncService_LoadAllFallsBackWhenUnreachable(t *testing.T) {
	f := newSyncFixture()

	f.store.Put(&domain.Document{ID: domain.RemoteID(1), Title: "cached.md", SyncState: domain.SyncClean})
	f.client.setOffline(true)

	if err := f.svc.LoadAll(context.Background()); err != nil {
		t.Fatalf("transport failure must not surface from reload, got %v", err)
	}

	if _, err := f.store.Get(domain.RemoteID(1)); err != nil {
		t.Error("cached replica must keep serving")
	}
	if !f.svc.Status().Offline {
		t.Error("failed reload must mark the session offline")
	}
}

func TestSyncService_SyncPendingReplaysAndPromotes(t *testing.T) {
	f := newSyncFixture()

	// A queued edit against an unchanged remote document.
	base := time.Now().Add(-time.Hour)
	edited := domain.Blob("offline edit")
	f.client.seed(remote.Document{ID: 5, Title: "e.md", Body: domain.Blob("v0"), UpdatedAt: base})
	f.store.Put(&domain.Document{ID: domain.RemoteID(5), Title: "e.md", Body: edited, SyncState: domain.SyncDirty})
	f.pending.Put(&domain.PendingOperation{
		TargetID:     domain.RemoteID(5),
		Kind:         domain.OpUpdate,
		Payload:      domain.DocumentPatch{Body: &edited},
		BaseModified: base,
	})

	// An offline-created document, still under its placeholder id.
	placeholder := domain.NewLocalPendingID()
	f.store.Put(&domain.Document{ID: placeholder, Title: "created-offline.md", Body: domain.Blob("x"), SyncState: domain.SyncDirty})
	f.svc.SetView(ViewState{OpenTabs: []domain.Identifier{placeholder}})

	if err := f.svc.SyncPending(context.Background()); err != nil {
		t.Fatalf("pending pass failed: %v", err)
	}

	if ops, _ := f.pending.List(); len(ops) != 0 {
		t.Errorf("expected an empty pending log, got %d entries", len(ops))
	}

	creates, updates, _ := f.client.calls()
	if updates != 1 {
		t.Errorf("expected one replayed push, got %d", updates)
	}
	if creates != 1 {
		t.Errorf("expected one promotion create, got %d", creates)
	}

	if _, err := f.store.Get(placeholder); err == nil {
		t.Error("placeholder must not survive promotion")
	}

	view := f.svc.View()
	if len(view.OpenTabs) != 1 {
		t.Fatalf("expected one open tab, got %d", len(view.OpenTabs))
	}
	if !view.OpenTabs[0].IsRemote() {
		t.Errorf("open tab must be rewritten to the promoted id, got %s", view.OpenTabs[0])
	}
}

func TestSyncService_SyncPendingStopsWhenUnreachable(t *testing.T) {
	f := newSyncFixture()

	edited := domain.Blob("offline edit")
	f.store.Put(&domain.Document{ID: domain.RemoteID(6), Title: "f.md", Body: edited, SyncState: domain.SyncDirty})
	f.pending.Put(&domain.PendingOperation{
		TargetID:     domain.RemoteID(6),
		Kind:         domain.OpUpdate,
		Payload:      domain.DocumentPatch{Body: &edited},
		BaseModified: time.Now(),
	})
	f.client.setOffline(true)

	if err := f.svc.SyncPending(context.Background()); err != nil {
		t.Fatalf("transport failure must not surface, got %v", err)
	}

	if _, err := f.pending.Get(domain.RemoteID(6)); err != nil {
		t.Error("unreplayed entry must stay queued")
	}
	if !f.svc.Status().Offline {
		t.Error("interrupted replay must mark the session offline")
	}
}

func TestSyncService_HandleEventDocumentDeleted(t *testing.T) {
	f := newSyncFixture()

	id := domain.RemoteID(7)
	f.store.Put(&domain.Document{ID: id, Title: "g.md", SyncState: domain.SyncConflicted})
	f.pending.Put(&domain.PendingOperation{TargetID: id, Kind: domain.OpUpdate})
	f.conflicts.Put(&domain.ConflictRecord{DocumentID: id, Status: domain.ConflictPending})
	f.svc.SetView(ViewState{OpenTabs: []domain.Identifier{id}})

	err := f.svc.HandleEvent(&channel.Event{
		Kind:     channel.EventDocumentDeleted,
		Document: &remote.Document{ID: 7, UpdatedAt: time.Now()},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if _, err := f.store.Get(id); err == nil {
		t.Error("remote delete wins: local record must go")
	}
	if _, err := f.pending.Get(id); err == nil {
		t.Error("queued operation for a deleted target must go")
	}
	if _, err := f.conflicts.Get(id); err == nil {
		t.Error("conflict record for a deleted target must go")
	}
	if len(f.svc.View().OpenTabs) != 0 {
		t.Error("tab for a deleted document must be dropped")
	}
}

func TestSyncService_HandleEventContainers(t *testing.T) {
	f := newSyncFixture()

	err := f.svc.HandleEvent(&channel.Event{
		Kind:      channel.EventContainerCreated,
		Container: &remote.Container{ID: 20, Name: "projects", Rank: 1, UpdatedAt: time.Now()},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, err := f.containers.Get(domain.RemoteID(20)); err != nil {
		t.Fatal("created container missing from replica")
	}

	f.svc.SetView(ViewState{ExpandedContainers: []domain.Identifier{domain.RemoteID(20)}})
	parent := domain.RemoteID(20)
	f.store.Put(&domain.Document{ID: domain.RemoteID(21), Title: "inside.md", ContainerID: &parent, SyncState: domain.SyncClean})

	err = f.svc.HandleEvent(&channel.Event{
		Kind:      channel.EventContainerDeleted,
		Container: &remote.Container{ID: 20, UpdatedAt: time.Now()},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, err := f.containers.Get(domain.RemoteID(20)); err == nil {
		t.Error("deleted container must leave the replica")
	}
	if len(f.svc.View().ExpandedContainers) != 0 {
		t.Error("expansion state for a deleted container must be dropped")
	}
	orphan, _ := f.store.Get(domain.RemoteID(21))
	if orphan.ContainerID != nil {
		t.Error("documents in a deleted container must move to the root")
	}
}

func TestSyncService_SyncSettingsLastWriterWins(t *testing.T) {
	f := newSyncFixture()

	older := time.Now().Add(-time.Hour)
	newer := time.Now()

	// Remote newer: local adopts.
	f.settings.Put(&domain.Settings{Theme: "light", UpdatedAt: older})
	f.client.settings = &domain.Settings{Theme: "dark", UpdatedAt: newer}

	if err := f.svc.SyncSettings(context.Background()); err != nil {
		t.Fatalf("settings sync failed: %v", err)
	}
	local, _ := f.settings.Get()
	if local.Theme != "dark" {
		t.Errorf("expected remote settings to win, got theme %q", local.Theme)
	}

	// Local newer: pushed.
	f.settings.Put(&domain.Settings{Theme: "solarized", UpdatedAt: newer.Add(time.Hour)})
	if err := f.svc.SyncSettings(context.Background()); err != nil {
		t.Fatalf("settings sync failed: %v", err)
	}
	if f.client.settings.Theme != "solarized" {
		t.Errorf("expected local settings to be pushed, got theme %q", f.client.settings.Theme)
	}
}
