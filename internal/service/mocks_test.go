package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rghv234/wolffia/internal/domain"
	"github.com/rghv234/wolffia/internal/remote"
	"github.com/rghv234/wolffia/internal/repository"
)

type mockDocStore struct {
	mu   sync.Mutex
	docs map[string]domain.Document
}

func newMockDocStore() *mockDocStore {
	return &mockDocStore{docs: make(map[string]domain.Document)}
}

func (m *mockDocStore) Get(id domain.Identifier) (*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc, ok := m.docs[id.Key()]; ok {
		copied := doc
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockDocStore) Put(doc *domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.ID.Key()] = *doc
	return nil
}

func (m *mockDocStore) Delete(id domain.Identifier) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, id.Key())
	return nil
}

func (m *mockDocStore) List() ([]*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var docs []*domain.Document
	for key := range m.docs {
		doc := m.docs[key]
		docs = append(docs, &doc)
	}
	return docs, nil
}

func (m *mockDocStore) ListByContainer(containerID domain.Identifier) ([]*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var docs []*domain.Document
	for key := range m.docs {
		doc := m.docs[key]
		if doc.ContainerID != nil && doc.ContainerID.Equal(containerID) {
			docs = append(docs, &doc)
		}
	}
	return docs, nil
}

func (m *mockDocStore) ReplaceAll(docs []*domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = make(map[string]domain.Document, len(docs))
	for _, doc := range docs {
		m.docs[doc.ID.Key()] = *doc
	}
	return nil
}

type mockContainerStore struct {
	mu         sync.Mutex
	containers map[string]domain.Container
}

func newMockContainerStore() *mockContainerStore {
	return &mockContainerStore{containers: make(map[string]domain.Container)}
}

func (m *mockContainerStore) Get(id domain.Identifier) (*domain.Container, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.containers[id.Key()]; ok {
		copied := c
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockContainerStore) Put(container *domain.Container) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.containers[container.ID.Key()] = *container
	return nil
}

func (m *mockContainerStore) Delete(id domain.Identifier) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.containers, id.Key())
	return nil
}

func (m *mockContainerStore) List() ([]*domain.Container, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var containers []*domain.Container
	for key := range m.containers {
		c := m.containers[key]
		containers = append(containers, &c)
	}
	return containers, nil
}

func (m *mockContainerStore) ReplaceAll(containers []*domain.Container) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.containers = make(map[string]domain.Container, len(containers))
	for _, c := range containers {
		m.containers[c.ID.Key()] = *c
	}
	return nil
}

type mockPendingLog struct {
	mu  sync.Mutex
	ops map[string]domain.PendingOperation
}

func newMockPendingLog() *mockPendingLog {
	return &mockPendingLog{ops: make(map[string]domain.PendingOperation)}
}

func (m *mockPendingLog) Get(targetID domain.Identifier) (*domain.PendingOperation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if op, ok := m.ops[targetID.Key()]; ok {
		copied := op
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockPendingLog) Put(op *domain.PendingOperation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops[op.TargetID.Key()] = *op
	return nil
}

func (m *mockPendingLog) Delete(targetID domain.Identifier) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ops, targetID.Key())
	return nil
}

func (m *mockPendingLog) List() ([]*domain.PendingOperation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ops []*domain.PendingOperation
	for key := range m.ops {
		op := m.ops[key]
		ops = append(ops, &op)
	}
	return ops, nil
}

type mockConflictStore struct {
	mu      sync.Mutex
	records map[string]domain.ConflictRecord
}

func newMockConflictStore() *mockConflictStore {
	return &mockConflictStore{records: make(map[string]domain.ConflictRecord)}
}

func (m *mockConflictStore) Get(documentID domain.Identifier) (*domain.ConflictRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if record, ok := m.records[documentID.Key()]; ok {
		copied := record
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockConflictStore) Put(record *domain.ConflictRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.DocumentID.Key()] = *record
	return nil
}

func (m *mockConflictStore) Delete(documentID domain.Identifier) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, documentID.Key())
	return nil
}

func (m *mockConflictStore) ListPending() ([]*domain.ConflictRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var records []*domain.ConflictRecord
	for key := range m.records {
		record := m.records[key]
		if record.Status == domain.ConflictPending {
			records = append(records, &record)
		}
	}
	return records, nil
}

type mockSettingsStore struct {
	mu       sync.Mutex
	settings *domain.Settings
}

func (m *mockSettingsStore) Get() (*domain.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings == nil {
		return nil, repository.ErrNotFound
	}
	copied := *m.settings
	return &copied, nil
}

func (m *mockSettingsStore) Put(settings *domain.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *settings
	m.settings = &copied
	return nil
}

// mockRemote is a scriptable in-memory authoritative store. failTransport
// makes every call fail at the network level; reject makes mutations fail
// with an application error.
type mockRemote struct {
	mu            sync.Mutex
	nextID        int64
	documents     map[int64]remote.Document
	containers    []remote.Container
	settings      *domain.Settings
	failTransport bool
	reject        *remote.RejectedError

	createCalls int
	updateCalls int
	deleteCalls int

	lastCreated remote.NewDocument
	lastPatch   remote.DocumentPatch
	lastPatchID int64
}

func newMockRemote() *mockRemote {
	return &mockRemote{nextID: 100, documents: make(map[int64]remote.Document)}
}

func (m *mockRemote) fail() error {
	if m.failTransport {
		return &remote.TransportError{Op: "mock", Err: errors.New("connection refused")}
	}
	if m.reject != nil {
		return m.reject
	}
	return nil
}

func (m *mockRemote) ListDocuments(ctx context.Context) ([]remote.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	var docs []remote.Document
	for id := range m.documents {
		docs = append(docs, m.documents[id])
	}
	return docs, nil
}

func (m *mockRemote) GetDocument(ctx context.Context, id int64) (*remote.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	if doc, ok := m.documents[id]; ok {
		copied := doc
		return &copied, nil
	}
	return nil, &remote.RejectedError{Op: "mock", StatusCode: 404}
}

func (m *mockRemote) CreateDocument(ctx context.Context, doc remote.NewDocument) (*remote.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	m.createCalls++
	m.lastCreated = doc
	m.nextID++
	created := remote.Document{
		ID:          m.nextID,
		ContainerID: doc.ContainerID,
		Title:       doc.Title,
		Body:        doc.Body,
		UpdatedAt:   time.Now(),
	}
	m.documents[created.ID] = created
	return &created, nil
}

func (m *mockRemote) UpdateDocument(ctx context.Context, id int64, patch remote.DocumentPatch) (*remote.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	m.updateCalls++
	m.lastPatch = patch
	m.lastPatchID = id

	doc, ok := m.documents[id]
	if !ok {
		return nil, &remote.RejectedError{Op: "mock", StatusCode: 404}
	}
	if patch.Title != nil {
		doc.Title = *patch.Title
	}
	if patch.Body != nil {
		doc.Body = *patch.Body
	}
	if patch.ContainerID != nil {
		doc.ContainerID = patch.ContainerID
	}
	doc.UpdatedAt = time.Now()
	m.documents[id] = doc
	return &doc, nil
}

func (m *mockRemote) DeleteDocument(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	m.deleteCalls++
	if _, ok := m.documents[id]; !ok {
		return &remote.RejectedError{Op: "mock", StatusCode: 404}
	}
	delete(m.documents, id)
	return nil
}

func (m *mockRemote) ListContainers(ctx context.Context) ([]remote.Container, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	return append([]remote.Container(nil), m.containers...), nil
}

func (m *mockRemote) GetSettings(ctx context.Context) (*domain.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	if m.settings == nil {
		return &domain.Settings{}, nil
	}
	copied := *m.settings
	return &copied, nil
}

func (m *mockRemote) PutSettings(ctx context.Context, settings *domain.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	copied := *settings
	m.settings = &copied
	return nil
}

func (m *mockRemote) setOffline(offline bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failTransport = offline
}

func (m *mockRemote) seed(doc remote.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents[doc.ID] = doc
}

func (m *mockRemote) calls() (create, update, del int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createCalls, m.updateCalls, m.deleteCalls
}
