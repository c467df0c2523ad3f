package service

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/tekkistudio/tekki-chat/internal/ai"
	"github.com/tekkistudio/tekki-chat/internal/domain"
)

// MockSessionStore is an in-memory domain.SessionStore that stores JSON
// copies, like the real stores do.
type MockSessionStore struct {
	mu       sync.Mutex
	sessions map[string][]byte

	GetCalls  int
	SaveCalls int

	GetError  error
	SaveError error
}

func NewMockSessionStore() *MockSessionStore {
	return &MockSessionStore{sessions: make(map[string][]byte)}
}

func (m *MockSessionStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCalls++
	if m.GetError != nil {
		return nil, m.GetError
	}
	data, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (m *MockSessionStore) Save(ctx context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalls++
	if m.SaveError != nil {
		return m.SaveError
	}
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	m.sessions[s.ID] = data
	return nil
}

func (m *MockSessionStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// MockConversationRepository records inserted exchanges.
type MockConversationRepository struct {
	mu      sync.Mutex
	records []domain.ConversationRecord

	InsertError error
}

func (m *MockConversationRepository) Insert(ctx context.Context, rec *domain.ConversationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertError != nil {
		return m.InsertError
	}
	m.records = append(m.records, *rec)
	return nil
}

func (m *MockConversationRepository) Records() []domain.ConversationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ConversationRecord(nil), m.records...)
}

// MockFunnelRepository records inserted snapshots. When Block is set each
// insert waits for it to be closed.
type MockFunnelRepository struct {
	mu        sync.Mutex
	snapshots []domain.FunnelSnapshot

	Block       chan struct{}
	InsertError error
}

func (m *MockFunnelRepository) InsertSnapshot(ctx context.Context, snap *domain.FunnelSnapshot) error {
	if m.Block != nil {
		<-m.Block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertError != nil {
		return m.InsertError
	}
	m.snapshots = append(m.snapshots, *snap)
	return nil
}

func (m *MockFunnelRepository) Snapshots() []domain.FunnelSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.FunnelSnapshot(nil), m.snapshots...)
}

// MockBusinessRepository serves a fixed set of businesses.
type MockBusinessRepository struct {
	businesses map[uuid.UUID]*domain.Business

	GetByIDCalls int
	GetByIDError error
}

func NewMockBusinessRepository(list ...*domain.Business) *MockBusinessRepository {
	m := &MockBusinessRepository{businesses: make(map[uuid.UUID]*domain.Business)}
	for _, b := range list {
		m.businesses[b.ID] = b
	}
	return m
}

func (m *MockBusinessRepository) ListAvailable(ctx context.Context) ([]*domain.Business, error) {
	var out []*domain.Business
	for _, b := range m.businesses {
		if b.IsAvailable() {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *MockBusinessRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Business, error) {
	m.GetByIDCalls++
	if m.GetByIDError != nil {
		return nil, m.GetByIDError
	}
	return m.businesses[id], nil
}

// MockAcquisitionRepository records created leads.
type MockAcquisitionRepository struct {
	Created     []*domain.AcquisitionRequest
	CreateError error
}

func (m *MockAcquisitionRepository) Create(ctx context.Context, req *domain.AcquisitionRequest) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.Created = append(m.Created, req)
	return nil
}

// MockCompleter answers every request with Response. When Gate is set, the
// first call signals Started and waits for Gate to be closed.
type MockCompleter struct {
	mu    sync.Mutex
	calls int

	Response *ai.CompletionResponse
	Error    error
	Started  chan struct{}
	Gate     chan struct{}
}

func (m *MockCompleter) Name() string { return "mock" }

func (m *MockCompleter) Complete(ctx context.Context, req *ai.CompletionRequest) (*ai.CompletionResponse, error) {
	m.mu.Lock()
	m.calls++
	first := m.calls == 1
	m.mu.Unlock()

	if first && m.Gate != nil {
		if m.Started != nil {
			close(m.Started)
		}
		<-m.Gate
	}
	return m.Response, m.Error
}

func (m *MockCompleter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
