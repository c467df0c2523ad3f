package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/tekkistudio/tekki-chat/internal/clock"
	"github.com/tekkistudio/tekki-chat/internal/domain"
	apperrors "github.com/tekkistudio/tekki-chat/internal/errors"
)

// MemoryStore keeps sessions in process memory. It is used when no Redis
// address is configured and in tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	clock   clock.Clock
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewMemoryStore creates a MemoryStore. A nil clock uses system time.
func NewMemoryStore(ttl time.Duration, c clock.Clock) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if c == nil {
		c = clock.New()
	}
	return &MemoryStore{entries: make(map[string]memoryEntry), ttl: ttl, clock: c}
}

// Get returns a copy of the session, nil when missing or expired.
func (s *MemoryStore) Get(_ context.Context, id string) (*domain.Session, error) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if ok && !s.clock.Now().Before(e.expiresAt) {
		delete(s.entries, id)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}

	var sess domain.Session
	if err := json.Unmarshal(e.data, &sess); err != nil {
		return nil, apperrors.StoreError("session.Get", err)
	}
	return &sess, nil
}

// Save stores a copy of the session and restarts its TTL.
func (s *MemoryStore) Save(_ context.Context, sess *domain.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return apperrors.StoreError("session.Save", err)
	}
	s.mu.Lock()
	s.entries[sess.ID] = memoryEntry{data: data, expiresAt: s.clock.Now().Add(s.ttl)}
	s.mu.Unlock()
	return nil
}

// Delete removes the session.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
	return nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// Len returns the number of stored sessions, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
