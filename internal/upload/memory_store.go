package upload

import (
	"context"
	"sync"
	"time"

	"github.com/filegate/filegate/core/logger"
	"log/slog"
)

// MemoryStore keeps sessions in process memory with TTL eviction. Expired
// sessions are dropped lazily on Get and periodically by a janitor goroutine
// so abandoned conversations never accumulate.
type MemoryStore struct {
	ttl time.Duration

	mu       sync.RWMutex
	sessions map[int64]*Session

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewMemoryStore builds the store and starts its janitor. sweepInterval <= 0
// disables the background sweep; lazy expiry on Get still applies.
func NewMemoryStore(ttl, sweepInterval time.Duration) *MemoryStore {
	m := &MemoryStore{
		ttl:      ttl,
		sessions: make(map[int64]*Session),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	if sweepInterval > 0 {
		go m.janitor(sweepInterval)
	} else {
		close(m.done)
	}
	return m
}

// Get returns the user's live session or ErrNotFound.
func (m *MemoryStore) Get(_ context.Context, userID int64) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[userID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if s.Expired(m.ttl, time.Now().UTC()) {
		m.mu.Lock()
		delete(m.sessions, userID)
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	copied := *s
	return &copied, nil
}

// Put stores the session, replacing any previous one for the same user.
func (m *MemoryStore) Put(_ context.Context, s *Session) error {
	copied := *s
	m.mu.Lock()
	m.sessions[s.UserID] = &copied
	m.mu.Unlock()
	return nil
}

// Delete removes the user's session if present.
func (m *MemoryStore) Delete(_ context.Context, userID int64) error {
	m.mu.Lock()
	delete(m.sessions, userID)
	m.mu.Unlock()
	return nil
}

// Close stops the janitor.
func (m *MemoryStore) Close() error {
	m.stopOnce.Do(func() { close(m.stop) })
	<-m.done
	return nil
}

// Len reports the number of live sessions (diagnostics only).
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *MemoryStore) janitor(interval time.Duration) {
	defer close(m.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *MemoryStore) sweep() {
	now := time.Now().UTC()
	var evicted int

	m.mu.Lock()
	for id, s := range m.sessions {
		if s.Expired(m.ttl, now) {
			delete(m.sessions, id)
			evicted++
		}
	}
	remaining := len(m.sessions)
	m.mu.Unlock()

	if evicted > 0 {
		logger.Info(logger.Background(), "store", "session.sweep",
			slog.Int("evicted", evicted),
			slog.Int("remaining", remaining),
		)
	}
}
