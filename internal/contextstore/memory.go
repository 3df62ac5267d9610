package contextstore

import (
	"context"
	"sync"
	"time"

	"github.com/parapet-sh/parapet/internal/models"
	"github.com/parapet-sh/parapet/pkg/logger"
)

// MemoryStore is the default in-process store. Expired entries are dropped
// lazily on read and swept periodically in the background.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]models.SessionContext
	logger   logger.Logger
	now      func() time.Time
	done     chan struct{}
	closed   sync.Once
}

// NewMemoryStore creates a memory store. A sweepInterval of zero disables
// the background sweeper; lazy expiry on read still applies.
func NewMemoryStore(sweepInterval time.Duration, log logger.Logger) *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[string]models.SessionContext),
		logger:   log,
		now:      time.Now,
		done:     make(chan struct{}),
	}
	if sweepInterval > 0 {
		go s.sweepLoop(sweepInterval)
	}
	return s
}

// Get returns the live context for sessionID, if any.
func (s *MemoryStore) Get(_ context.Context, sessionID string) (models.SessionContext, bool, error) {
	s.mu.RLock()
	sc, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return models.SessionContext{}, false, nil
	}
	if sc.Expired(s.now()) {
		s.mu.Lock()
		// Re-check under the write lock; another goroutine may have
		// refreshed the session in between.
		if cur, ok := s.sessions[sessionID]; ok && cur.Expired(s.now()) {
			delete(s.sessions, sessionID)
		}
		s.mu.Unlock()
		return models.SessionContext{}, false, nil
	}
	return sc, true, nil
}

// Put stores assessment for sessionID unless a newer one is already cached.
func (s *MemoryStore) Put(_ context.Context, sessionID string, scope models.AccountScope, assessment *models.PostureAssessment, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cached, found := s.sessions[sessionID]
	if found && cached.Expired(s.now()) {
		found = false
	}
	if !supersedes(assessment, cached, found) {
		s.logger.Debug("Skipping stale assessment write", "session_id", sessionID)
		return nil
	}

	s.sessions[sessionID] = models.SessionContext{
		SessionID:      sessionID,
		Scope:          scope,
		LastAssessment: assessment,
		ExpiresAt:      s.now().Add(ttl),
	}
	return nil
}

// Close stops the background sweeper.
func (s *MemoryStore) Close() error {
	s.closed.Do(func() { close(s.done) })
	return nil
}

func (s *MemoryStore) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.done:
			return
		}
	}
}

func (s *MemoryStore) sweep() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sc := range s.sessions {
		if sc.Expired(now) {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug("Swept expired session contexts", "removed", removed)
	}
}
