package contextstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/parapet-sh/parapet/internal/models"
	"github.com/parapet-sh/parapet/pkg/logger"
)

var bucketSessions = []byte("sessions")

// BoltStore persists session context across process restarts. Entries are
// JSON values keyed by session ID; expiry is enforced on read.
type BoltStore struct {
	db     *bbolt.DB
	logger logger.Logger
	now    func() time.Time
}

// NewBoltStore opens (or creates) the database at path.
func NewBoltStore(path string, log logger.Logger) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open context store: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSessions)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize context store: %w", err)
	}

	return &BoltStore{db: db, logger: log, now: time.Now}, nil
}

// Get returns the live context for sessionID, deleting it if expired.
func (s *BoltStore) Get(_ context.Context, sessionID string) (models.SessionContext, bool, error) {
	var sc models.SessionContext
	var found bool

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSessions)
		raw := bucket.Get([]byte(sessionID))
		if raw == nil {
			return nil
		}
		if err := json.Unmarshal(raw, &sc); err != nil {
			// A corrupt entry is unreadable either way; drop it.
			s.logger.Warn("Dropping unreadable session context", "session_id", sessionID, "error", err)
			return bucket.Delete([]byte(sessionID))
		}
		if sc.Expired(s.now()) {
			sc = models.SessionContext{}
			return bucket.Delete([]byte(sessionID))
		}
		found = true
		return nil
	})
	if err != nil {
		return models.SessionContext{}, false, fmt.Errorf("failed to read session context: %w", err)
	}
	return sc, found, nil
}

// Put stores assessment for sessionID unless a newer one is already cached.
// The staleness check and the write share one transaction, so concurrent
// writers for the same session cannot clobber a newer entry.
func (s *BoltStore) Put(_ context.Context, sessionID string, scope models.AccountScope, assessment *models.PostureAssessment, ttl time.Duration) error {
	sc := models.SessionContext{
		SessionID:      sessionID,
		Scope:          scope,
		LastAssessment: assessment,
		ExpiresAt:      s.now().Add(ttl),
	}
	raw, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("failed to encode session context: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSessions)

		var cached models.SessionContext
		var found bool
		if existing := bucket.Get([]byte(sessionID)); existing != nil {
			if err := json.Unmarshal(existing, &cached); err != nil {
				// A corrupt entry is unreadable either way; overwrite it.
				s.logger.Warn("Replacing unreadable session context", "session_id", sessionID, "error", err)
			} else if !cached.Expired(s.now()) {
				found = true
			}
		}

		if !supersedes(assessment, cached, found) {
			s.logger.Debug("Skipping stale assessment write", "session_id", sessionID)
			return nil
		}
		return bucket.Put([]byte(sessionID), raw)
	})
	if err != nil {
		return fmt.Errorf("failed to write session context: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
