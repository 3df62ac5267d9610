// Package contextstore caches per-session assessment context so repeated
// questions in the same conversation do not trigger a fresh fan-out.
package contextstore

import (
	"context"
	"fmt"
	"time"

	"github.com/parapet-sh/parapet/internal/config"
	"github.com/parapet-sh/parapet/internal/models"
	"github.com/parapet-sh/parapet/pkg/logger"
)

// Store holds session context with a retention window. Implementations must
// be safe for concurrent use.
//
// Put applies last-write-wins by assessment generation time: storing an
// assessment older than the one already cached for the session is a no-op.
// Get never returns an expired context.
type Store interface {
	Get(ctx context.Context, sessionID string) (models.SessionContext, bool, error)
	Put(ctx context.Context, sessionID string, scope models.AccountScope, assessment *models.PostureAssessment, ttl time.Duration) error
	Close() error
}

// New builds the store selected by cfg.
func New(cfg config.CacheConfig, log logger.Logger) (Store, error) {
	switch cfg.Backend {
	case "memory", "":
		return NewMemoryStore(cfg.SweepInterval, log), nil
	case "bolt":
		return NewBoltStore(cfg.Path, log)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// supersedes reports whether the incoming assessment should replace the
// cached one.
func supersedes(incoming *models.PostureAssessment, cached models.SessionContext, found bool) bool {
	if incoming == nil {
		return false
	}
	if !found || cached.LastAssessment == nil {
		return true
	}
	return !incoming.GeneratedAt.Before(cached.LastAssessment.GeneratedAt)
}
