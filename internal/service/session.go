package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jask/simdash/internal/database"
	"github.com/jask/simdash/internal/database/repository"
	"github.com/jask/simdash/internal/logging"
)

// SessionService scopes persisted palettes to a session. A run without a
// configured id gets a fresh one that is purged when the run ends.
type SessionService struct {
	Sessions *repository.SessionRepo
	// ConfiguredID pins the session across runs when non-empty.
	ConfiguredID string
	TTL          time.Duration
}

// ActiveSession is the session a run writes under.
type ActiveSession struct {
	ID        string
	Ephemeral bool
}

func (s *SessionService) Start(ctx context.Context) (ActiveSession, error) {
	as := ActiveSession{ID: s.ConfiguredID}
	if as.ID == "" {
		as = ActiveSession{ID: uuid.NewString(), Ephemeral: true}
	}
	if err := s.Sessions.Touch(ctx, as.ID); err != nil {
		return ActiveSession{}, fmt.Errorf("start session: %w", err)
	}
	logging.Debugf("session %s started (ephemeral=%v)", as.ID, as.Ephemeral)
	return as, nil
}

// End purges an ephemeral session and bumps a pinned one.
func (s *SessionService) End(ctx context.Context, as ActiveSession) error {
	if as.Ephemeral {
		if err := s.Sessions.Delete(ctx, as.ID); err != nil {
			return fmt.Errorf("end session: %w", err)
		}
		return nil
	}
	return s.Sessions.Touch(ctx, as.ID)
}

// PurgeStale deletes sessions idle for longer than TTL. A zero TTL keeps everything.
func (s *SessionService) PurgeStale(ctx context.Context) (int64, error) {
	if s.TTL <= 0 {
		return 0, nil
	}
	n, err := s.Sessions.DeleteIdleSince(ctx, database.Now().Add(-s.TTL))
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	if n > 0 {
		logging.Infof("purged %d stale sessions", n)
	}
	return n, nil
}
