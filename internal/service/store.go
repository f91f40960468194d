package service

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/jask/simdash/internal/config"
	"github.com/jask/simdash/internal/database"
	"github.com/jask/simdash/internal/database/repository"
	"github.com/jask/simdash/internal/logging"
	"github.com/jask/simdash/internal/palette"
	"github.com/jask/simdash/internal/prefs"
)

// SessionStore is the palette KV for one run plus what it takes to release it.
type SessionStore struct {
	KV      palette.KV
	Session ActiveSession

	db       *sql.DB
	sessions *SessionService
	dir      string
}

// OpenSessionStore prepares the configured store driver, purges stale
// sessions and starts this run's session.
func OpenSessionStore(ctx context.Context, cfg config.Config) (*SessionStore, error) {
	switch cfg.Store.Driver {
	case "", "sqlite":
		db, err := database.Prepare(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		svc := &SessionService{
			Sessions:     repository.NewSessionRepo(db),
			ConfiguredID: cfg.Session.ID,
			TTL:          cfg.Session.TTL,
		}
		if _, err := svc.PurgeStale(ctx); err != nil {
			logging.Warnf("%v", err)
		}
		as, err := svc.Start(ctx)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return &SessionStore{
			KV:       repository.NewKVRepo(db).Scope(as.ID),
			Session:  as,
			db:       db,
			sessions: svc,
		}, nil
	case "file":
		if err := purgeStaleDirs(cfg.Store.Dir, cfg.Session.TTL); err != nil {
			logging.Warnf("purge session dirs: %v", err)
		}
		as := ActiveSession{ID: cfg.Session.ID}
		if as.ID == "" {
			as = ActiveSession{ID: uuid.NewString(), Ephemeral: true}
		}
		dir := filepath.Join(cfg.Store.Dir, as.ID)
		return &SessionStore{KV: prefs.NewFileKV(dir), Session: as, dir: dir}, nil
	case "memory":
		return &SessionStore{KV: palette.NewMemoryKV(), Session: ActiveSession{ID: "memory", Ephemeral: true}}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// Close ends the session, dropping its palettes if it was ephemeral.
func (s *SessionStore) Close(ctx context.Context) error {
	var err error
	switch {
	case s.sessions != nil:
		err = s.sessions.End(ctx, s.Session)
	case s.dir != "" && s.Session.Ephemeral:
		if fkv, ok := s.KV.(*prefs.FileKV); ok {
			err = fkv.Clear()
		}
		if rmErr := os.Remove(s.dir); err == nil && rmErr != nil && !os.IsNotExist(rmErr) {
			err = rmErr
		}
	case s.dir != "":
		now := time.Now()
		if mkErr := os.MkdirAll(s.dir, 0o755); mkErr == nil {
			err = os.Chtimes(s.dir, now, now)
		}
	}
	if s.db != nil {
		if cerr := s.db.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// DB exposes the sqlite handle, or nil for other drivers.
func (s *SessionStore) DB() *sql.DB { return s.db }

func purgeStaleDirs(root string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	cutoff := time.Now().Add(-ttl)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.RemoveAll(filepath.Join(root, e.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}
