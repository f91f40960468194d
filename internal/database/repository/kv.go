package repository

import (
	"context"
	"database/sql"
)

// KVRepo handles session-scoped values.
type KVRepo struct {
	db *sql.DB
}

func NewKVRepo(db *sql.DB) *KVRepo { return &KVRepo{db: db} }

// Get returns nil, nil when the key is absent.
func (r *KVRepo) Get(ctx context.Context, sessionID, key string) ([]byte, error) {
	row := r.db.QueryRowContext(ctx, `SELECT value FROM session_kv WHERE session_id = ? AND key = ?`, sessionID, key)
	var v []byte
	if err := row.Scan(&v); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return v, nil
}

func (r *KVRepo) Set(ctx context.Context, sessionID, key string, value []byte) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
	INSERT INTO sessions(id, started_at, last_seen_at)
	VALUES (?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	ON CONFLICT(id) DO UPDATE SET last_seen_at=CURRENT_TIMESTAMP;
	`, sessionID); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, `
	INSERT INTO session_kv(session_id, key, value, updated_at)
	VALUES (?, ?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(session_id, key) DO UPDATE SET value=excluded.value, updated_at=CURRENT_TIMESTAMP;
	`, sessionID, key, value); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (r *KVRepo) Delete(ctx context.Context, sessionID, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM session_kv WHERE session_id = ? AND key = ?`, sessionID, key)
	return err
}

func (r *KVRepo) List(ctx context.Context, sessionID string) ([]KVEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT session_id, key, value, updated_at FROM session_kv WHERE session_id = ? ORDER BY key`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []KVEntry
	for rows.Next() {
		var e KVEntry
		if err := rows.Scan(&e.SessionID, &e.Key, &e.Value, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Scope binds the repo to one session so it satisfies a plain key/value contract.
func (r *KVRepo) Scope(sessionID string) *ScopedKV {
	return &ScopedKV{repo: r, session: sessionID}
}

// ScopedKV is a KVRepo view pinned to a single session.
type ScopedKV struct {
	repo    *KVRepo
	session string
}

func (s *ScopedKV) Get(ctx context.Context, key string) ([]byte, error) {
	return s.repo.Get(ctx, s.session, key)
}

func (s *ScopedKV) Set(ctx context.Context, key string, value []byte) error {
	return s.repo.Set(ctx, s.session, key, value)
}

func (s *ScopedKV) Delete(ctx context.Context, key string) error {
	return s.repo.Delete(ctx, s.session, key)
}

// SessionID reports the bound session.
func (s *ScopedKV) SessionID() string { return s.session }
