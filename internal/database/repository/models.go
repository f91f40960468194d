package repository

import "time"

// Session represents a sessions row. Palettes and other session-scoped
// values live under a session and are dropped with it.
type Session struct {
	ID         string
	StartedAt  time.Time
	LastSeenAt time.Time
}

// KVEntry represents a session_kv row.
type KVEntry struct {
	SessionID string
	Key       string
	Value     []byte
	UpdatedAt time.Time
}

// sqliteTime matches the text CURRENT_TIMESTAMP writes, so comparisons stay lexical.
const sqliteTime = "2006-01-02 15:04:05"
