// Package palette assigns each chart a stable, session-persistent list of
// series colors.
package palette

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/jask/simdash/internal/logging"
)

// DefaultKey is the KV key the whole mapping is stored under.
const DefaultKey = "colors"

// Options configures a Store.
type Options struct {
	// Key overrides DefaultKey.
	Key string
	// Rand seeds color generation. Nil means a randomly seeded source.
	Rand *rand.Rand
}

// Store maps chart ids to palettes. Every mutation re-reads the persisted
// blob, applies the change and writes the whole mapping back. Reads are
// served from the last successfully loaded state.
//
// A Store is not safe for concurrent use; the dispatch loop owns it.
type Store struct {
	kv    KV
	key   string
	rng   *rand.Rand
	cache map[string]Palette
	err   error
}

// NewStore returns an empty Store over kv. Call Load to restore persisted state.
func NewStore(kv KV, opts Options) *Store {
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Store{kv: kv, key: opts.Key, rng: opts.Rand, cache: make(map[string]Palette)}
}

// Load restores the persisted mapping. Missing or corrupt data yields an
// empty store; the error is returned for reporting but the Store stays usable.
func (s *Store) Load(ctx context.Context) error {
	s.cache = make(map[string]Palette)
	s.cache = s.acquire(ctx)
	return s.err
}

// GetOrCreate returns the palette for id, generating n colors if id has none.
// An existing palette is returned as-is even if its length differs from n.
func (s *Store) GetOrCreate(ctx context.Context, id string, n int) Palette {
	cur := s.acquire(ctx)
	if p, ok := cur[id]; ok {
		s.cache = cur
		return p.Clone()
	}
	p := Generate(s.rng, n)
	cur[id] = p
	s.cache = cur
	s.persist(ctx, cur)
	return p.Clone()
}

// Delete drops id's palette. Deleting an unknown id is a no-op apart from
// re-persisting the current mapping.
func (s *Store) Delete(ctx context.Context, id string) {
	cur := s.acquire(ctx)
	delete(cur, id)
	s.cache = cur
	s.persist(ctx, cur)
}

// Get returns the cached palette for id.
func (s *Store) Get(id string) (Palette, bool) {
	p, ok := s.cache[id]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// Snapshot returns a copy of the cached mapping.
func (s *Store) Snapshot() map[string]Palette {
	out := make(map[string]Palette, len(s.cache))
	for id, p := range s.cache {
		out[id] = p.Clone()
	}
	return out
}

// Len reports how many ids hold a palette.
func (s *Store) Len() int { return len(s.cache) }

// Err returns the most recent persistence error, or nil after a clean round.
func (s *Store) Err() error { return s.err }

// acquire reads the persisted mapping. An absent blob is an empty mapping. A
// failed read or an undecodable blob falls back to a copy of the cache, which
// the next persist writes over the bad data.
func (s *Store) acquire(ctx context.Context) map[string]Palette {
	data, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, ErrNotFound) {
		data, err = nil, nil
	}
	if err != nil {
		s.err = fmt.Errorf("read palettes: %w", err)
		logging.Warnf("palette store: %v; using in-memory state", s.err)
		return s.Snapshot()
	}
	m, err := Decode(data)
	if err != nil {
		s.err = err
		logging.Warnf("palette store: %v; using in-memory state", err)
		return s.Snapshot()
	}
	s.err = nil
	return m
}

func (s *Store) persist(ctx context.Context, m map[string]Palette) {
	data, err := Encode(m)
	if err == nil {
		err = s.kv.Set(ctx, s.key, data)
	}
	if err != nil {
		s.err = fmt.Errorf("write palettes: %w", err)
		logging.Warnf("palette store: %v", s.err)
		return
	}
	s.err = nil
}
