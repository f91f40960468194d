// Package chart holds the set of charts currently on display.
package chart

import "errors"

var (
	ErrDuplicateID = errors.New("chart: id already registered")
	ErrUnknownID   = errors.New("chart: unknown id")
)

// Series is one labeled sequence. Position in Values is the step number.
type Series struct {
	Label  string
	Values []float64
}

// Entity is a named chart. Its ID is the producing file name.
type Entity struct {
	ID     string
	Series []Series
}

// Clone returns a deep copy.
func (e Entity) Clone() Entity {
	return Entity{ID: e.ID, Series: cloneSeries(e.Series)}
}

// MaxLen is the length of the longest series.
func (e Entity) MaxLen() int {
	n := 0
	for _, s := range e.Series {
		if len(s.Values) > n {
			n = len(s.Values)
		}
	}
	return n
}

func cloneSeries(in []Series) []Series {
	if in == nil {
		return nil
	}
	out := make([]Series, len(in))
	for i, s := range in {
		out[i] = Series{Label: s.Label, Values: append([]float64(nil), s.Values...)}
	}
	return out
}

// Registry is the ordered collection of live charts. Values passed in and
// handed out are copied, so callers never share slices with it.
//
// Not safe for concurrent use.
type Registry struct {
	order []string
	byID  map[string]*Entity
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*Entity)}
}

// Create appends a chart. An existing id is rejected with ErrDuplicateID and
// the registry is left unchanged.
func (r *Registry) Create(id string, series []Series) error {
	if _, ok := r.byID[id]; ok {
		return ErrDuplicateID
	}
	r.byID[id] = &Entity{ID: id, Series: cloneSeries(series)}
	r.order = append(r.order, id)
	return nil
}

// Write replaces the series of id in place, keeping its position.
func (r *Registry) Write(id string, series []Series) error {
	e, ok := r.byID[id]
	if !ok {
		return ErrUnknownID
	}
	e.Series = cloneSeries(series)
	return nil
}

// Remove deletes id and reports whether it was present.
func (r *Registry) Remove(id string) bool {
	if _, ok := r.byID[id]; !ok {
		return false
	}
	delete(r.byID, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

func (r *Registry) Get(id string) (Entity, bool) {
	e, ok := r.byID[id]
	if !ok {
		return Entity{}, false
	}
	return e.Clone(), true
}

// All returns every chart in creation order.
func (r *Registry) All() []Entity {
	out := make([]Entity, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id].Clone())
	}
	return out
}

func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

func (r *Registry) Len() int { return len(r.order) }
