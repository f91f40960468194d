package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jask/simdash/internal/chart"
	"github.com/jask/simdash/internal/feed"
	"github.com/jask/simdash/internal/logging"
	"github.com/jask/simdash/internal/palette"
	"github.com/jask/simdash/internal/projector"
	"github.com/jask/simdash/internal/wire"
)

// Fetcher loads chart payloads from the backend.
type Fetcher interface {
	FetchAll(ctx context.Context) ([]wire.ChartPayload, error)
	FetchOne(ctx context.Context, id string) (wire.ChartPayload, error)
}

// ChangeKind says what a Change did to the displayed state.
type ChangeKind int

const (
	ChangeNone ChangeKind = iota
	ChangeSeeded
	ChangeCreated
	ChangeUpdated
	ChangeRemoved
	ChangeRejected
	ChangeParseFailed
	ChangeConnected
	ChangeDisconnected
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeNone:
		return "none"
	case ChangeSeeded:
		return "seeded"
	case ChangeCreated:
		return "created"
	case ChangeUpdated:
		return "updated"
	case ChangeRemoved:
		return "removed"
	case ChangeRejected:
		return "rejected"
	case ChangeParseFailed:
		return "parse-failed"
	case ChangeConnected:
		return "connected"
	case ChangeDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("change(%d)", int(k))
	}
}

// Change is the result of one seed, notification or channel event.
type Change struct {
	Kind ChangeKind
	ID   string
	// Count is the number of charts loaded by a seed.
	Count int
	Err   error
}

// Monitor owns the live chart state: the registry, the palette store and
// the dispatcher that mutates them. It is driven from a single goroutine.
type Monitor struct {
	Charts   *chart.Registry
	Palettes *palette.Store
	Backend  Fetcher

	dispatcher *feed.Dispatcher
	subs       []func(Change)
}

func NewMonitor(charts *chart.Registry, palettes *palette.Store, backend Fetcher) *Monitor {
	return &Monitor{
		Charts:     charts,
		Palettes:   palettes,
		Backend:    backend,
		dispatcher: feed.NewDispatcher(charts, palettes),
	}
}

// Subscribe registers fn to observe every change the monitor makes.
func (m *Monitor) Subscribe(fn func(Change)) {
	m.subs = append(m.subs, fn)
}

func (m *Monitor) notify(c Change) Change {
	for _, fn := range m.subs {
		fn(c)
	}
	return c
}

// Seed loads the batch endpoint into the registry.
func (m *Monitor) Seed(ctx context.Context) (Change, error) {
	if m.Backend == nil {
		return Change{}, errors.New("monitor: backend not configured")
	}
	payloads, err := m.Backend.FetchAll(ctx)
	if err != nil {
		return Change{}, fmt.Errorf("seed: %w", err)
	}
	return m.SeedFrom(ctx, payloads), nil
}

// SeedFrom registers payloads in order, assigning palettes where missing.
// Charts already registered get their series replaced.
func (m *Monitor) SeedFrom(ctx context.Context, payloads []wire.ChartPayload) Change {
	for _, p := range payloads {
		m.upsert(ctx, p)
	}
	logging.Infof("seeded %d charts", len(payloads))
	return m.notify(Change{Kind: ChangeSeeded, Count: len(payloads)})
}

func (m *Monitor) upsert(ctx context.Context, p wire.ChartPayload) {
	series := p.Series()
	m.Palettes.GetOrCreate(ctx, p.File, len(series))
	if err := m.Charts.Create(p.File, series); errors.Is(err, chart.ErrDuplicateID) {
		_ = m.Charts.Write(p.File, series)
	}
}

// Handle turns a channel event into a state change.
func (m *Monitor) Handle(ctx context.Context, ev feed.Event) Change {
	switch ev.Kind {
	case feed.EventReceived:
		return m.Apply(ctx, ev.Notification)
	case feed.EventParseFailed:
		return m.notify(Change{Kind: ChangeParseFailed, Err: ev.Err})
	case feed.EventOpened:
		return m.notify(Change{Kind: ChangeConnected})
	case feed.EventClosed:
		return m.notify(Change{Kind: ChangeDisconnected, Err: ev.Err})
	default:
		return Change{Kind: ChangeNone, Err: ev.Err}
	}
}

// Apply dispatches one notification.
func (m *Monitor) Apply(ctx context.Context, n feed.Notification) Change {
	out := m.dispatcher.Apply(ctx, n)
	c := Change{ID: n.ChartID(), Err: out.Err}
	switch {
	case !out.Changed:
		c.Kind = ChangeRejected
		logging.Debugf("%T %s rejected: %v", n, c.ID, out.Err)
	default:
		switch n.(type) {
		case feed.Create:
			c.Kind = ChangeCreated
		case feed.Write:
			c.Kind = ChangeUpdated
		case feed.Remove:
			c.Kind = ChangeRemoved
		}
	}
	return m.notify(c)
}

// Views projects every chart in display order.
func (m *Monitor) Views() []projector.RenderView {
	all := m.Charts.All()
	out := make([]projector.RenderView, 0, len(all))
	for _, e := range all {
		p, _ := m.Palettes.Get(e.ID)
		out = append(out, projector.Project(e, p))
	}
	return out
}

func (m *Monitor) View(id string) (projector.RenderView, bool) {
	e, ok := m.Charts.Get(id)
	if !ok {
		return projector.RenderView{}, false
	}
	p, _ := m.Palettes.Get(id)
	return projector.Project(e, p), true
}

// Summary returns the latest value per series of id.
func (m *Monitor) Summary(id string) (projector.SummaryView, bool) {
	e, ok := m.Charts.Get(id)
	if !ok {
		return projector.SummaryView{}, false
	}
	return projector.Summarize(e), true
}

// Refresh re-fetches id from the detail endpoint and stores the result.
func (m *Monitor) Refresh(ctx context.Context, id string) (Change, error) {
	if m.Backend == nil {
		return Change{}, errors.New("monitor: backend not configured")
	}
	p, err := m.Backend.FetchOne(ctx, id)
	if err != nil {
		if s, ok := m.Suggest(id); ok {
			return Change{}, fmt.Errorf("%w (did you mean %q?)", err, s)
		}
		return Change{}, err
	}
	return m.ApplyDetail(ctx, p), nil
}

// ApplyDetail replaces the data of a chart that is still registered. A
// detail response never brings back a chart that was removed meanwhile.
func (m *Monitor) ApplyDetail(_ context.Context, p wire.ChartPayload) Change {
	if err := m.Charts.Write(p.File, p.Series()); err != nil {
		return m.notify(Change{Kind: ChangeRejected, ID: p.File, Err: err})
	}
	return m.notify(Change{Kind: ChangeUpdated, ID: p.File})
}
