package feed

import (
	"context"
	"errors"
	"fmt"

	"github.com/jask/simdash/internal/chart"
	"github.com/jask/simdash/internal/palette"
)

// Registry is the chart collection notifications mutate.
type Registry interface {
	Create(id string, series []chart.Series) error
	Write(id string, series []chart.Series) error
	Remove(id string) bool
}

// Palettes is the color store notifications mutate.
type Palettes interface {
	GetOrCreate(ctx context.Context, id string, n int) palette.Palette
	Delete(ctx context.Context, id string)
}

// Outcome describes what applying one notification did.
type Outcome struct {
	Notification Notification
	// Changed is false for rejected or no-op notifications.
	Changed bool
	// Err explains a rejection: chart.ErrDuplicateID or chart.ErrUnknownID.
	Err error
}

// Dispatcher applies notifications one at a time.
type Dispatcher struct {
	reg Registry
	pal Palettes
}

func NewDispatcher(reg Registry, pal Palettes) *Dispatcher {
	return &Dispatcher{reg: reg, pal: pal}
}

// Apply runs n to completion against the registry and palette store.
func (d *Dispatcher) Apply(ctx context.Context, n Notification) Outcome {
	out := Outcome{Notification: n}
	switch n := n.(type) {
	case Create:
		if err := d.reg.Create(n.ID, n.Series); err != nil {
			out.Err = err
			return out
		}
		d.pal.GetOrCreate(ctx, n.ID, len(n.Series))
		out.Changed = true
	case Write:
		if err := d.reg.Write(n.ID, n.Series); err != nil {
			out.Err = err
			return out
		}
		out.Changed = true
	case Remove:
		if !d.reg.Remove(n.ID) {
			out.Err = chart.ErrUnknownID
		} else {
			out.Changed = true
		}
		// palettes can outlive a registry entry after a restart
		d.pal.Delete(ctx, n.ID)
	default:
		out.Err = fmt.Errorf("%w: %T", ErrUnknownOp, n)
	}
	return out
}

// Rejected reports whether o was a duplicate create or targeted an unknown id.
func (o Outcome) Rejected() bool {
	return errors.Is(o.Err, chart.ErrDuplicateID) || errors.Is(o.Err, chart.ErrUnknownID)
}
