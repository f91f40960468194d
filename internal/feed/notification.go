// Package feed consumes the backend's push channel and applies its
// notifications to the chart registry and palette store.
package feed

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jask/simdash/internal/chart"
	"github.com/jask/simdash/internal/wire"
)

// ErrUnknownOp is returned by Decode for a well-formed frame with an opcode
// this client does not handle.
var ErrUnknownOp = errors.New("feed: unknown opcode")

// Notification is one of Create, Write or Remove.
type Notification interface {
	ChartID() string
	notification()
}

// Create announces a new chart.
type Create struct {
	ID     string
	Series []chart.Series
}

// Write replaces the series of an existing chart.
type Write struct {
	ID     string
	Series []chart.Series
}

// Remove retires a chart.
type Remove struct {
	ID string
}

func (n Create) ChartID() string { return n.ID }
func (n Write) ChartID() string  { return n.ID }
func (n Remove) ChartID() string { return n.ID }

func (Create) notification() {}
func (Write) notification()  {}
func (Remove) notification() {}

// Decode parses one push frame. Structural problems wrap wire.ErrMalformed.
// REMOVE takes its target from the top-level file field and falls back to
// response.file when that is empty.
func Decode(b []byte) (Notification, error) {
	var f wire.Frame
	if err := json.Unmarshal(b, &f); err != nil {
		if errors.Is(err, wire.ErrMalformed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", wire.ErrMalformed, err)
	}
	switch f.Op {
	case wire.OpCreate, wire.OpWrite:
		if f.Response == nil || f.Response.File == "" {
			return nil, fmt.Errorf("%w: %s without response.file", wire.ErrMalformed, f.Op)
		}
		if f.Op == wire.OpCreate {
			return Create{ID: f.Response.File, Series: f.Response.Series()}, nil
		}
		return Write{ID: f.Response.File, Series: f.Response.Series()}, nil
	case wire.OpRemove:
		id := f.File
		if id == "" && f.Response != nil {
			id = f.Response.File
		}
		if id == "" {
			return nil, fmt.Errorf("%w: REMOVE without file", wire.ErrMalformed)
		}
		return Remove{ID: id}, nil
	case "":
		return nil, fmt.Errorf("%w: missing op", wire.ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOp, f.Op)
	}
}
