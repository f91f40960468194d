// Package wire defines the JSON shapes exchanged with the simulation backend.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jask/simdash/internal/chart"
)

// ErrMalformed marks a payload that did not have the expected structure.
var ErrMalformed = errors.New("wire: malformed payload")

// Push channel opcodes.
const (
	OpCreate = "CREATE"
	OpWrite  = "WRITE"
	OpRemove = "REMOVE"
)

// Dataset is one series. Older producers send header/values, newer ones
// label/data; both are accepted and label/data is written.
type Dataset struct {
	Label  string
	Values []float64
}

func (d *Dataset) UnmarshalJSON(b []byte) error {
	var raw struct {
		Header *string    `json:"header"`
		Label  *string    `json:"label"`
		Values *[]*float64 `json:"values"`
		Data   *[]*float64 `json:"data"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch {
	case raw.Label != nil:
		d.Label = *raw.Label
	case raw.Header != nil:
		d.Label = *raw.Header
	default:
		return fmt.Errorf("%w: dataset without label", ErrMalformed)
	}
	var vals []*float64
	switch {
	case raw.Data != nil:
		vals = *raw.Data
	case raw.Values != nil:
		vals = *raw.Values
	default:
		return fmt.Errorf("%w: dataset %q without values", ErrMalformed, d.Label)
	}
	d.Values = make([]float64, len(vals))
	for i, v := range vals {
		// a gap would otherwise read as zero
		if v == nil {
			return fmt.Errorf("%w: dataset %q has null at step %d", ErrMalformed, d.Label, i)
		}
		d.Values[i] = *v
	}
	return nil
}

func (d Dataset) MarshalJSON() ([]byte, error) {
	vals := d.Values
	if vals == nil {
		vals = []float64{}
	}
	return json.Marshal(struct {
		Label string    `json:"label"`
		Data  []float64 `json:"data"`
	}{d.Label, vals})
}

// ChartData is the chart body. Labels, when sent, are ignored on decode.
type ChartData struct {
	Labels   []json.RawMessage `json:"labels,omitempty"`
	Datasets []Dataset         `json:"datasets"`
}

// ChartPayload is one chart as fetched or pushed.
type ChartPayload struct {
	File string    `json:"file"`
	Data ChartData `json:"data"`
}

// Series converts the datasets to registry series.
func (p ChartPayload) Series() []chart.Series {
	out := make([]chart.Series, len(p.Data.Datasets))
	for i, d := range p.Data.Datasets {
		out[i] = chart.Series{Label: d.Label, Values: append([]float64(nil), d.Values...)}
	}
	return out
}

// FromEntity builds a payload from a registry entity.
func FromEntity(e chart.Entity) ChartPayload {
	ds := make([]Dataset, len(e.Series))
	for i, s := range e.Series {
		ds[i] = Dataset{Label: s.Label, Values: append([]float64(nil), s.Values...)}
	}
	return ChartPayload{File: e.ID, Data: ChartData{Datasets: ds}}
}

// Frame is a push channel message. CREATE and WRITE carry Response; REMOVE
// names its target in File.
type Frame struct {
	Op       string        `json:"op"`
	Response *ChartPayload `json:"response,omitempty"`
	File     string        `json:"file,omitempty"`
}

// DecodePayloads parses a batch fetch body.
func DecodePayloads(b []byte) ([]ChartPayload, error) {
	var out []ChartPayload
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	for i, p := range out {
		if p.File == "" {
			return nil, fmt.Errorf("%w: payload %d has no file", ErrMalformed, i)
		}
	}
	return out, nil
}
