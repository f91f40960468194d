package palette

import (
	"encoding/json"
	"fmt"
	"sort"
)

const mapTag = "Map"

// envelope mirrors how a JS Map survives JSON: a tagged list of [key, value] pairs.
type envelope struct {
	DataType string            `json:"dataType"`
	Value    []json.RawMessage `json:"value"`
}

// Encode serializes the id→palette mapping. Entries are ordered by id.
func Encode(m map[string]Palette) ([]byte, error) {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	env := envelope{DataType: mapTag, Value: make([]json.RawMessage, 0, len(ids))}
	for _, id := range ids {
		colors := make([]string, len(m[id]))
		for i, c := range m[id] {
			colors[i] = c.String()
		}
		pair, err := json.Marshal([]any{id, colors})
		if err != nil {
			return nil, err
		}
		env.Value = append(env.Value, pair)
	}
	return json.Marshal(env)
}

// Decode restores a mapping written by Encode. Empty input decodes to an
// empty mapping.
func Decode(data []byte) (map[string]Palette, error) {
	out := make(map[string]Palette)
	if len(data) == 0 {
		return out, nil
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode palettes: %w", err)
	}
	if env.DataType != mapTag {
		return nil, fmt.Errorf("decode palettes: unexpected dataType %q", env.DataType)
	}
	for i, raw := range env.Value {
		var pair []json.RawMessage
		if err := json.Unmarshal(raw, &pair); err != nil || len(pair) != 2 {
			return nil, fmt.Errorf("decode palettes: entry %d is not a pair", i)
		}
		var id string
		if err := json.Unmarshal(pair[0], &id); err != nil {
			return nil, fmt.Errorf("decode palettes: entry %d id: %w", i, err)
		}
		var colors []string
		if err := json.Unmarshal(pair[1], &colors); err != nil {
			return nil, fmt.Errorf("decode palettes: entry %q colors: %w", id, err)
		}
		p := make(Palette, len(colors))
		for j, s := range colors {
			c, err := ParseColor(s)
			if err != nil {
				return nil, fmt.Errorf("decode palettes: entry %q: %w", id, err)
			}
			p[j] = c
		}
		out[id] = p
	}
	return out, nil
}
