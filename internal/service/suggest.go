package service

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// Suggest returns the registered id closest to id when it is near enough to
// be a plausible typo.
func (m *Monitor) Suggest(id string) (string, bool) {
	return closest(id, m.Charts.IDs())
}

func closest(id string, candidates []string) (string, bool) {
	best, bestDist := "", -1
	needle := strings.ToLower(id)
	for _, c := range candidates {
		if c == id {
			continue
		}
		d := levenshtein.ComputeDistance(needle, strings.ToLower(c))
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	if bestDist < 0 {
		return "", false
	}
	limit := max(2, len(id)/3)
	return best, bestDist <= limit
}
