package standardize

import (
	"context"
	"strings"

	"github.com/antzucaro/matchr"
)

// DefaultFuzzyThreshold is the minimum Jaro-Winkler similarity a canonical
// entry must score to be accepted by the fuzzy tier.
const DefaultFuzzyThreshold = 0.90

// fuzzyStrategy scores the raw text against every canonical entry and
// accepts the best match above the threshold.
type fuzzyStrategy struct {
	canon     *Canon
	threshold float64
}

func (s *fuzzyStrategy) Resolve(_ context.Context, raw string, kind Kind) (string, bool) {
	threshold := s.threshold
	if threshold <= 0 {
		threshold = DefaultFuzzyThreshold
	}
	needle := strings.ToLower(strings.TrimSpace(raw))
	if needle == "" {
		return "", false
	}

	var best string
	var bestScore float64
	for _, candidate := range s.canon.Entries(kind) {
		score := matchr.JaroWinkler(needle, strings.ToLower(candidate), false)
		if score > bestScore {
			bestScore = score
			best = candidate
		}
	}
	if bestScore >= threshold {
		return best, true
	}
	return "", false
}
