// Package standardize normalizes free-text institution and program names
// against curated canonical lists. Resolution runs a strategy chain: a local
// text-generation model, fuzzy matching, then deterministic cleanup rules.
// The chain never fails; the worst case is a cleaned-but-unverified string.
package standardize

import (
	"context"
	"sync"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/gradstats/admissions-crawler/internal/scrape"
)

// Kind selects which canonical list a raw name resolves against.
type Kind string

// Supported name kinds.
const (
	KindInstitution Kind = "institution"
	KindProgram     Kind = "program"
)

// Strategy attempts to resolve a raw name. The bool result reports whether
// the strategy produced a confident answer; false hands the name to the next
// strategy in the chain.
type Strategy interface {
	Resolve(ctx context.Context, raw string, kind Kind) (string, bool)
}

// Standardizer runs the strategy chain per field and memoizes results for
// the session, keyed by raw text, so repeated names skip model invocations.
// The cache is not persisted across runs.
type Standardizer struct {
	strategies []namedStrategy
	cache      *gocache.Cache
	logger     *zap.Logger
}

type namedStrategy struct {
	tier string
	Strategy
}

// New assembles the standard chain: model (optional), fuzzy, rules. model
// may be nil when no local model service is configured, in which case
// resolution starts at the fuzzy tier.
func New(canon *Canon, model ModelClient, fuzzyThreshold float64, logger *zap.Logger) *Standardizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	var strategies []namedStrategy
	if model != nil {
		strategies = append(strategies, namedStrategy{"model", &modelStrategy{client: model, canon: canon, logger: logger}})
	}
	strategies = append(strategies,
		namedStrategy{"fuzzy", &fuzzyStrategy{canon: canon, threshold: fuzzyThreshold}},
		namedStrategy{"rules", &ruleStrategy{canon: canon}},
	)
	return &Standardizer{
		strategies: strategies,
		cache:      gocache.New(gocache.NoExpiration, 0),
		logger:     logger,
	}
}

// Standardize resolves both name fields of a posting. It never returns empty
// strings for non-empty input: the final rule tier always terminates with a
// cleaned string.
func (s *Standardizer) Standardize(ctx context.Context, rawInstitution, rawProgram string) (string, string) {
	return s.resolve(ctx, rawInstitution, KindInstitution), s.resolve(ctx, rawProgram, KindProgram)
}

// Apply standardizes a batch of parsed results in place. Names are
// independently keyed, so resolution fans out across workers; the session
// cache keeps concurrent duplicates cheap.
func (s *Standardizer) Apply(ctx context.Context, results []scrape.AdmissionResult, workers int) {
	if workers <= 1 || len(results) < 2 {
		for i := range results {
			results[i].InstitutionStd, results[i].ProgramStd = s.Standardize(ctx, results[i].Institution, results[i].Program)
		}
		return
	}

	indices := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				results[i].InstitutionStd, results[i].ProgramStd = s.Standardize(ctx, results[i].Institution, results[i].Program)
			}
		}()
	}
	for i := range results {
		indices <- i
	}
	close(indices)
	wg.Wait()
}

func (s *Standardizer) resolve(ctx context.Context, raw string, kind Kind) string {
	if raw == "" {
		return ""
	}
	key := string(kind) + "\x00" + raw
	if cached, ok := s.cache.Get(key); ok {
		resolutionsTotal.WithLabelValues("cache").Inc()
		return cached.(string)
	}

	var resolved string
	for _, strategy := range s.strategies {
		if out, ok := strategy.Resolve(ctx, raw, kind); ok {
			resolved = out
			resolutionsTotal.WithLabelValues(strategy.tier).Inc()
			break
		}
	}
	if resolved == "" {
		// Unreachable with the rule tier in place, but stay safe if a
		// caller assembled a custom chain.
		resolved = raw
	}

	s.cache.Set(key, resolved, gocache.NoExpiration)
	return resolved
}
