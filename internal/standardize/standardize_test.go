package standardize

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradstats/admissions-crawler/internal/scrape"
)

func TestFuzzyTierCorrectsTypos(t *testing.T) {
	s := New(DefaultCanon(), nil, DefaultFuzzyThreshold, nil)

	inst, prog := s.Standardize(context.Background(), "Cornell Universty", "Computer Sceince")
	assert.Equal(t, "Cornell University", inst)
	assert.Equal(t, "Computer Science", prog)
}

func TestRuleTierExpandsAbbreviations(t *testing.T) {
	s := New(DefaultCanon(), nil, DefaultFuzzyThreshold, nil)

	inst, prog := s.Standardize(context.Background(), "MIT", "CS")
	assert.Equal(t, "Massachusetts Institute of Technology", inst)
	assert.Equal(t, "Computer Science", prog)
}

func TestStandardizeNeverReturnsEmptyForNonEmptyInput(t *testing.T) {
	s := New(DefaultCanon(), nil, DefaultFuzzyThreshold, nil)

	inst, prog := s.Standardize(context.Background(), "Unknown School of Wizardry", "Underwater Basket Weaving")
	assert.NotEmpty(t, inst)
	assert.NotEmpty(t, prog)

	inst, prog = s.Standardize(context.Background(), "", "")
	assert.Empty(t, inst)
	assert.Empty(t, prog)
}

type fakeModel struct {
	suggestion string
	err        error
	calls      atomic.Int64
}

func (f *fakeModel) Suggest(context.Context, string, Kind) (string, error) {
	f.calls.Add(1)
	return f.suggestion, f.err
}

func TestModelTierAcceptsOnlyCanonicalAnswers(t *testing.T) {
	model := &fakeModel{suggestion: "Cornell University"}
	s := New(DefaultCanon(), model, DefaultFuzzyThreshold, nil)

	inst, _ := s.Standardize(context.Background(), "cornell u (ithaca)", "x")
	assert.Equal(t, "Cornell University", inst)
	assert.Positive(t, model.calls.Load())
}

func TestModelTierHallucinationFallsThrough(t *testing.T) {
	model := &fakeModel{suggestion: "The Grand Academy of Lagado"}
	s := New(DefaultCanon(), model, DefaultFuzzyThreshold, nil)

	inst, _ := s.Standardize(context.Background(), "Cornell Universty", "x")
	// The fuzzy tier still lands the right answer.
	assert.Equal(t, "Cornell University", inst)
}

func TestModelTierErrorFallsThrough(t *testing.T) {
	model := &fakeModel{err: errors.New("connection refused")}
	s := New(DefaultCanon(), model, DefaultFuzzyThreshold, nil)

	inst, _ := s.Standardize(context.Background(), "Cornell University", "x")
	assert.Equal(t, "Cornell University", inst)
}

func TestResolutionIsCachedPerSession(t *testing.T) {
	model := &fakeModel{suggestion: "Cornell University"}
	s := New(DefaultCanon(), model, DefaultFuzzyThreshold, nil)

	for i := 0; i < 5; i++ {
		s.Standardize(context.Background(), "Cornell Universty", "Computer Science")
	}
	// One model call per distinct (kind, raw) pair, not per invocation.
	assert.Equal(t, int64(2), model.calls.Load())
}

func TestApplyFansOutAcrossWorkers(t *testing.T) {
	s := New(DefaultCanon(), nil, DefaultFuzzyThreshold, nil)

	results := make([]scrape.AdmissionResult, 50)
	for i := range results {
		results[i].Institution = "Cornell Universty"
		results[i].Program = "Computer Sceince"
	}
	s.Apply(context.Background(), results, 8)

	for i := range results {
		assert.Equal(t, "Cornell University", results[i].InstitutionStd)
		assert.Equal(t, "Computer Science", results[i].ProgramStd)
	}
}

func TestApplySingleWorker(t *testing.T) {
	s := New(DefaultCanon(), nil, DefaultFuzzyThreshold, nil)

	results := []scrape.AdmissionResult{{Institution: "MIT", Program: "CS"}}
	s.Apply(context.Background(), results, 1)
	assert.Equal(t, "Massachusetts Institute of Technology", results[0].InstitutionStd)
}

func TestRestyModelSuggest(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/standardize", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"standardized_program":"Computer Science","standardized_university":"Cornell University"}`))
	}))
	defer ts.Close()

	m := NewRestyModel(ts.URL, time.Second, nil)

	prog, err := m.Suggest(context.Background(), "comp sci, cornell", KindProgram)
	require.NoError(t, err)
	assert.Equal(t, "Computer Science", prog)

	inst, err := m.Suggest(context.Background(), "comp sci, cornell", KindInstitution)
	require.NoError(t, err)
	assert.Equal(t, "Cornell University", inst)
}

func TestRestyModelSuggestServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	m := NewRestyModel(ts.URL, time.Second, nil)
	_, err := m.Suggest(context.Background(), "anything", KindProgram)
	require.Error(t, err)
}
