package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gradstats/admissions-crawler/internal/job"
	"github.com/gradstats/admissions-crawler/internal/query"
)

type mockRunner struct{ mock.Mock }

func (m *mockRunner) Trigger() (uuid.UUID, error) {
	args := m.Called()
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *mockRunner) Status() job.Status {
	args := m.Called()
	return args.Get(0).(job.Status)
}

type mockReporter struct{ mock.Mock }

func (m *mockReporter) TermSummary(ctx context.Context, season string, year int) (query.TermReport, error) {
	args := m.Called(ctx, season, year)
	return args.Get(0).(query.TermReport), args.Error(1)
}

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func newTestServer(runner RefreshRunner, reporter Reporter, db Pinger) *httptest.Server {
	return httptest.NewServer(NewServer(runner, reporter, db, nil).Handler())
}

func TestTriggerRefreshAccepted(t *testing.T) {
	jobID := uuid.New()
	runner := &mockRunner{}
	runner.On("Trigger").Return(jobID, nil)

	ts := newTestServer(runner, &mockReporter{}, nil)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/refresh", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, jobID.String(), body["job_id"])
}

func TestTriggerRefreshConflictWhenRunning(t *testing.T) {
	runner := &mockRunner{}
	runner.On("Trigger").Return(uuid.Nil, job.ErrAlreadyRunning)

	ts := newTestServer(runner, &mockReporter{}, nil)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/refresh", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestRefreshStatus(t *testing.T) {
	runner := &mockRunner{}
	runner.On("Status").Return(job.Status{Running: true})

	ts := newTestServer(runner, &mockReporter{}, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/refresh/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status job.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.True(t, status.Running)
}

func TestTermReportValidation(t *testing.T) {
	ts := newTestServer(&mockRunner{}, &mockReporter{}, nil)
	defer ts.Close()

	for _, target := range []string{
		"/v1/reports/term",
		"/v1/reports/term?season=fall",
		"/v1/reports/term?season=fall&year=banana",
		"/v1/reports/term?season=fall&year=1200",
	} {
		resp, err := http.Get(ts.URL + target)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, target)
	}
}

func TestTermReportSuccess(t *testing.T) {
	reporter := &mockReporter{}
	reporter.On("TermSummary", mock.Anything, "fall", 2024).
		Return(query.TermReport{Season: "fall", Year: 2024, ApplicantCount: 321}, nil)

	ts := newTestServer(&mockRunner{}, reporter, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/reports/term?season=Fall&year=2024")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Report query.TermReport `json:"report"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, int64(321), body.Report.ApplicantCount)
	reporter.AssertExpectations(t)
}

func TestReadyzReportsDatabaseFailure(t *testing.T) {
	down := pingerFunc(func(context.Context) error { return errors.New("dial refused") })
	ts := newTestServer(&mockRunner{}, &mockReporter{}, down)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	up := pingerFunc(func(context.Context) error { return nil })
	ts2 := newTestServer(&mockRunner{}, &mockReporter{}, up)
	defer ts2.Close()

	resp, err = http.Get(ts2.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpointServesPrometheus(t *testing.T) {
	ts := newTestServer(&mockRunner{}, &mockReporter{}, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
