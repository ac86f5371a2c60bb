package job

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrAlreadyRunning is returned when a refresh is requested while another is
// still in flight.
var ErrAlreadyRunning = errors.New("a refresh job is already running")

// Status is a point-in-time view of the runner for the operations API.
type Status struct {
	Running bool `json:"running"`
	// Current is the ID of the in-flight job, if any.
	Current *uuid.UUID `json:"current,omitempty"`
	// Last holds the most recent completed run, if any.
	Last *Summary `json:"last,omitempty"`
	// LastError is the terminal error text of the last run, if it failed.
	LastError string `json:"last_error,omitempty"`
}

// Runner serializes refresh runs: at most one pipeline execution is in
// flight at a time, and concurrent triggers are rejected rather than queued.
type Runner struct {
	pipeline *Pipeline
	opts     Options
	timeout  time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
	current uuid.UUID
	last    *Summary
	lastErr error
}

// NewRunner builds a Runner around the pipeline. timeout bounds background
// runs; zero means no deadline.
func NewRunner(pipeline *Pipeline, opts Options, timeout time.Duration, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{pipeline: pipeline, opts: opts, timeout: timeout, logger: logger}
}

// Run executes a refresh synchronously, holding the single-flight slot for
// its duration.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	jobID, err := r.acquire()
	if err != nil {
		return Summary{}, err
	}
	summary, err := r.pipeline.Run(ctx, jobID, r.opts)
	r.release(summary, err)
	return summary, err
}

// Trigger starts a refresh in the background and returns its job ID
// immediately. It returns ErrAlreadyRunning if a run is in flight.
func (r *Runner) Trigger() (uuid.UUID, error) {
	jobID, err := r.acquire()
	if err != nil {
		return uuid.Nil, err
	}
	go func() {
		ctx := context.Background()
		cancel := func() {}
		if r.timeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, r.timeout)
		}
		defer cancel()
		summary, runErr := r.pipeline.Run(ctx, jobID, r.opts)
		r.release(summary, runErr)
	}()
	return jobID, nil
}

// Status reports whether a run is in flight and the outcome of the last one.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := Status{Running: r.running}
	if r.running {
		id := r.current
		st.Current = &id
	}
	if r.last != nil {
		last := *r.last
		st.Last = &last
	}
	if r.lastErr != nil {
		st.LastError = r.lastErr.Error()
	}
	return st
}

func (r *Runner) acquire() (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return uuid.Nil, ErrAlreadyRunning
	}
	r.running = true
	r.current = uuid.New()
	return r.current, nil
}

func (r *Runner) release(summary Summary, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running = false
	r.current = uuid.Nil
	r.last = &summary
	r.lastErr = err
}
