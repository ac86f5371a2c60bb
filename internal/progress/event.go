// Package progress defines the milestone events emitted by the pipeline
// stages and the hub that fans them out to sinks.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported pipeline stages.
const (
	StageJobStart    Stage = "JOB_START"
	StageJobDone     Stage = "JOB_DONE"
	StageJobError    Stage = "JOB_ERROR"
	StagePageFetched Stage = "PAGE_FETCHED"
	StagePageParsed  Stage = "PAGE_PARSED"
	StageBatchLoaded Stage = "BATCH_LOADED"
)

// Event captures a single pipeline milestone.
type Event struct {
	// JobID identifies the run the event belongs to.
	JobID uuid.UUID
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// Page is the result-index page number for fetch and parse events.
	Page int
	// URL is the optional page URL; it must not contain credentials.
	URL string
	// Records counts parsed rows (PAGE_PARSED) or batch size (BATCH_LOADED).
	Records int64
	// Inserted and Updated break down a BATCH_LOADED event.
	Inserted int64
	Updated  int64
	// Dropped counts rows discarded by the parser or loader.
	Dropped int64
	// Bytes carries the response size for PAGE_FETCHED.
	Bytes int64
	// Dur captures latency for fetches, batches, and job completion.
	Dur time.Duration
	// Note attaches low-volume context, typically error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.JobID == uuid.Nil {
		return errors.New("job id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageJobStart, StageJobDone, StageJobError:
	case StagePageFetched, StagePageParsed:
		if e.Page <= 0 {
			return fmt.Errorf("%s requires a page number", e.Stage)
		}
	case StageBatchLoaded:
		if e.Records < 0 {
			return errors.New("batch record count must be >= 0")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
