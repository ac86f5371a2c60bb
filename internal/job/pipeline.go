// Package job orchestrates full refresh runs: crawl, parse, standardize,
// load. It also enforces that at most one refresh runs at a time.
package job

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gradstats/admissions-crawler/internal/crawler"
	"github.com/gradstats/admissions-crawler/internal/loader"
	"github.com/gradstats/admissions-crawler/internal/progress"
	"github.com/gradstats/admissions-crawler/internal/scrape"
)

// maxSummaryErrors bounds the error samples carried in a Summary.
const maxSummaryErrors = 10

// Crawler walks the listing pages. Satisfied by crawler.Engine.
type Crawler interface {
	Crawl(ctx context.Context, startPage, limit int, visit crawler.Visit) (crawler.Stats, error)
}

// Parser turns page markup into records. Satisfied by scrape.PageParser.
type Parser interface {
	ParsePage(markup []byte, page int) ([]scrape.AdmissionResult, []scrape.Warning, error)
}

// Standardizer normalizes free-text names in place.
type Standardizer interface {
	Apply(ctx context.Context, results []scrape.AdmissionResult, workers int)
}

// Loader persists records. Satisfied by loader.Loader.
type Loader interface {
	Load(ctx context.Context, jobID uuid.UUID, records []scrape.AdmissionResult) (loader.Report, error)
}

// Summary describes one completed (or failed) refresh run.
type Summary struct {
	JobID        uuid.UUID `json:"job_id"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	PagesFetched int       `json:"pages_fetched"`
	EndOfData    bool      `json:"end_of_data"`
	Parsed       int       `json:"parsed"`
	Dropped      int       `json:"dropped"`
	Inserted     int       `json:"inserted"`
	Updated      int       `json:"updated"`
	Skipped      int       `json:"skipped"`
	LoadErrors   int       `json:"load_errors"`
	// Errors holds up to maxSummaryErrors samples of row-level problems.
	Errors []string `json:"errors,omitempty"`
}

// Options control one pipeline run.
type Options struct {
	StartPage int
	// PageLimit bounds the crawl; 0 means crawl until end of data.
	PageLimit int
	// Workers is the standardizer fan-out width.
	Workers int
}

// Pipeline composes the pipeline stages into a single refresh run.
type Pipeline struct {
	crawler      Crawler
	parser       Parser
	standardizer Standardizer
	loader       Loader
	emitter      progress.Emitter
	logger       *zap.Logger
}

// NewPipeline builds a Pipeline. emitter may be nil.
func NewPipeline(c Crawler, p Parser, s Standardizer, l Loader, emitter progress.Emitter, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{crawler: c, parser: p, standardizer: s, loader: l, emitter: emitter, logger: logger}
}

// Run executes one refresh end to end and returns its Summary. A crawl error
// after some pages were visited still loads the pages already collected, so a
// partial crawl is never wasted work.
func (p *Pipeline) Run(ctx context.Context, jobID uuid.UUID, opts Options) (Summary, error) {
	summary := Summary{JobID: jobID, StartedAt: time.Now().UTC()}
	p.emit(progress.Event{JobID: jobID, TS: summary.StartedAt, Stage: progress.StageJobStart})

	var records []scrape.AdmissionResult
	visit := func(page crawler.RawPage) error {
		p.emit(progress.Event{
			JobID: jobID,
			TS:    time.Now().UTC(),
			Stage: progress.StagePageFetched,
			Page:  page.Number,
			URL:   page.URL,
			Bytes: int64(len(page.Body)),
			Dur:   page.Duration,
		})
		parsed, warnings, err := p.parser.ParsePage(page.Body, page.Number)
		if err != nil {
			return fmt.Errorf("parse page %d: %w", page.Number, err)
		}
		for _, w := range warnings {
			summary.Dropped++
			if len(summary.Errors) < maxSummaryErrors {
				summary.Errors = append(summary.Errors, w.String())
			}
		}
		records = append(records, parsed...)
		summary.Parsed += len(parsed)
		p.emit(progress.Event{
			JobID:   jobID,
			TS:      time.Now().UTC(),
			Stage:   progress.StagePageParsed,
			Page:    page.Number,
			Records: int64(len(parsed)),
			Dropped: int64(len(warnings)),
		})
		return nil
	}

	stats, crawlErr := p.crawler.Crawl(ctx, opts.StartPage, opts.PageLimit, visit)
	summary.PagesFetched = stats.PagesFetched
	summary.EndOfData = stats.EndOfData
	if crawlErr != nil && len(records) == 0 {
		return p.finish(summary, crawlErr)
	}

	if p.standardizer != nil {
		p.standardizer.Apply(ctx, records, opts.Workers)
	}

	report, loadErr := p.loader.Load(ctx, jobID, records)
	summary.Inserted = report.Inserted
	summary.Updated = report.Updated
	summary.Skipped = report.Skipped
	summary.LoadErrors = report.Errors
	if loadErr != nil {
		return p.finish(summary, loadErr)
	}
	// A crawl error with salvaged pages still fails the job, but only after
	// the salvage is persisted.
	return p.finish(summary, crawlErr)
}

func (p *Pipeline) finish(summary Summary, err error) (Summary, error) {
	summary.FinishedAt = time.Now().UTC()
	elapsed := summary.FinishedAt.Sub(summary.StartedAt)
	if err != nil {
		p.emit(progress.Event{
			JobID: summary.JobID,
			TS:    summary.FinishedAt,
			Stage: progress.StageJobError,
			Dur:   elapsed,
			Note:  err.Error(),
		})
		p.logger.Error("refresh failed",
			zap.String("job_id", summary.JobID.String()),
			zap.Int("pages_fetched", summary.PagesFetched),
			zap.Error(err),
		)
		return summary, err
	}
	p.emit(progress.Event{
		JobID: summary.JobID,
		TS:    summary.FinishedAt,
		Stage: progress.StageJobDone,
		Dur:   elapsed,
	})
	p.logger.Info("refresh complete",
		zap.String("job_id", summary.JobID.String()),
		zap.Int("pages_fetched", summary.PagesFetched),
		zap.Int("parsed", summary.Parsed),
		zap.Int("inserted", summary.Inserted),
		zap.Int("updated", summary.Updated),
		zap.Duration("elapsed", elapsed),
	)
	return summary, nil
}

func (p *Pipeline) emit(evt progress.Event) {
	if p.emitter == nil {
		return
	}
	p.emitter.Emit(evt)
}
