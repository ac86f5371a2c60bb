// Package loader persists parsed admission records into Postgres using
// batched, idempotent upserts keyed on the natural result key.
package loader

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/gradstats/admissions-crawler/internal/progress"
	"github.com/gradstats/admissions-crawler/internal/scrape"
)

// DefaultBatchSize is used when Config.BatchSize is unset.
const DefaultBatchSize = 200

// DB is the slice of the pgx pool the loader needs. *pgxpool.Pool satisfies
// it, as do the pgxmock pools used in tests.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Config tunes loader behavior.
type Config struct {
	// BatchSize is the number of rows committed per transaction.
	BatchSize int
}

// Report summarizes a Load call.
type Report struct {
	Inserted int
	Updated  int
	// Skipped counts rows rejected before any database work (missing
	// institution or source identifier).
	Skipped int
	// Errors counts rows lost to batches that failed twice.
	Errors int
}

// Loader writes admission records to the results table.
type Loader struct {
	db        DB
	batchSize int
	emitter   progress.Emitter
	logger    *zap.Logger
}

// NewLoader builds a Loader. emitter may be nil when progress reporting is
// not wanted.
func NewLoader(db DB, cfg Config, emitter progress.Emitter, logger *zap.Logger) *Loader {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{db: db, batchSize: cfg.BatchSize, emitter: emitter, logger: logger}
}

const upsertSQL = `
INSERT INTO admissions_results (
    result_key, institution, program, institution_std, program_std,
    combined_program, degree, status, decision_date, season, year,
    gpa, gre_quant, gre_verbal, gre_writing, extra_tags, origin, notes,
    source_id, page, row_index, added_on, retrieved_at
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
    $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23
)
ON CONFLICT (result_key) DO UPDATE SET
    institution      = EXCLUDED.institution,
    program          = EXCLUDED.program,
    institution_std  = EXCLUDED.institution_std,
    program_std      = EXCLUDED.program_std,
    combined_program = EXCLUDED.combined_program,
    degree           = EXCLUDED.degree,
    status           = EXCLUDED.status,
    decision_date    = EXCLUDED.decision_date,
    season           = EXCLUDED.season,
    year             = EXCLUDED.year,
    gpa              = EXCLUDED.gpa,
    gre_quant        = EXCLUDED.gre_quant,
    gre_verbal       = EXCLUDED.gre_verbal,
    gre_writing      = EXCLUDED.gre_writing,
    extra_tags       = EXCLUDED.extra_tags,
    origin           = EXCLUDED.origin,
    notes            = EXCLUDED.notes,
    source_id        = EXCLUDED.source_id,
    page             = EXCLUDED.page,
    row_index        = EXCLUDED.row_index,
    added_on         = EXCLUDED.added_on,
    retrieved_at     = EXCLUDED.retrieved_at,
    updated_at       = NOW()
RETURNING (xmax = 0) AS inserted`

// Load upserts the records in batches. A batch that fails is rolled back and
// retried once; a second failure drops the batch, counts its rows as errors,
// and loading continues with the next batch. Load only returns an error when
// no transaction could be opened at all.
func (l *Loader) Load(ctx context.Context, jobID uuid.UUID, records []scrape.AdmissionResult) (Report, error) {
	var report Report
	rows := make([]scrape.AdmissionResult, 0, len(records))
	for _, rec := range records {
		if rec.Institution == "" || rec.SourceID == "" {
			report.Skipped++
			continue
		}
		rows = append(rows, rec)
	}

	for start := 0; start < len(rows); start += l.batchSize {
		end := start + l.batchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]

		began := time.Now()
		inserted, updated, err := l.loadBatch(ctx, batch)
		if err != nil {
			l.logger.Warn("batch failed, retrying once",
				zap.Int("batch_start", start),
				zap.Int("batch_size", len(batch)),
				zap.Error(err),
			)
			inserted, updated, err = l.loadBatch(ctx, batch)
		}
		if err != nil {
			report.Errors += len(batch)
			l.logger.Error("batch dropped after retry",
				zap.Int("batch_start", start),
				zap.Int("batch_size", len(batch)),
				zap.Error(err),
			)
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			continue
		}
		report.Inserted += inserted
		report.Updated += updated
		l.emit(progress.Event{
			JobID:    jobID,
			TS:       time.Now().UTC(),
			Stage:    progress.StageBatchLoaded,
			Records:  int64(len(batch)),
			Inserted: int64(inserted),
			Updated:  int64(updated),
			Dur:      time.Since(began),
		})
	}

	l.logger.Info("load complete",
		zap.Int("inserted", report.Inserted),
		zap.Int("updated", report.Updated),
		zap.Int("skipped", report.Skipped),
		zap.Int("errors", report.Errors),
	)
	return report, nil
}

func (l *Loader) loadBatch(ctx context.Context, batch []scrape.AdmissionResult) (inserted, updated int, err error) {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("begin batch transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	for _, rec := range batch {
		var fresh bool
		if err = tx.QueryRow(ctx, upsertSQL, upsertArgs(rec)...).Scan(&fresh); err != nil {
			return 0, 0, fmt.Errorf("upsert %s: %w", rec.SourceID, err)
		}
		if fresh {
			inserted++
		} else {
			updated++
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("commit batch: %w", err)
	}
	return inserted, updated, nil
}

func upsertArgs(rec scrape.AdmissionResult) []any {
	var decisionDate any
	if !rec.Decision.Date.IsZero() {
		decisionDate = rec.Decision.Date
	}
	var season any
	var year any
	if rec.Tags.Term != nil {
		season = rec.Tags.Term.Season
		year = rec.Tags.Term.Year
	}
	return []any{
		rec.Key(),
		rec.Institution,
		nullIfEmpty(rec.Program),
		nullIfEmpty(rec.InstitutionStd),
		nullIfEmpty(rec.ProgramStd),
		nullIfEmpty(combinedProgram(rec)),
		nullIfEmpty(rec.Degree),
		string(rec.Decision.Status),
		decisionDate,
		season,
		year,
		rec.Tags.GPA,
		rec.Tags.GREQuant,
		rec.Tags.GREVerbal,
		rec.Tags.GREWriting,
		rec.Tags.Extra,
		nullIfEmpty(rec.Origin),
		nullIfEmpty(rec.Notes),
		rec.SourceID,
		rec.Page,
		rec.Row,
		rec.AddedOn,
		rec.RetrievedAt,
	}
}

// combinedProgram joins the standardized program and institution for the
// denormalized search column, falling back to raw text where standardization
// produced nothing.
func combinedProgram(rec scrape.AdmissionResult) string {
	prog := rec.ProgramStd
	if prog == "" {
		prog = rec.Program
	}
	inst := rec.InstitutionStd
	if inst == "" {
		inst = rec.Institution
	}
	switch {
	case prog == "" && inst == "":
		return ""
	case prog == "":
		return inst
	case inst == "":
		return prog
	default:
		return strings.Join([]string{prog, inst}, ", ")
	}
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (l *Loader) emit(evt progress.Event) {
	if l.emitter == nil {
		return
	}
	l.emitter.Emit(evt)
}
