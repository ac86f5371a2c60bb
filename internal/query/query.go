// Package query answers the fixed analytical questions asked of the loaded
// admissions data. Every query is parameterized; no caller input is ever
// interpolated into SQL text.
package query

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Querier is the read-only slice of the pgx pool the engine needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Averages carries mean applicant metrics; a nil field means no rows carried
// that metric.
type Averages struct {
	GPA        *float64
	GREQuant   *float64
	GREVerbal  *float64
	GREWriting *float64
}

// TermReport bundles the standard per-term summary produced by the query
// command.
type TermReport struct {
	Season               string
	Year                 int
	ApplicantCount       int64
	PercentInternational float64
	Averages             Averages
	AmericanAvgGPA       *float64
	AcceptanceRate       float64
	AcceptedAvgGPA       *float64
}

// Engine executes the analytical queries against the results table.
type Engine struct {
	db     Querier
	logger *zap.Logger
}

// NewEngine builds an Engine over the given pool.
func NewEngine(db Querier, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{db: db, logger: logger}
}

// TermApplicantCount returns how many results fall in the given term.
func (e *Engine) TermApplicantCount(ctx context.Context, season string, year int) (int64, error) {
	var count int64
	err := e.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM admissions_results WHERE season = $1 AND year = $2`,
		season, year,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("term applicant count: %w", err)
	}
	return count, nil
}

// PercentInternational returns the share of all results whose origin is
// international, expressed as a percentage. Origins are stored lowercase by
// the tag extractor.
func (e *Engine) PercentInternational(ctx context.Context) (float64, error) {
	var pct float64
	err := e.db.QueryRow(ctx, `
SELECT COALESCE(
    100.0 * COUNT(*) FILTER (WHERE origin = 'international') / NULLIF(COUNT(*), 0),
    0)
FROM admissions_results`,
	).Scan(&pct)
	if err != nil {
		return 0, fmt.Errorf("percent international: %w", err)
	}
	return pct, nil
}

// AverageScores returns mean GPA and GRE metrics across all results that
// reported them.
func (e *Engine) AverageScores(ctx context.Context) (Averages, error) {
	var avg Averages
	err := e.db.QueryRow(ctx, `
SELECT AVG(gpa), AVG(gre_quant), AVG(gre_verbal), AVG(gre_writing)
FROM admissions_results`,
	).Scan(&avg.GPA, &avg.GREQuant, &avg.GREVerbal, &avg.GREWriting)
	if err != nil {
		return Averages{}, fmt.Errorf("average scores: %w", err)
	}
	return avg, nil
}

// AverageGPAByOrigin returns the mean GPA of results with the given origin
// in the given term. The pointer is nil when no matching rows carry a GPA.
func (e *Engine) AverageGPAByOrigin(ctx context.Context, origin, season string, year int) (*float64, error) {
	var gpa *float64
	err := e.db.QueryRow(ctx, `
SELECT AVG(gpa) FROM admissions_results
WHERE origin = $1 AND season = $2 AND year = $3`,
		origin, season, year,
	).Scan(&gpa)
	if err != nil {
		return nil, fmt.Errorf("average gpa by origin: %w", err)
	}
	return gpa, nil
}

// AcceptanceRate returns the percentage of results in the term whose status
// is accepted.
func (e *Engine) AcceptanceRate(ctx context.Context, season string, year int) (float64, error) {
	var pct float64
	err := e.db.QueryRow(ctx, `
SELECT COALESCE(
    100.0 * COUNT(*) FILTER (WHERE status = 'accepted') / NULLIF(COUNT(*), 0),
    0)
FROM admissions_results
WHERE season = $1 AND year = $2`,
		season, year,
	).Scan(&pct)
	if err != nil {
		return 0, fmt.Errorf("acceptance rate: %w", err)
	}
	return pct, nil
}

// AcceptedAverageGPA returns the mean GPA of accepted results in the term.
func (e *Engine) AcceptedAverageGPA(ctx context.Context, season string, year int) (*float64, error) {
	var gpa *float64
	err := e.db.QueryRow(ctx, `
SELECT AVG(gpa) FROM admissions_results
WHERE status = 'accepted' AND season = $1 AND year = $2`,
		season, year,
	).Scan(&gpa)
	if err != nil {
		return nil, fmt.Errorf("accepted average gpa: %w", err)
	}
	return gpa, nil
}

// ProgramCount returns how many results match the standardized institution,
// standardized program, and degree.
func (e *Engine) ProgramCount(ctx context.Context, institution, program, degree string) (int64, error) {
	var count int64
	err := e.db.QueryRow(ctx, `
SELECT COUNT(*) FROM admissions_results
WHERE institution_std = $1 AND program_std = $2 AND degree = $3`,
		institution, program, degree,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("program count: %w", err)
	}
	return count, nil
}

// ProgramAcceptanceCount is ProgramCount restricted to accepted results in a
// given year.
func (e *Engine) ProgramAcceptanceCount(ctx context.Context, institution, program, degree string, year int) (int64, error) {
	var count int64
	err := e.db.QueryRow(ctx, `
SELECT COUNT(*) FROM admissions_results
WHERE institution_std = $1 AND program_std = $2 AND degree = $3
  AND status = 'accepted' AND year = $4`,
		institution, program, degree, year,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("program acceptance count: %w", err)
	}
	return count, nil
}

// TermSummary assembles the standard report for one application term.
func (e *Engine) TermSummary(ctx context.Context, season string, year int) (TermReport, error) {
	report := TermReport{Season: season, Year: year}

	var err error
	if report.ApplicantCount, err = e.TermApplicantCount(ctx, season, year); err != nil {
		return report, err
	}
	if report.PercentInternational, err = e.PercentInternational(ctx); err != nil {
		return report, err
	}
	if report.Averages, err = e.AverageScores(ctx); err != nil {
		return report, err
	}
	if report.AmericanAvgGPA, err = e.AverageGPAByOrigin(ctx, "american", season, year); err != nil {
		return report, err
	}
	if report.AcceptanceRate, err = e.AcceptanceRate(ctx, season, year); err != nil {
		return report, err
	}
	if report.AcceptedAvgGPA, err = e.AcceptedAverageGPA(ctx, season, year); err != nil {
		return report, err
	}
	e.logger.Debug("term summary assembled",
		zap.String("season", season),
		zap.Int("year", year),
		zap.Int64("applicants", report.ApplicantCount),
	)
	return report, nil
}
