package query

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestTermApplicantCount(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM admissions_results WHERE season`).
		WithArgs("fall", 2024).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1234)))

	e := NewEngine(mock, nil)
	count, err := e.TermApplicantCount(context.Background(), "fall", 2024)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPercentInternational(t *testing.T) {
	mock := newMock(t)
	// Origins are persisted lowercase, so the filter literal must be too.
	mock.ExpectQuery(`FILTER \(WHERE origin = 'international'\)`).
		WillReturnRows(pgxmock.NewRows([]string{"pct"}).AddRow(42.5))

	e := NewEngine(mock, nil)
	pct, err := e.PercentInternational(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 42.5, pct, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAverageScoresHandlesNulls(t *testing.T) {
	mock := newMock(t)
	gpa := 3.74
	mock.ExpectQuery(`SELECT AVG\(gpa\), AVG\(gre_quant\)`).
		WillReturnRows(pgxmock.NewRows([]string{"gpa", "gre_quant", "gre_verbal", "gre_writing"}).
			AddRow(&gpa, nil, nil, nil))

	e := NewEngine(mock, nil)
	avg, err := e.AverageScores(context.Background())
	require.NoError(t, err)
	require.NotNil(t, avg.GPA)
	assert.InDelta(t, 3.74, *avg.GPA, 1e-9)
	assert.Nil(t, avg.GREQuant)
	assert.Nil(t, avg.GREVerbal)
	assert.Nil(t, avg.GREWriting)
}

func TestProgramAcceptanceCount(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`status = 'accepted' AND year = \$4`).
		WithArgs("Georgetown University", "Computer Science", "PhD", 2024).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(7)))

	e := NewEngine(mock, nil)
	count, err := e.ProgramAcceptanceCount(context.Background(), "Georgetown University", "Computer Science", "PhD", 2024)
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)
}

func TestTermSummaryPropagatesErrors(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM admissions_results WHERE season`).
		WithArgs("fall", 2024).
		WillReturnError(errors.New("connection reset"))

	e := NewEngine(mock, nil)
	_, err := e.TermSummary(context.Background(), "fall", 2024)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "term applicant count")
}

func TestTermSummaryAssemblesReport(t *testing.T) {
	mock := newMock(t)
	gpa := 3.6
	acceptedGPA := 3.8

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM admissions_results WHERE season`).
		WithArgs("fall", 2024).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(500)))
	mock.ExpectQuery(`FILTER \(WHERE origin = 'international'\)`).
		WillReturnRows(pgxmock.NewRows([]string{"pct"}).AddRow(30.0))
	mock.ExpectQuery(`SELECT AVG\(gpa\), AVG\(gre_quant\)`).
		WillReturnRows(pgxmock.NewRows([]string{"gpa", "q", "v", "w"}).AddRow(&gpa, nil, nil, nil))
	mock.ExpectQuery(`WHERE origin = \$1 AND season = \$2`).
		WithArgs("american", "fall", 2024).
		WillReturnRows(pgxmock.NewRows([]string{"gpa"}).AddRow(&gpa))
	mock.ExpectQuery(`FILTER \(WHERE status = 'accepted'\)`).
		WithArgs("fall", 2024).
		WillReturnRows(pgxmock.NewRows([]string{"pct"}).AddRow(18.5))
	mock.ExpectQuery(`WHERE status = 'accepted' AND season = \$1`).
		WithArgs("fall", 2024).
		WillReturnRows(pgxmock.NewRows([]string{"gpa"}).AddRow(&acceptedGPA))

	e := NewEngine(mock, nil)
	report, err := e.TermSummary(context.Background(), "fall", 2024)
	require.NoError(t, err)
	assert.Equal(t, int64(500), report.ApplicantCount)
	assert.InDelta(t, 30.0, report.PercentInternational, 1e-9)
	assert.InDelta(t, 18.5, report.AcceptanceRate, 1e-9)
	require.NotNil(t, report.AcceptedAvgGPA)
	assert.InDelta(t, 3.8, *report.AcceptedAvgGPA, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}
