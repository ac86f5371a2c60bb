package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradstats/admissions-crawler/internal/scrape"
)

func testRecord(inst string) scrape.AdmissionResult {
	return scrape.AdmissionResult{
		Institution: inst,
		Program:     "Computer Science",
		Decision: scrape.Decision{
			Status: scrape.StatusAccepted,
			Date:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		SourceID:    "/result/1001",
		Page:        1,
		Row:         0,
		RetrievedAt: time.Now().UTC(),
	}
}

// anyUpsertArgs matches the full upsert parameter list without pinning
// values; TestUpsertArgsUseStableKey pins the conflict key itself.
func anyUpsertArgs() []any {
	args := make([]any, len(upsertArgs(scrape.AdmissionResult{})))
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func expectUpsert(mock pgxmock.PgxPoolIface, inserted bool) {
	mock.ExpectQuery("INSERT INTO admissions_results").
		WithArgs(anyUpsertArgs()...).
		WillReturnRows(pgxmock.NewRows([]string{"inserted"}).AddRow(inserted))
}

func TestLoadCountsInsertsAndUpdates(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	expectUpsert(mock, true)
	expectUpsert(mock, false)
	mock.ExpectCommit()

	l := NewLoader(mock, Config{}, nil, nil)
	first := testRecord("Cornell University")
	second := testRecord("Cornell University")
	second.SourceID = "/result/1002"

	report, err := l.Load(context.Background(), uuid.New(), []scrape.AdmissionResult{first, second})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 1, report.Updated)
	assert.Zero(t, report.Skipped)
	assert.Zero(t, report.Errors)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadSkipsIncompleteRecords(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	expectUpsert(mock, true)
	mock.ExpectCommit()

	noInstitution := testRecord("")
	noSource := testRecord("Cornell University")
	noSource.SourceID = ""
	keep := testRecord("Cornell University")

	l := NewLoader(mock, Config{}, nil, nil)
	report, err := l.Load(context.Background(), uuid.New(), []scrape.AdmissionResult{noInstitution, noSource, keep})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Skipped)
	assert.Equal(t, 1, report.Inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadRetriesFailedBatchOnce(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO admissions_results").
		WithArgs(anyUpsertArgs()...).
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()
	mock.ExpectBegin()
	expectUpsert(mock, true)
	mock.ExpectCommit()

	l := NewLoader(mock, Config{}, nil, nil)
	report, err := l.Load(context.Background(), uuid.New(), []scrape.AdmissionResult{testRecord("Cornell University")})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Inserted)
	assert.Zero(t, report.Errors)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadDropsBatchAfterSecondFailureAndContinues(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// First batch fails twice.
	for i := 0; i < 2; i++ {
		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO admissions_results").
			WithArgs(anyUpsertArgs()...).
			WillReturnError(errors.New("constraint violation"))
		mock.ExpectRollback()
	}
	// Second batch succeeds.
	mock.ExpectBegin()
	expectUpsert(mock, true)
	mock.ExpectCommit()

	first := testRecord("Cornell University")
	second := testRecord("Duke University")
	second.SourceID = "/result/1002"

	l := NewLoader(mock, Config{BatchSize: 1}, nil, nil)
	report, err := l.Load(context.Background(), uuid.New(), []scrape.AdmissionResult{first, second})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Errors)
	assert.Equal(t, 1, report.Inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertArgsUseStableKey(t *testing.T) {
	rec := testRecord("Cornell University")
	args := upsertArgs(rec)
	require.NotEmpty(t, args)
	assert.Equal(t, rec.Key(), args[0])

	// An edited posting (new status, dropped date) keeps the same conflict
	// key, so the upsert updates the existing row.
	edited := rec
	edited.Decision = scrape.Decision{Status: scrape.StatusRejected}
	assert.Equal(t, args[0], upsertArgs(edited)[0])
}

func TestCombinedProgramFallsBackToRawText(t *testing.T) {
	rec := testRecord("Cornell University")
	assert.Equal(t, "Computer Science, Cornell University", combinedProgram(rec))

	rec.InstitutionStd = "Cornell University"
	rec.ProgramStd = "Computer Science"
	assert.Equal(t, "Computer Science, Cornell University", combinedProgram(rec))

	rec.Program = ""
	rec.ProgramStd = ""
	assert.Equal(t, "Cornell University", combinedProgram(rec))
}

func TestReadSeed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "applicant_data.json")
	payload := `[{"institution":"Cornell University","program":"Computer Science","decision":{"status":"accepted","date":"2024-03-01T00:00:00Z"},"tags":{},"source_id":"/result/1001","page":1,"row":0,"retrieved_at":"2024-03-02T00:00:00Z"}]`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))

	records, err := ReadSeed(path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Cornell University", records[0].Institution)
	assert.Equal(t, scrape.StatusAccepted, records[0].Decision.Status)

	_, err = ReadSeed(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
