package submissions

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/filingapi/internal/common"
	"github.com/dmitrijs2005/filingapi/internal/server/models"
)

var submissionColumns = []string{
	"id", "counter", "filing", "state", "filename", "submission_time",
	"validation_ruleset_version", "validation_results", "total_records",
	"su_id", "su_user_id", "su_user_name", "su_user_email", "su_action_type", "su_timestamp",
	"ac_id", "ac_user_id", "ac_user_name", "ac_user_email", "ac_action_type", "ac_timestamp",
}

var ts = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func submissionRow(id, counter int64, state string, accepted bool) []driver.Value {
	row := []driver.Value{
		id, counter, int64(1), state, "file.csv", ts,
		"v1", []byte(`{"syntax_errors":{"total_count":0}}`), int64(10),
		int64(100), "u1", "Jane", "jane@example.com", "SUBMIT", ts,
	}
	if accepted {
		return append(row, int64(101), "u2", "Joe", "joe@example.com", "ACCEPT", ts)
	}
	return append(row, nil, nil, nil, nil, nil, nil)
}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresRepository(db), mock, db
}

func TestCreate_AssignsNextCounter(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+submission\s*\(filing,\s*counter,\s*state,\s*filename,\s*submitter_id\)\s*SELECT\s+\$1,\s*COALESCE\(MAX\(counter\),\s*0\)\s*\+\s*1.*RETURNING\s+id`).
		WithArgs(int64(1), "SUBMISSION_UPLOADED", "file.csv", int64(100)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(5)))
	mock.ExpectQuery(`(?s)FROM\s+submission\s+s.*WHERE\s+s\.id\s*=\s*\$1`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(submissionColumns).AddRow(submissionRow(5, 2, "SUBMISSION_UPLOADED", false)...))

	got, err := repo.Create(context.Background(), 1, "file.csv", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.ID)
	assert.Equal(t, int64(2), got.Counter)
	assert.Equal(t, models.SubmissionUploaded, got.State)
	assert.Equal(t, "Jane", got.Submitter.UserName)
	assert.Nil(t, got.Accepter)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_ScansNullableColumns(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`WHERE\s+s\.id\s*=\s*\$1`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(submissionColumns).AddRow(submissionRow(5, 1, "SUBMISSION_ACCEPTED", true)...))

	got, err := repo.Get(context.Background(), 5)
	require.NoError(t, err)
	require.NotNil(t, got.Accepter)
	assert.Equal(t, models.ActionAccept, got.Accepter.ActionType)
	require.NotNil(t, got.TotalRecords)
	assert.Equal(t, 10, *got.TotalRecords)
	assert.Equal(t, "v1", *got.ValidationRulesetVersion)
	assert.JSONEq(t, `{"syntax_errors":{"total_count":0}}`, string(got.ValidationResults))
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`WHERE\s+s\.id`).WithArgs(int64(9)).WillReturnRows(sqlmock.NewRows(submissionColumns))

	_, err := repo.Get(context.Background(), 9)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGetLatestAndByCounter(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)WHERE\s+s\.filing\s*=\s*\$1\s+ORDER\s+BY\s+s\.counter\s+DESC\s+LIMIT\s+1`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(submissionColumns).AddRow(submissionRow(8, 3, "VALIDATION_SUCCESSFUL", false)...))
	mock.ExpectQuery(`WHERE\s+s\.filing\s*=\s*\$1\s+AND\s+s\.counter\s*=\s*\$2`).
		WithArgs(int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows(submissionColumns).AddRow(submissionRow(7, 2, "VALIDATION_WITH_ERRORS", false)...))

	latest, err := repo.GetLatest(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), latest.Counter)

	second, err := repo.GetByCounter(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, models.ValidationWithErrors, second.State)
}

func TestList(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)WHERE\s+s\.filing\s*=\s*\$1\s+ORDER\s+BY\s+s\.counter\s+DESC\s*$`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(submissionColumns).
			AddRow(submissionRow(2, 2, "VALIDATION_IN_PROGRESS", false)...).
			AddRow(submissionRow(1, 1, "VALIDATION_EXPIRED", false)...))

	got, err := repo.List(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].Counter)

	mock.ExpectQuery(`FROM\s+submission`).WillReturnError(errors.New("boom"))
	_, err = repo.List(context.Background(), 1)
	assert.Error(t, err)
}

func TestUpdate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	version := "v1"
	total := 4
	s := &models.Submission{
		ID: 5, State: models.ValidationWithWarnings, ValidationRulesetVersion: &version,
		ValidationResults: []byte(`{}`), TotalRecords: &total,
	}

	mock.ExpectExec(`(?s)^UPDATE\s+submission\s+SET\s+state\s*=\s*\$2,\s*validation_ruleset_version\s*=\s*\$3,\s*validation_results\s*=\s*\$4,\s*total_records\s*=\s*\$5,\s*accepter_id\s*=\s*\$6\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs(int64(5), "VALIDATION_WITH_WARNINGS", "v1", []byte(`{}`), int64(4), nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE\s+submission`).WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := repo.Update(context.Background(), s)
	require.NoError(t, err)

	_, err = repo.Update(context.Background(), &models.Submission{ID: 99, State: models.ValidationError})
	assert.ErrorIs(t, err, common.ErrorNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExpire(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^UPDATE\s+submission\s+SET\s+state\s*=\s*\$2\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs(int64(5), "VALIDATION_EXPIRED").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE\s+submission`).WillReturnError(errors.New("conn reset"))

	require.NoError(t, repo.Expire(context.Background(), 5))
	assert.Error(t, repo.Expire(context.Background(), 5))
}
