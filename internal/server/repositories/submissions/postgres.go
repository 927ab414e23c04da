// Package submissions persists uploaded submissions and their validation state.
package submissions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/filingapi/internal/common"
	"github.com/dmitrijs2005/filingapi/internal/dbx"
	"github.com/dmitrijs2005/filingapi/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectSubmission = `SELECT s.id, s.counter, s.filing, s.state, s.filename, s.submission_time,
		s.validation_ruleset_version, s.validation_results, s.total_records,
		su.id, su.user_id, su.user_name, su.user_email, su.action_type, su.timestamp,
		ac.id, ac.user_id, ac.user_name, ac.user_email, ac.action_type, ac.timestamp
	FROM submission s
	JOIN user_action su ON su.id = s.submitter_id
	LEFT JOIN user_action ac ON ac.id = s.accepter_id
	`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (*models.Submission, error) {
	s := &models.Submission{Submitter: &models.UserAction{}}
	var (
		version  sql.NullString
		results  []byte
		total    sql.NullInt64
		accID    sql.NullInt64
		accUser  sql.NullString
		accName  sql.NullString
		accEmail sql.NullString
		accType  sql.NullString
		accTime  sql.NullTime
	)
	err := row.Scan(&s.ID, &s.Counter, &s.FilingID, &s.State, &s.Filename, &s.SubmissionTime,
		&version, &results, &total,
		&s.Submitter.ID, &s.Submitter.UserID, &s.Submitter.UserName, &s.Submitter.UserEmail, &s.Submitter.ActionType, &s.Submitter.Timestamp,
		&accID, &accUser, &accName, &accEmail, &accType, &accTime)
	if err != nil {
		return nil, err
	}
	if version.Valid {
		s.ValidationRulesetVersion = &version.String
	}
	if len(results) > 0 {
		s.ValidationResults = results
	}
	if total.Valid {
		n := int(total.Int64)
		s.TotalRecords = &n
	}
	if accID.Valid {
		s.Accepter = &models.UserAction{
			ID:         accID.Int64,
			UserID:     accUser.String,
			UserName:   accName.String,
			UserEmail:  accEmail.String,
			ActionType: models.UserActionType(accType.String),
			Timestamp:  accTime.Time,
		}
	}
	return s, nil
}

func (r *PostgresRepository) queryOne(ctx context.Context, query string, args ...any) (*models.Submission, error) {
	s, err := scanSubmission(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) Create(ctx context.Context, filingID int64, filename string, submitterID int64) (*models.Submission, error) {
	query :=
		`INSERT INTO submission (filing, counter, state, filename, submitter_id)
		 SELECT $1, COALESCE(MAX(counter), 0) + 1, $2, $3, $4 FROM submission WHERE filing = $1
		 RETURNING id
		 `

	var id int64
	err := r.db.QueryRowContext(ctx, query, filingID, string(models.SubmissionUploaded), filename, submitterID).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return r.Get(ctx, id)
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (*models.Submission, error) {
	return r.queryOne(ctx, selectSubmission+`WHERE s.id = $1`, id)
}

func (r *PostgresRepository) GetByCounter(ctx context.Context, filingID, counter int64) (*models.Submission, error) {
	return r.queryOne(ctx, selectSubmission+`WHERE s.filing = $1 AND s.counter = $2`, filingID, counter)
}

func (r *PostgresRepository) GetLatest(ctx context.Context, filingID int64) (*models.Submission, error) {
	return r.queryOne(ctx, selectSubmission+`WHERE s.filing = $1 ORDER BY s.counter DESC LIMIT 1`, filingID)
}

func (r *PostgresRepository) List(ctx context.Context, filingID int64) ([]*models.Submission, error) {
	rows, err := r.db.QueryContext(ctx, selectSubmission+`WHERE s.filing = $1 ORDER BY s.counter DESC`, filingID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Update(ctx context.Context, s *models.Submission) (*models.Submission, error) {
	query :=
		`UPDATE submission
		 SET state = $2, validation_ruleset_version = $3, validation_results = $4, total_records = $5, accepter_id = $6
		 WHERE id = $1
		 `

	var (
		results  any
		total    any
		accepter any
	)
	if len(s.ValidationResults) > 0 {
		results = []byte(s.ValidationResults)
	}
	if s.TotalRecords != nil {
		total = int64(*s.TotalRecords)
	}
	if s.Accepter != nil {
		accepter = s.Accepter.ID
	}

	res, err := r.db.ExecContext(ctx, query, s.ID, string(s.State), s.ValidationRulesetVersion, results, total, accepter)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, common.ErrorNotFound
	}

	return s, nil
}

func (r *PostgresRepository) Expire(ctx context.Context, id int64) error {
	query :=
		`UPDATE submission SET state = $2
		 WHERE id = $1
		 `

	if _, err := r.db.ExecContext(ctx, query, id, string(models.ValidationExpired)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
