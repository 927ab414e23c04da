// Package filings persists filings, filing periods and the records owned by a filing.
package filings

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

func (r *PostgresRepository) ListPeriods(ctx context.Context) ([]models.FilingPeriod, error) {
	query :=
		`SELECT code, description, start_period, end_period, due, filing_type FROM filing_period
		 ORDER BY code
		 `

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	periods := []models.FilingPeriod{}
	for rows.Next() {
		var p models.FilingPeriod
		if err := rows.Scan(&p.Code, &p.Description, &p.StartPeriod, &p.EndPeriod, &p.Due, &p.FilingType); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		periods = append(periods, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return periods, nil
}

func (r *PostgresRepository) GetPeriod(ctx context.Context, code string) (*models.FilingPeriod, error) {
	query :=
		`SELECT code, description, start_period, end_period, due, filing_type FROM filing_period
		 WHERE code = $1
		 `

	p := &models.FilingPeriod{}
	err := r.db.QueryRowContext(ctx, query, code).Scan(&p.Code, &p.Description, &p.StartPeriod, &p.EndPeriod, &p.Due, &p.FilingType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) Get(ctx context.Context, lei, period string) (*models.Filing, error) {
	query :=
		`SELECT f.id, f.lei, f.filing_period, f.state, f.is_voluntary, f.institution_snapshot_id, f.confirmation_id,
		        c.id, c.user_id, c.user_name, c.user_email, c.action_type, c.timestamp
		 FROM filing f
		 JOIN user_action c ON c.id = f.creator_id
		 WHERE f.lei = $1 AND f.filing_period = $2
		 `

	f := &models.Filing{Creator: &models.UserAction{}}
	var (
		voluntary    sql.NullBool
		snapshot     sql.NullString
		confirmation sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, lei, period).Scan(
		&f.ID, &f.LEI, &f.FilingPeriod, &f.State, &voluntary, &snapshot, &confirmation,
		&f.Creator.ID, &f.Creator.UserID, &f.Creator.UserName, &f.Creator.UserEmail, &f.Creator.ActionType, &f.Creator.Timestamp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if voluntary.Valid {
		f.IsVoluntary = &voluntary.Bool
	}
	if snapshot.Valid {
		f.InstitutionSnapshotID = &snapshot.String
	}
	if confirmation.Valid {
		f.ConfirmationID = &confirmation.String
	}

	if f.ContactInfo, err = r.GetContactInfo(ctx, f.ID); err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}
	if f.Signatures, err = r.signatures(ctx, f.ID); err != nil {
		return nil, err
	}
	if f.Tasks, err = r.tasks(ctx, f.ID); err != nil {
		return nil, err
	}
	return f, nil
}

func (r *PostgresRepository) signatures(ctx context.Context, filingID int64) ([]models.UserAction, error) {
	query :=
		`SELECT a.id, a.user_id, a.user_name, a.user_email, a.action_type, a.timestamp
		 FROM filing_signature s
		 JOIN user_action a ON a.id = s.user_action
		 WHERE s.filing = $1
		 ORDER BY a.timestamp
		 `

	rows, err := r.db.QueryContext(ctx, query, filingID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := []models.UserAction{}
	for rows.Next() {
		var a models.UserAction
		if err := rows.Scan(&a.ID, &a.UserID, &a.UserName, &a.UserEmail, &a.ActionType, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) tasks(ctx context.Context, filingID int64) ([]models.FilingTaskProgress, error) {
	query :=
		`SELECT task, state, user_name, change_timestamp FROM filing_task_progress
		 WHERE filing = $1
		 ORDER BY task
		 `

	rows, err := r.db.QueryContext(ctx, query, filingID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := []models.FilingTaskProgress{}
	for rows.Next() {
		var t models.FilingTaskProgress
		if err := rows.Scan(&t.Task, &t.State, &t.User, &t.ChangeTimestamp); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Create(ctx context.Context, lei, period string, creatorID int64) (*models.Filing, error) {
	query :=
		`INSERT INTO filing (lei, filing_period, state, creator_id)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (lei, filing_period) DO NOTHING
		 RETURNING id
		 `

	var id int64
	err := r.db.QueryRowContext(ctx, query, lei, period, string(models.FilingOpen), creatorID).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return r.Get(ctx, lei, period)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) UpdateState(ctx context.Context, filingID int64, state models.FilingState, confirmationID *string) error {
	return r.exec(ctx,
		`UPDATE filing SET state = $2, confirmation_id = COALESCE($3, confirmation_id)
		 WHERE id = $1
		 `, filingID, string(state), confirmationID)
}

func (r *PostgresRepository) SetVoluntary(ctx context.Context, filingID int64, voluntary bool) error {
	return r.exec(ctx,
		`UPDATE filing SET is_voluntary = $2
		 WHERE id = $1
		 `, filingID, voluntary)
}

func (r *PostgresRepository) SetInstitutionSnapshot(ctx context.Context, filingID int64, snapshotID string) error {
	return r.exec(ctx,
		`UPDATE filing SET institution_snapshot_id = $2
		 WHERE id = $1
		 `, filingID, snapshotID)
}

func (r *PostgresRepository) GetContactInfo(ctx context.Context, filingID int64) (*models.ContactInfo, error) {
	query :=
		`SELECT id, filing, first_name, last_name, hq_address_street_1, hq_address_street_2, hq_address_street_3,
		        hq_address_street_4, hq_address_city, hq_address_state, hq_address_zip, email, phone_number, phone_ext
		 FROM contact_info
		 WHERE filing = $1
		 `

	c := &models.ContactInfo{}
	err := r.db.QueryRowContext(ctx, query, filingID).Scan(
		&c.ID, &c.FilingID, &c.FirstName, &c.LastName, &c.HQAddressStreet1, &c.HQAddressStreet2, &c.HQAddressStreet3,
		&c.HQAddressStreet4, &c.HQAddressCity, &c.HQAddressState, &c.HQAddressZip, &c.Email, &c.PhoneNumber, &c.PhoneExt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) UpsertContactInfo(ctx context.Context, filingID int64, c *models.ContactInfo) (*models.ContactInfo, error) {
	query :=
		`INSERT INTO contact_info (filing, first_name, last_name, hq_address_street_1, hq_address_street_2,
		        hq_address_street_3, hq_address_street_4, hq_address_city, hq_address_state, hq_address_zip,
		        email, phone_number, phone_ext)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (filing) DO UPDATE SET
		        first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name,
		        hq_address_street_1 = EXCLUDED.hq_address_street_1, hq_address_street_2 = EXCLUDED.hq_address_street_2,
		        hq_address_street_3 = EXCLUDED.hq_address_street_3, hq_address_street_4 = EXCLUDED.hq_address_street_4,
		        hq_address_city = EXCLUDED.hq_address_city, hq_address_state = EXCLUDED.hq_address_state,
		        hq_address_zip = EXCLUDED.hq_address_zip, email = EXCLUDED.email,
		        phone_number = EXCLUDED.phone_number, phone_ext = EXCLUDED.phone_ext
		 RETURNING id
		 `

	err := r.db.QueryRowContext(ctx, query, filingID, c.FirstName, c.LastName, c.HQAddressStreet1, c.HQAddressStreet2,
		c.HQAddressStreet3, c.HQAddressStreet4, c.HQAddressCity, c.HQAddressState, c.HQAddressZip,
		c.Email, c.PhoneNumber, c.PhoneExt).Scan(&c.ID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	c.FilingID = filingID
	return c, nil
}

func (r *PostgresRepository) AddSignature(ctx context.Context, filingID, userActionID int64) error {
	return r.exec(ctx,
		`INSERT INTO filing_signature (user_action, filing) VALUES ($1, $2)`, userActionID, filingID)
}

func (r *PostgresRepository) AddReopen(ctx context.Context, filingID, userActionID int64) error {
	return r.exec(ctx,
		`INSERT INTO filing_reopen (user_action, filing) VALUES ($1, $2)`, userActionID, filingID)
}

func (r *PostgresRepository) UpsertTask(ctx context.Context, filingID int64, t models.FilingTaskProgress) error {
	return r.exec(ctx,
		`INSERT INTO filing_task_progress (filing, task, state, user_name, change_timestamp)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (filing, task) DO UPDATE SET
		        state = EXCLUDED.state, user_name = EXCLUDED.user_name, change_timestamp = EXCLUDED.change_timestamp
		 `, filingID, t.Task, string(t.State), t.User)
}
