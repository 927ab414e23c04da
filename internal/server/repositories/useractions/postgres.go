// Package useractions persists the append-only audit trail of user actions.
package useractions

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

func (r *PostgresRepository) Create(ctx context.Context, action *models.UserAction) (*models.UserAction, error) {
	query :=
		`INSERT INTO user_action (user_id, user_name, user_email, action_type)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, timestamp
		 `

	err := r.db.QueryRowContext(ctx, query,
		action.UserID, action.UserName, action.UserEmail, string(action.ActionType)).Scan(&action.ID, &action.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return action, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (*models.UserAction, error) {
	query :=
		`SELECT id, user_id, user_name, user_email, action_type, timestamp FROM user_action
		 WHERE id = $1
		 `

	a := &models.UserAction{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&a.ID, &a.UserID, &a.UserName, &a.UserEmail, &a.ActionType, &a.Timestamp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return a, nil
}
