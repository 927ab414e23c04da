package useractions

import (
	"context"

	"github.com/dmitrijs2005/filingapi/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, action *models.UserAction) (*models.UserAction, error)
	Get(ctx context.Context, id int64) (*models.UserAction, error)
}
