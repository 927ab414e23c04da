package submissions

import (
	"context"

	"github.com/dmitrijs2005/filingapi/internal/server/models"
)

type Repository interface {
	// Create inserts a new submission with the next counter of its filing.
	Create(ctx context.Context, filingID int64, filename string, submitterID int64) (*models.Submission, error)
	Get(ctx context.Context, id int64) (*models.Submission, error)
	GetByCounter(ctx context.Context, filingID, counter int64) (*models.Submission, error)
	GetLatest(ctx context.Context, filingID int64) (*models.Submission, error)
	List(ctx context.Context, filingID int64) ([]*models.Submission, error)
	// Update writes the mutable validation columns and the accepter.
	Update(ctx context.Context, s *models.Submission) (*models.Submission, error)
	// Expire forces the submission into VALIDATION_EXPIRED.
	Expire(ctx context.Context, id int64) error
}
