package filings

import (
	"context"

	"github.com/dmitrijs2005/filingapi/internal/server/models"
)

type Repository interface {
	ListPeriods(ctx context.Context) ([]models.FilingPeriod, error)
	GetPeriod(ctx context.Context, code string) (*models.FilingPeriod, error)

	// Get loads the filing together with its creator, contact info,
	// signatures and task progress.
	Get(ctx context.Context, lei, period string) (*models.Filing, error)
	Create(ctx context.Context, lei, period string, creatorID int64) (*models.Filing, error)
	UpdateState(ctx context.Context, filingID int64, state models.FilingState, confirmationID *string) error
	SetVoluntary(ctx context.Context, filingID int64, voluntary bool) error
	SetInstitutionSnapshot(ctx context.Context, filingID int64, snapshotID string) error

	GetContactInfo(ctx context.Context, filingID int64) (*models.ContactInfo, error)
	UpsertContactInfo(ctx context.Context, filingID int64, ci *models.ContactInfo) (*models.ContactInfo, error)

	AddSignature(ctx context.Context, filingID, userActionID int64) error
	AddReopen(ctx context.Context, filingID, userActionID int64) error
	UpsertTask(ctx context.Context, filingID int64, task models.FilingTaskProgress) error
}
