package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/filingapi/internal/common"
	"github.com/dmitrijs2005/filingapi/internal/dbx"
	"github.com/dmitrijs2005/filingapi/internal/logging"
	"github.com/dmitrijs2005/filingapi/internal/server/models"
	"github.com/dmitrijs2005/filingapi/internal/server/notify"
	"github.com/dmitrijs2005/filingapi/internal/server/repositories/repomanager"
)

// Dispatcher schedules background validation of an upload.
type Dispatcher interface {
	HandleSubmission(ctx context.Context, period, lei string, sub *models.Submission, content []byte)
}

// ConfirmationSender delivers the signing confirmation.
type ConfirmationSender interface {
	SendConfirmation(ctx context.Context, c notify.Confirmation) error
}

// FilingService implements the filing workflow: filings, their contact
// info and tasks, submissions, and the accept/sign/reopen actions. Action
// validators are expected to have run before the state-changing calls.
type FilingService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	processor   *Processor
	dispatcher  Dispatcher
	mailer      ConfirmationSender
	log         logging.Logger
	now         func() time.Time
}

func NewFilingService(db *sql.DB, m repomanager.RepositoryManager, p *Processor, d Dispatcher, mailer ConfirmationSender, log logging.Logger) *FilingService {
	return &FilingService{
		db:          db,
		repomanager: m,
		processor:   p,
		dispatcher:  d,
		mailer:      mailer,
		log:         log.With("module", "filing_service"),
		now:         time.Now,
	}
}

func (s *FilingService) ListPeriods(ctx context.Context) ([]models.FilingPeriod, error) {
	return s.repomanager.Filings(s.db).ListPeriods(ctx)
}

// GetFiling returns the filing for lei and period, or common.ErrorNotFound.
func (s *FilingService) GetFiling(ctx context.Context, lei, period string) (*models.Filing, error) {
	return s.repomanager.Filings(s.db).Get(ctx, lei, period)
}

// CreateFiling opens a new filing with user recorded as its creator.
func (s *FilingService) CreateFiling(ctx context.Context, lei, period string, user models.User) (*models.Filing, error) {
	if _, err := s.repomanager.Filings(s.db).GetPeriod(ctx, period); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewRequestError(http.StatusNotFound, "Filing Period Not Found",
				fmt.Sprintf("The period (%s) does not exist, therefore a Filing can not be created for this period.", period), err)
		}
		return nil, err
	}

	var filing *models.Filing
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		action := user.NewAction(models.ActionCreate)
		creator, err := s.repomanager.UserActions(tx).Create(ctx, &action)
		if err != nil {
			return err
		}
		filing, err = s.repomanager.Filings(tx).Create(ctx, lei, period, creator.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "filing created", "lei", lei, "period", period, "user", user.ID)
	return filing, nil
}

func (s *FilingService) GetContactInfo(ctx context.Context, lei, period string) (*models.ContactInfo, error) {
	filing, err := s.GetFiling(ctx, lei, period)
	if err != nil {
		return nil, err
	}
	if filing.ContactInfo == nil {
		return nil, common.ErrorNotFound
	}
	return filing.ContactInfo, nil
}

func (s *FilingService) PutContactInfo(ctx context.Context, lei, period string, ci *models.ContactInfo) (*models.Filing, error) {
	filing, err := s.GetFiling(ctx, lei, period)
	if err != nil {
		return nil, err
	}
	if _, err := s.repomanager.Filings(s.db).UpsertContactInfo(ctx, filing.ID, ci); err != nil {
		return nil, err
	}
	return s.GetFiling(ctx, lei, period)
}

func (s *FilingService) SetVoluntary(ctx context.Context, lei, period string, voluntary bool) (*models.Filing, error) {
	filing, err := s.GetFiling(ctx, lei, period)
	if err != nil {
		return nil, err
	}
	if err := s.repomanager.Filings(s.db).SetVoluntary(ctx, filing.ID, voluntary); err != nil {
		return nil, err
	}
	filing.IsVoluntary = &voluntary
	return filing, nil
}

func (s *FilingService) SetInstitutionSnapshot(ctx context.Context, lei, period, snapshotID string) (*models.Filing, error) {
	filing, err := s.GetFiling(ctx, lei, period)
	if err != nil {
		return nil, err
	}
	if err := s.repomanager.Filings(s.db).SetInstitutionSnapshot(ctx, filing.ID, snapshotID); err != nil {
		return nil, err
	}
	filing.InstitutionSnapshotID = &snapshotID
	return filing, nil
}

// UpdateTaskState records the progress of one named filing task.
func (s *FilingService) UpdateTaskState(ctx context.Context, lei, period, task string, state models.FilingTaskState, user models.User) error {
	if !state.Valid() {
		return fmt.Errorf("task state %q: %w", state, common.ErrorIncorrectData)
	}
	filing, err := s.GetFiling(ctx, lei, period)
	if err != nil {
		return err
	}
	return s.repomanager.Filings(s.db).UpsertTask(ctx, filing.ID, models.FilingTaskProgress{
		Task:  task,
		State: state,
		User:  user.Name,
	})
}

// UploadSubmission checks and stores an uploaded file, records the new
// submission, and queues its validation. The returned submission is in
// SUBMISSION_UPLOADED; callers poll for the outcome.
func (s *FilingService) UploadSubmission(ctx context.Context, lei, period string, user models.User, fd FileDescriptor, content []byte) (*models.Submission, error) {
	if err := s.processor.ValidateFileProcessable(fd); err != nil {
		return nil, err
	}

	filing, err := s.GetFiling(ctx, lei, period)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewRequestError(http.StatusUnprocessableEntity, "Filing Not Found",
				fmt.Sprintf("There is no Filing for LEI %s in period %s, unable to submit file.", lei, period), err)
		}
		return nil, err
	}

	var sub *models.Submission
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		action := user.NewAction(models.ActionSubmit)
		submitter, err := s.repomanager.UserActions(tx).Create(ctx, &action)
		if err != nil {
			return err
		}
		sub, err = s.repomanager.Submissions(tx).Create(ctx, filing.ID, fd.Filename, submitter.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := s.processor.UploadToStorage(ctx, period, lei, strconv.FormatInt(sub.Counter, 10), content); err != nil {
		sub.State = models.ValidationError
		if _, uerr := s.repomanager.Submissions(s.db).Update(ctx, sub); uerr != nil {
			s.log.Error(ctx, "mark failed upload", "submission", sub.ID, "error", uerr)
		}
		return nil, err
	}

	s.dispatcher.HandleSubmission(ctx, period, lei, sub, content)
	return sub, nil
}

func (s *FilingService) ListSubmissions(ctx context.Context, lei, period string) ([]*models.Submission, error) {
	filing, err := s.GetFiling(ctx, lei, period)
	if err != nil {
		return nil, err
	}
	subs, err := s.repomanager.Submissions(s.db).List(ctx, filing.ID)
	if err != nil {
		return nil, err
	}
	if subs == nil {
		subs = []*models.Submission{}
	}
	return subs, nil
}

func (s *FilingService) GetLatestSubmission(ctx context.Context, lei, period string) (*models.Submission, error) {
	filing, err := s.GetFiling(ctx, lei, period)
	if err != nil {
		return nil, err
	}
	return s.repomanager.Submissions(s.db).GetLatest(ctx, filing.ID)
}

func (s *FilingService) GetSubmission(ctx context.Context, lei, period string, counter int64) (*models.Submission, error) {
	filing, err := s.GetFiling(ctx, lei, period)
	if err != nil {
		return nil, err
	}
	return s.repomanager.Submissions(s.db).GetByCounter(ctx, filing.ID, counter)
}

// GetSubmissionReport opens the CSV report of a validated submission.
func (s *FilingService) GetSubmissionReport(ctx context.Context, lei, period string, counter int64) (io.ReadCloser, error) {
	sub, err := s.GetSubmission(ctx, lei, period, counter)
	if err != nil {
		return nil, err
	}
	return s.processor.GetFromStorage(ctx, period, lei, strconv.FormatInt(sub.Counter, 10)+ReportQualifier)
}

// AcceptSubmission marks a validated submission as accepted by user.
func (s *FilingService) AcceptSubmission(ctx context.Context, lei, period string, counter int64, user models.User) (*models.Submission, error) {
	sub, err := s.GetSubmission(ctx, lei, period, counter)
	if err != nil {
		return nil, err
	}
	if !sub.State.Acceptable() {
		return nil, common.NewRequestError(http.StatusForbidden, "Submission Accept Forbidden",
			fmt.Sprintf("Submission %d for LEI %s in filing period %s is not in an acceptable state.  Submissions must be validated successfully or with only warnings to be accepted.",
				counter, lei, period), common.ErrorInvalidState)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		action := user.NewAction(models.ActionAccept)
		accepter, err := s.repomanager.UserActions(tx).Create(ctx, &action)
		if err != nil {
			return err
		}
		sub.Accepter = accepter
		sub.State = models.SubmissionAccepted
		_, err = s.repomanager.Submissions(tx).Update(ctx, sub)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// SignFiling closes the filing on behalf of user and sends the confirmation
// email. A failed email is logged; the signature stands.
func (s *FilingService) SignFiling(ctx context.Context, lei, period string, user models.User) (*models.Filing, error) {
	filing, err := s.GetFiling(ctx, lei, period)
	if err != nil {
		return nil, err
	}

	var (
		confirmationID string
		signedAt       time.Time
	)
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		latest, err := s.repomanager.Submissions(tx).GetLatest(ctx, filing.ID)
		if err != nil {
			return err
		}
		action := user.NewAction(models.ActionSign)
		sig, err := s.repomanager.UserActions(tx).Create(ctx, &action)
		if err != nil {
			return err
		}
		signedAt = sig.Timestamp
		if signedAt.IsZero() {
			signedAt = s.now()
		}
		if err := s.repomanager.Filings(tx).AddSignature(ctx, filing.ID, sig.ID); err != nil {
			return err
		}
		confirmationID = fmt.Sprintf("%s-%s-%d-%d", lei, period, latest.Counter, signedAt.Unix())
		return s.repomanager.Filings(tx).UpdateState(ctx, filing.ID, models.FilingClosed, &confirmationID)
	})
	if err != nil {
		return nil, err
	}

	contactEmail := ""
	if filing.ContactInfo != nil {
		contactEmail = filing.ContactInfo.Email
	}
	if err := s.mailer.SendConfirmation(ctx, notify.Confirmation{
		ConfirmationID: confirmationID,
		SignerEmail:    user.Email,
		SignerName:     user.Name,
		ContactEmail:   contactEmail,
		Timestamp:      signedAt.Unix(),
	}); err != nil {
		s.log.Error(ctx, "confirmation email", "lei", lei, "period", period, "error", err)
	}

	return s.GetFiling(ctx, lei, period)
}

// ReopenFiling opens a closed filing again and records who did it.
func (s *FilingService) ReopenFiling(ctx context.Context, lei, period string, user models.User) (*models.Filing, error) {
	filing, err := s.GetFiling(ctx, lei, period)
	if err != nil {
		return nil, err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		action := user.NewAction(models.ActionReopen)
		reopen, err := s.repomanager.UserActions(tx).Create(ctx, &action)
		if err != nil {
			return err
		}
		if err := s.repomanager.Filings(tx).AddReopen(ctx, filing.ID, reopen.ID); err != nil {
			return err
		}
		return s.repomanager.Filings(tx).UpdateState(ctx, filing.ID, models.FilingOpen, nil)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "filing reopened", "lei", lei, "period", period, "user", user.ID)
	return s.GetFiling(ctx, lei, period)
}
