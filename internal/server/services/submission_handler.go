package services

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/dmitrijs2005/filingapi/internal/dbx"
	"github.com/dmitrijs2005/filingapi/internal/logging"
	"github.com/dmitrijs2005/filingapi/internal/server/metrics"
	"github.com/dmitrijs2005/filingapi/internal/server/models"
	"github.com/dmitrijs2005/filingapi/internal/server/repositories/repomanager"
)

// CancelFlag is shared between a validation worker and its deadline guard.
// It starts in the continue state; the guard cancels it once.
// A nil *CancelFlag always reports Continue.
type CancelFlag struct {
	stopped atomic.Bool
}

func NewCancelFlag() *CancelFlag {
	return &CancelFlag{}
}

func (f *CancelFlag) Continue() bool {
	return f == nil || !f.stopped.Load()
}

func (f *CancelFlag) Cancel() {
	if f != nil {
		f.stopped.Store(true)
	}
}

// SubmissionValidator is the work run in the background for each upload.
type SubmissionValidator interface {
	ValidateAndUpdateSubmission(ctx context.Context, db dbx.DBTX, period, lei string,
		sub *models.Submission, content []byte, flag *CancelFlag) error
}

// SubmissionHandler runs validations off the request path and expires the
// ones that outlive the deadline.
//
// The worker and the guard race without a lock. The worker looks at the flag
// once, just before its final write; the guard looks at the worker once, at
// the deadline. A worker that already passed its flag check may overwrite
// the expiration.
type SubmissionHandler struct {
	processor   SubmissionValidator
	repomanager repomanager.RepositoryManager
	db          dbx.DBTX
	sessions    dbx.SessionFactory
	deadline    time.Duration
	sem         *semaphore.Weighted
	log         logging.Logger
	wg          sync.WaitGroup
}

// NewSubmissionHandler builds a handler. db serves the guard's expiration
// writes; every worker opens its own session from sessions.
func NewSubmissionHandler(p SubmissionValidator, m repomanager.RepositoryManager, db dbx.DBTX,
	sessions dbx.SessionFactory, deadline time.Duration, maxConcurrent int, log logging.Logger) *SubmissionHandler {

	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &SubmissionHandler{
		processor:   p,
		repomanager: m,
		db:          db,
		sessions:    sessions,
		deadline:    deadline,
		sem:         semaphore.NewWeighted(int64(maxConcurrent)),
		log:         log.With("module", "submission_handler"),
	}
}

// HandleSubmission schedules validation of sub and returns immediately.
// The worker gets its own copy of sub.
func (h *SubmissionHandler) HandleSubmission(ctx context.Context, period, lei string, sub *models.Submission, content []byte) {
	ctx = context.WithoutCancel(ctx)
	flag := NewCancelFlag()
	done := make(chan struct{})
	work := *sub

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		defer close(done)
		h.validateSubmission(ctx, period, lei, &work, content, flag)
	}()
	go func() {
		defer h.wg.Done()
		h.checkFuture(ctx, done, sub.ID, flag)
	}()
}

func (h *SubmissionHandler) validateSubmission(ctx context.Context, period, lei string, sub *models.Submission, content []byte, flag *CancelFlag) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error(ctx, "validation worker panicked", "submission", sub.ID, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
		}
	}()

	if err := h.sem.Acquire(ctx, 1); err != nil {
		h.log.Error(ctx, "validation worker slot", "submission", sub.ID, "error", err)
		return
	}
	defer h.sem.Release(1)
	if !flag.Continue() {
		h.log.Warn(ctx, fmt.Sprintf("Submission %d expired while queued, skipping validation.", sub.ID))
		return
	}
	metrics.ValidationsInFlight.Inc()
	defer metrics.ValidationsInFlight.Dec()

	session, err := h.sessions(ctx)
	if err != nil {
		h.log.Error(ctx, "open validation session", "submission", sub.ID, "error", err)
		return
	}
	defer session.Close()

	if err := h.processor.ValidateAndUpdateSubmission(ctx, session, period, lei, sub, content, flag); err != nil {
		h.log.Error(ctx, "validation worker", "submission", sub.ID, "error", err)
	}
}

func (h *SubmissionHandler) checkFuture(ctx context.Context, done <-chan struct{}, submissionID int64, flag *CancelFlag) {
	timer := time.NewTimer(h.deadline)
	defer timer.Stop()

	select {
	case <-done:
		return
	case <-timer.C:
	}

	select {
	case <-done:
		return
	default:
	}

	flag.Cancel()
	if err := h.repomanager.Submissions(h.db).Expire(ctx, submissionID); err != nil {
		h.log.Error(ctx, "expire submission", "submission", submissionID, "error", err)
		return
	}
	metrics.SubmissionsExpired.Inc()
	h.log.Warn(ctx, fmt.Sprintf("Validation for submission %d did not complete within the expected timeframe, will be set to VALIDATION_EXPIRED.", submissionID))
}

// Wait blocks until every scheduled worker and guard has returned or ctx is done.
func (h *SubmissionHandler) Wait(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
