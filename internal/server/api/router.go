// Package api exposes the filing service over HTTP.
package api

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrijs2005/filingapi/internal/logging"
	"github.com/dmitrijs2005/filingapi/internal/server/actions"
	"github.com/dmitrijs2005/filingapi/internal/server/auth"
	"github.com/dmitrijs2005/filingapi/internal/server/models"
	"github.com/dmitrijs2005/filingapi/internal/server/services"
)

// ActionForbidden is the error name of every action validator rejection.
const ActionForbidden = "Filing Action Forbidden"

// Filings is the filing workflow the handlers call into.
type Filings interface {
	ListPeriods(ctx context.Context) ([]models.FilingPeriod, error)
	GetFiling(ctx context.Context, lei, period string) (*models.Filing, error)
	CreateFiling(ctx context.Context, lei, period string, user models.User) (*models.Filing, error)
	GetContactInfo(ctx context.Context, lei, period string) (*models.ContactInfo, error)
	PutContactInfo(ctx context.Context, lei, period string, ci *models.ContactInfo) (*models.Filing, error)
	SetVoluntary(ctx context.Context, lei, period string, voluntary bool) (*models.Filing, error)
	SetInstitutionSnapshot(ctx context.Context, lei, period, snapshotID string) (*models.Filing, error)
	UpdateTaskState(ctx context.Context, lei, period, task string, state models.FilingTaskState, user models.User) error

	UploadSubmission(ctx context.Context, lei, period string, user models.User, fd services.FileDescriptor, content []byte) (*models.Submission, error)
	ListSubmissions(ctx context.Context, lei, period string) ([]*models.Submission, error)
	GetLatestSubmission(ctx context.Context, lei, period string) (*models.Submission, error)
	GetSubmission(ctx context.Context, lei, period string, counter int64) (*models.Submission, error)
	GetSubmissionReport(ctx context.Context, lei, period string, counter int64) (io.ReadCloser, error)
	AcceptSubmission(ctx context.Context, lei, period string, counter int64, user models.User) (*models.Submission, error)

	SignFiling(ctx context.Context, lei, period string, user models.User) (*models.Filing, error)
	ReopenFiling(ctx context.Context, lei, period string, user models.User) (*models.Filing, error)
}

type Options struct {
	Filings   Filings
	Gate      *actions.Gate
	SecretKey []byte
	// MaxUploadSize bounds the request body of an upload.
	MaxUploadSize int64

	CreateValidations []string
	SignValidations   []string
	ReopenValidations []string

	// Health reports whether the server can serve requests; nil means always.
	Health func(ctx context.Context) error
	Log    logging.Logger
}

func NewRouter(o Options) http.Handler {
	h := &handler{
		filings:       o.Filings,
		maxUploadSize: o.MaxUploadSize,
		health:        o.Health,
		log:           o.Log.With("module", "http_api"),
	}
	g := o.Gate

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logContext)
	r.Use(middleware.RealIP)
	r.Use(middleware.StripSlashes)
	r.Use(requestMetrics)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1/filing", func(r chi.Router) {
		r.Use(auth.Authenticate(o.SecretKey))

		r.Get("/periods", h.listPeriods)

		r.Route("/institutions/{lei}/filings/{period_code}", func(r chi.Router) {
			r.Get("/", h.getFiling)
			r.With(
				g.SetContext(actions.RequireInstitution, actions.RequireFiling),
				g.ValidateUserAction(o.CreateValidations, ActionForbidden),
			).Post("/", h.createFiling)

			r.Get("/submissions", h.listSubmissions)
			r.Post("/submissions", h.uploadSubmission)
			r.Get("/submissions/latest", h.latestSubmission)
			r.Get("/submissions/{counter}", h.getSubmission)
			r.Get("/submissions/{counter}/report", h.submissionReport)
			r.Put("/submissions/{counter}/accept", h.acceptSubmission)

			r.With(
				g.SetContext(actions.RequireInstitution, actions.RequireFiling),
				g.ValidateUserAction(o.SignValidations, ActionForbidden),
			).Put("/sign", h.signFiling)
			r.With(
				g.SetContext(actions.RequireFiling),
				g.ValidateUserAction(o.ReopenValidations, ActionForbidden),
			).Put("/reopen", h.reopenFiling)

			r.Get("/contact_info", h.getContactInfo)
			r.Put("/contact_info", h.putContactInfo)
			r.Put("/is_voluntary", h.setVoluntary)
			r.Put("/institution-snapshot-id", h.setInstitutionSnapshot)
			r.Post("/tasks/{task_name}", h.updateTask)
		})
	})

	return r
}
