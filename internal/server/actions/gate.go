package actions

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/filingapi/internal/common"
	"github.com/dmitrijs2005/filingapi/internal/logging"
	"github.com/dmitrijs2005/filingapi/internal/server/institutions"
	"github.com/dmitrijs2005/filingapi/internal/server/metrics"
	"github.com/dmitrijs2005/filingapi/internal/server/models"
)

// URL parameters the gate reads.
const (
	ParamLEI    = "lei"
	ParamPeriod = "period_code"
)

type FilingLookup interface {
	GetFiling(ctx context.Context, lei, period string) (*models.Filing, error)
}

type InstitutionLookup interface {
	Get(ctx context.Context, lei, authorization string) *institutions.Institution
}

// Gate is the HTTP side of the registry: one middleware loads the request
// context, another runs a list of validators against it.
type Gate struct {
	registry     *Registry
	filings      FilingLookup
	institutions InstitutionLookup
	log          logging.Logger
}

func NewGate(r *Registry, filings FilingLookup, inst InstitutionLookup, log logging.Logger) *Gate {
	return &Gate{registry: r, filings: filings, institutions: inst, log: log.With("module", "action_gate")}
}

// SetContext loads what reqs ask for and stores it in the request context.
// A missing filing is left nil for the validators to judge.
func (g *Gate) SetContext(reqs ...Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			rc := &RequestContext{
				LEI:    chi.URLParam(r, ParamLEI),
				Period: chi.URLParam(r, ParamPeriod),
			}

			for _, req := range reqs {
				switch req {
				case RequireInstitution:
					if rc.LEI != "" {
						rc.Institution = g.institutions.Get(ctx, rc.LEI, r.Header.Get(common.AuthorizationHeaderName))
					}
				case RequireFiling:
					if rc.Period == "" {
						continue
					}
					f, err := g.filings.GetFiling(ctx, rc.LEI, rc.Period)
					if err != nil && !errors.Is(err, common.ErrorNotFound) {
						g.log.Error(ctx, "load filing", "lei", rc.LEI, "period", rc.Period, "error", err)
						common.WriteError(w, err)
						return
					}
					rc.Filing = f
				}
			}

			next.ServeHTTP(w, r.WithContext(WithRequestContext(ctx, rc)))
		})
	}
}

// ValidateUserAction runs names against the request context and answers 403
// with every failure message when at least one validator objects.
func (g *Gate) ValidateUserAction(names []string, exceptionName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			msgs, err := g.registry.Run(ctx, names, FromContext(ctx))
			if err != nil {
				g.log.Error(ctx, "action validation", "action", exceptionName, "error", err)
				common.WriteError(w, err)
				return
			}
			if len(msgs) > 0 {
				metrics.ActionRejections.WithLabelValues(exceptionName).Inc()
				common.WriteError(w, common.Forbidden(exceptionName, msgs))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
