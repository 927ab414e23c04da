// Package actions decides whether a user may perform a filing action. Named
// validators are looked up in a Registry and run against a RequestContext
// that middleware builds from the request path.
package actions

import (
	"context"

	"github.com/dmitrijs2005/filingapi/internal/server/institutions"
	"github.com/dmitrijs2005/filingapi/internal/server/models"
)

// Requirement names a piece of context a route needs loaded before its
// validators run.
type Requirement string

const (
	RequireFiling      Requirement = "filing"
	RequireInstitution Requirement = "institution"
)

// RequestContext is what validators see. Filing and Institution are nil when
// not required or not found.
type RequestContext struct {
	LEI         string
	Period      string
	Filing      *models.Filing
	Institution *institutions.Institution
}

type ctxKey struct{}

func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, rc)
}

// FromContext returns the RequestContext stored in ctx, or an empty one.
func FromContext(ctx context.Context) *RequestContext {
	if rc, ok := ctx.Value(ctxKey{}).(*RequestContext); ok && rc != nil {
		return rc
	}
	return &RequestContext{}
}
