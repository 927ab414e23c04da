package actions

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/filingapi/internal/common"
	"github.com/dmitrijs2005/filingapi/internal/logging"
	"github.com/dmitrijs2005/filingapi/internal/server/models"
)

// Check adapts a pure function of the RequestContext to a Validator.
type Check struct {
	name string
	fn   func(rc *RequestContext) string
}

func NewCheck(name string, fn func(rc *RequestContext) string) Check {
	return Check{name: name, fn: fn}
}

func (c Check) Name() string { return c.name }

func (c Check) Validate(_ context.Context, rc *RequestContext) (string, error) {
	return c.fn(rc), nil
}

// LatestSubmissions returns the newest submission of a filing, or an error
// wrapping common.ErrorNotFound when there is none.
type LatestSubmissions interface {
	GetLatestSubmission(ctx context.Context, lei, period string) (*models.Submission, error)
}

// SubmissionAccepted requires the newest submission of the filing to be
// SUBMISSION_ACCEPTED.
type SubmissionAccepted struct {
	Submissions LatestSubmissions
}

func (SubmissionAccepted) Name() string { return "valid_sub_accepted" }

func (v SubmissionAccepted) Validate(ctx context.Context, rc *RequestContext) (string, error) {
	f := rc.Filing
	if f == nil {
		return "", nil
	}
	sub, err := v.Submissions.GetLatestSubmission(ctx, f.LEI, f.FilingPeriod)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return "", fmt.Errorf("latest submission for %s/%s: %w", f.LEI, f.FilingPeriod, err)
	}
	if sub == nil || sub.State != models.SubmissionAccepted {
		return fmt.Sprintf("Cannot sign filing. Filing for %s for period %s does not have a latest submission in the SUBMISSION_ACCEPTED state.",
			f.LEI, f.FilingPeriod), nil
	}
	return "", nil
}

func validLEIStatus(rc *RequestContext) string {
	inst := rc.Institution
	if inst == nil || inst.LEIStatus == nil {
		return "Unable to determine LEI status."
	}
	if !inst.LEIStatus.CanFile {
		return fmt.Sprintf("Cannot sign filing. LEI status of %s cannot file.", inst.LEIStatusCode)
	}
	return ""
}

func validLEITin(rc *RequestContext) string {
	if rc.Institution == nil || rc.Institution.TaxID == "" {
		return "Cannot sign filing. TIN is required to file."
	}
	return ""
}

func validFilingExists(action string) func(rc *RequestContext) string {
	return func(rc *RequestContext) string {
		if rc.Filing == nil {
			return fmt.Sprintf("There is no Filing for LEI %s in period %s, unable to %s a non-existent Filing.", rc.LEI, rc.Period, action)
		}
		return ""
	}
}

func validNoFilingExists(rc *RequestContext) string {
	if rc.Filing != nil {
		return fmt.Sprintf("Filing already exists for Filing Period %s and LEI %s", rc.Period, rc.LEI)
	}
	return ""
}

func validVoluntaryFiler(rc *RequestContext) string {
	if f := rc.Filing; f != nil && f.IsVoluntary == nil {
		return fmt.Sprintf("Cannot sign filing. Filing for %s for period %s does not have a selection of is_voluntary defined.", f.LEI, f.FilingPeriod)
	}
	return ""
}

func validContactInfo(rc *RequestContext) string {
	if f := rc.Filing; f != nil && !f.ContactInfo.Complete() {
		return fmt.Sprintf("Cannot sign filing. Filing for %s for period %s does not have contact info defined.", f.LEI, f.FilingPeriod)
	}
	return ""
}

func validFilingOpen(rc *RequestContext) string {
	if f := rc.Filing; f != nil && f.State == models.FilingClosed {
		return fmt.Sprintf("Cannot sign filing. Filing state for %s for period %s is CLOSED.", f.LEI, f.FilingPeriod)
	}
	return ""
}

func validFilingNotOpen(rc *RequestContext) string {
	if f := rc.Filing; f != nil && f.State == models.FilingOpen {
		return fmt.Sprintf("Cannot reopen filing. Filing state for %s for period %s is OPEN.", f.LEI, f.FilingPeriod)
	}
	return ""
}

// NewDefaultRegistry returns a registry holding every built-in validator.
func NewDefaultRegistry(subs LatestSubmissions, log logging.Logger) *Registry {
	r := NewRegistry(log)
	r.Register(
		NewCheck("valid_lei_status", validLEIStatus),
		NewCheck("valid_lei_tin", validLEITin),
		NewCheck("valid_filing_exists_sign", validFilingExists("sign")),
		NewCheck("valid_filing_exists_reopen", validFilingExists("reopen")),
		NewCheck("valid_no_filing_exists", validNoFilingExists),
		NewCheck("valid_voluntary_filer", validVoluntaryFiler),
		NewCheck("valid_contact_info", validContactInfo),
		NewCheck("valid_filing_open", validFilingOpen),
		NewCheck("valid_filing_not_open", validFilingNotOpen),
		SubmissionAccepted{Submissions: subs},
	)
	return r
}
