// Package models defines server-side data models persisted in the database.
package models

import (
	"encoding/json"
	"time"
)

type SubmissionState string

const (
	SubmissionUploaded        SubmissionState = "SUBMISSION_UPLOADED"
	ValidationInProgress      SubmissionState = "VALIDATION_IN_PROGRESS"
	ValidationWithErrors      SubmissionState = "VALIDATION_WITH_ERRORS"
	ValidationWithWarnings    SubmissionState = "VALIDATION_WITH_WARNINGS"
	ValidationSuccessful      SubmissionState = "VALIDATION_SUCCESSFUL"
	ValidationError           SubmissionState = "VALIDATION_ERROR"
	ValidationExpired         SubmissionState = "VALIDATION_EXPIRED"
	SubmissionUploadMalformed SubmissionState = "SUBMISSION_UPLOAD_MALFORMED"
	SubmissionAccepted        SubmissionState = "SUBMISSION_ACCEPTED"
)

// IsTerminal reports whether no further validation transition will happen
// from this state.
func (s SubmissionState) IsTerminal() bool {
	switch s {
	case SubmissionUploaded, ValidationInProgress:
		return false
	default:
		return true
	}
}

// Acceptable reports whether a submission in this state may be accepted.
func (s SubmissionState) Acceptable() bool {
	return s == ValidationSuccessful || s == ValidationWithWarnings
}

// Submission is one uploaded file and its validation outcome.
type Submission struct {
	// ID is the global surrogate key.
	ID int64 `json:"id"`
	// Counter numbers submissions within their filing, starting at 1.
	// It addresses the submission in URLs and names its stored objects.
	Counter  int64           `json:"counter"`
	FilingID int64           `json:"filing"`
	State    SubmissionState `json:"state"`
	Filename string          `json:"filename"`

	Submitter *UserAction `json:"submitter,omitempty"`
	Accepter  *UserAction `json:"accepter,omitempty"`

	SubmissionTime           time.Time       `json:"submission_time"`
	ValidationRulesetVersion *string         `json:"validation_ruleset_version,omitempty"`
	ValidationResults        json.RawMessage `json:"validation_results,omitempty"`
	TotalRecords             *int            `json:"total_records,omitempty"`
}
