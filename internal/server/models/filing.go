package models

import (
	"strings"
	"time"
)

type FilingState string

const (
	FilingOpen   FilingState = "OPEN"
	FilingClosed FilingState = "CLOSED"
)

// Filing is an institution's filing obligation for one period.
type Filing struct {
	ID                    int64                `json:"id"`
	LEI                   string               `json:"lei"`
	FilingPeriod          string               `json:"filing_period"`
	State                 FilingState          `json:"state"`
	IsVoluntary           *bool                `json:"is_voluntary"`
	ContactInfo           *ContactInfo         `json:"contact_info"`
	InstitutionSnapshotID *string              `json:"institution_snapshot_id"`
	ConfirmationID        *string              `json:"confirmation_id"`
	Creator               *UserAction          `json:"creator"`
	Signatures            []UserAction         `json:"signatures"`
	Tasks                 []FilingTaskProgress `json:"tasks"`
}

type ContactInfo struct {
	ID               int64  `json:"id"`
	FilingID         int64  `json:"filing"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	HQAddressStreet1 string `json:"hq_address_street_1"`
	HQAddressStreet2 string `json:"hq_address_street_2"`
	HQAddressStreet3 string `json:"hq_address_street_3"`
	HQAddressStreet4 string `json:"hq_address_street_4"`
	HQAddressCity    string `json:"hq_address_city"`
	HQAddressState   string `json:"hq_address_state"`
	HQAddressZip     string `json:"hq_address_zip"`
	Email            string `json:"email"`
	PhoneNumber      string `json:"phone_number"`
	PhoneExt         string `json:"phone_ext"`
}

// Complete reports whether every field required for signing is filled in.
func (c *ContactInfo) Complete() bool {
	if c == nil {
		return false
	}
	for _, v := range []string{
		c.FirstName, c.LastName, c.HQAddressStreet1, c.HQAddressCity,
		c.HQAddressState, c.HQAddressZip, c.Email, c.PhoneNumber,
	} {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

type FilingPeriod struct {
	Code        string    `json:"code"`
	Description string    `json:"description"`
	StartPeriod time.Time `json:"start_period"`
	EndPeriod   time.Time `json:"end_period"`
	Due         time.Time `json:"due"`
	FilingType  string    `json:"filing_type"`
}

type FilingTaskState string

const (
	TaskNotStarted FilingTaskState = "NOT_STARTED"
	TaskInProgress FilingTaskState = "IN_PROGRESS"
	TaskCompleted  FilingTaskState = "COMPLETED"
)

// Valid reports whether s is a known task state.
func (s FilingTaskState) Valid() bool {
	return s == TaskNotStarted || s == TaskInProgress || s == TaskCompleted
}

type FilingTaskProgress struct {
	Task            string          `json:"task"`
	State           FilingTaskState `json:"state"`
	User            string          `json:"user"`
	ChangeTimestamp time.Time       `json:"change_timestamp"`
}

// FilingReopen links a filing to the REOPEN action that reopened it.
type FilingReopen struct {
	UserActionID int64 `json:"user_action"`
	FilingID     int64 `json:"filing"`
}
