package models

import "time"

type UserActionType string

const (
	ActionSubmit UserActionType = "SUBMIT"
	ActionAccept UserActionType = "ACCEPT"
	ActionSign   UserActionType = "SIGN"
	ActionCreate UserActionType = "CREATE"
	ActionReopen UserActionType = "REOPEN"
)

// UserAction records a user performing a privileged operation. Rows are
// only ever inserted.
type UserAction struct {
	ID         int64          `json:"id"`
	UserID     string         `json:"user_id"`
	UserName   string         `json:"user_name"`
	UserEmail  string         `json:"user_email"`
	ActionType UserActionType `json:"action_type"`
	Timestamp  time.Time      `json:"timestamp"`
}

// User is the authenticated caller, taken from the bearer token.
type User struct {
	ID    string
	Name  string
	Email string
}

// NewAction builds an unsaved UserAction of type t performed by u.
func (u User) NewAction(t UserActionType) UserAction {
	return UserAction{UserID: u.ID, UserName: u.Name, UserEmail: u.Email, ActionType: t}
}
