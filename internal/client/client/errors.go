package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrPollTimeout  = errors.New("submission did not reach a terminal state in time")
)

// APIError is a non-2xx answer from the filing API. Detail is a string or,
// for rejected actions, a list of messages.
type APIError struct {
	Status int
	Name   string `json:"error_name"`
	Detail any    `json:"error_detail"`
}

func (e *APIError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("filing api: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("filing api: %d %s: %v", e.Status, e.Name, e.Detail)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrUnavailable:
		return e.Status == http.StatusServiceUnavailable
	}
	return false
}

// Messages returns Detail as a list of strings.
func (e *APIError) Messages() []string {
	switch d := e.Detail.(type) {
	case string:
		return []string{d}
	case []any:
		out := make([]string, 0, len(d))
		for _, v := range d {
			out = append(out, fmt.Sprint(v))
		}
		return out
	}
	return nil
}
