package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// RequestError is a failure that should be surfaced to the HTTP caller with
// a specific status. Name is a short category ("Upload Failure"), Detail is
// either a string or a list of messages. Err keeps the underlying cause for
// logging and errors.Is/As.
type RequestError struct {
	Status int
	Name   string
	Detail any
	Err    error
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v: %v", e.Name, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Name, e.Detail)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// NewRequestError builds a RequestError wrapping cause (which may be nil).
func NewRequestError(status int, name string, detail any, cause error) *RequestError {
	return &RequestError{Status: status, Name: name, Detail: detail, Err: cause}
}

// Forbidden builds the aggregated authorization failure returned when one or
// more action validators reject a request.
func Forbidden(name string, messages []string) *RequestError {
	return &RequestError{Status: http.StatusForbidden, Name: name, Detail: messages}
}

// AsRequestError extracts a RequestError from err. Errors that are not
// request errors map to a generic 500, keeping err as the cause.
func AsRequestError(err error) *RequestError {
	var re *RequestError
	if errors.As(err, &re) {
		return re
	}
	switch {
	case errors.Is(err, ErrorNotFound):
		return &RequestError{Status: http.StatusNotFound, Name: "Not Found", Detail: err.Error(), Err: err}
	case errors.Is(err, ErrorAlreadyExists):
		return &RequestError{Status: http.StatusConflict, Name: "Conflict", Detail: err.Error(), Err: err}
	case errors.Is(err, ErrorInvalidState), errors.Is(err, ErrorIncorrectData):
		return &RequestError{Status: http.StatusBadRequest, Name: "Bad Request", Detail: err.Error(), Err: err}
	case errors.Is(err, ErrorUnauthorized), errors.Is(err, ErrInvalidToken), errors.Is(err, ErrTokenExpired):
		return &RequestError{Status: http.StatusUnauthorized, Name: "Unauthorized", Detail: err.Error(), Err: err}
	}
	return &RequestError{Status: http.StatusInternalServerError, Name: "Internal Error", Detail: "internal error", Err: err}
}

// WriteError renders err as {"error_name": ..., "error_detail": ...} with the
// status of its RequestError.
func WriteError(w http.ResponseWriter, err error) {
	re := AsRequestError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(re.Status)
	_ = json.NewEncoder(w).Encode(struct {
		Name   string `json:"error_name"`
		Detail any    `json:"error_detail"`
	}{re.Name, re.Detail})
}
