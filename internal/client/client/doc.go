// Package client talks to the filing HTTP API on behalf of the CLI.
//
// HTTPClient covers the submit-and-sign flow: create a filing, upload a
// file, poll the submission until validation settles, accept it and sign
// the filing. Every request carries the bearer token and a fresh
// X-Request-Id.
//
// # Error Handling
//
// Non-2xx answers decode into *APIError. 401 and 503 also match the
// sentinels ErrUnauthorized and ErrUnavailable through errors.Is.
package client
