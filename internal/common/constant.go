// Package common contains shared constants and sentinel errors used across
// filing API components.
package common

// AuthorizationHeaderName is the HTTP header carrying the caller's bearer
// token; it is forwarded as-is to the institution API.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the token in the Authorization header.
const BearerPrefix = "Bearer "
