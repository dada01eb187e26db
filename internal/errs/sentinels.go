// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across service/transport/client layers.
var (
	// ErrConfig indicates the server is missing required configuration (e.g. upstream secret).
	ErrConfig = errors.New("configuration error")

	// ErrValidation indicates a syntactically valid request with invalid fields.
	ErrValidation = errors.New("validation error")

	// ErrInvalidRequest indicates a request body that could not be decoded at all.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUpstreamAuth indicates the upstream rejected our credential (401).
	// It is never surfaced to clients as an authentication failure.
	ErrUpstreamAuth = errors.New("upstream authentication failed")

	// ErrRateLimited indicates the upstream throttled the request (429).
	ErrRateLimited = errors.New("rate limited")

	// ErrUpstreamUnavailable indicates an upstream 5xx.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrUpstream indicates any other non-2xx upstream answer.
	ErrUpstream = errors.New("upstream error")

	// ErrNetwork indicates the upstream could not be reached.
	ErrNetwork = errors.New("network error")

	// ErrIdentityUnavailable indicates the client could not produce a device identifier.
	ErrIdentityUnavailable = errors.New("identity unavailable")

	// ErrScriptLoad indicates the widget runtime script failed to load.
	ErrScriptLoad = errors.New("widget script load failed")
)
