package testutil

import (
	"net/http"

	"trafficase/pkg/platform/middleware/requestmeta"
)

// WithIdempotencyKey sets the idempotency header the way a client replaying
// a submission would.
func WithIdempotencyKey(req *http.Request, key string) *http.Request {
	if key != "" {
		req.Header.Set(requestmeta.IdempotencyKeyHeader, key)
	}
	return req
}

// WithRequestID pins the request ID instead of letting the middleware mint one.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	if requestID != "" {
		req.Header.Set(requestmeta.RequestIDHeader, requestID)
	}
	return req
}
