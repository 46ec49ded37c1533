// Package requestmeta provides middleware for request-scoped metadata: a
// correlation ID, a single request-wide "now" timestamp, and the idempotency
// key header. All operations within one HTTP request observe the same now, so
// ledger and entity timestamps written by a single mutation agree.
package requestmeta

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"trafficase/pkg/requestcontext"
)

// IdempotencyKeyHeader is the client-supplied dedup token. Absence degrades
// the mutation to "no dedup guarantee" rather than being rejected.
const IdempotencyKeyHeader = "Idempotency-Key"

// RequestIDHeader carries the correlation ID; one is generated when missing.
const RequestIDHeader = "X-Request-Id"

// Middleware captures request metadata into the context. Apply early in the
// chain so every handler and service sees the same values.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx = requestcontext.WithRequestID(ctx, requestID)
		ctx = requestcontext.WithTime(ctx, time.Now())

		if key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader)); key != "" {
			ctx = requestcontext.WithIdempotencyKey(ctx, key)
		}

		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
