package httpmiddleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// maxRequestIDLen bounds incoming ids so a hostile client cannot bloat log lines.
const maxRequestIDLen = 128

type ctxKeyRequestID struct{}

// RequestID assigns each request an identifier. A well-formed incoming
// X-Request-ID header is kept so ids survive proxy hops; anything else is
// replaced with a fresh UUID v4. The id is echoed on the response header and
// stored in the request context for RequestIDFromContext.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := sanitizeRequestID(r.Header.Get(requestIDHeader))
			if id == "" {
				id = uuid.NewString()
			}

			w.Header().Set(requestIDHeader, id)

			ctx := context.WithValue(r.Context(), ctxKeyRequestID{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDFromContext returns the request id stored by RequestID, or an
// empty string when none is set.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID{}).(string)
	return id
}

// sanitizeRequestID returns raw if it is usable as a request id: non-empty,
// at most maxRequestIDLen bytes, printable ASCII only. Otherwise it returns
// an empty string and the caller generates a new id.
func sanitizeRequestID(raw string) string {
	if raw == "" || len(raw) > maxRequestIDLen {
		return ""
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] < ' ' || raw[i] > '~' {
			return ""
		}
	}
	return raw
}
