package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/trekjournal/media-proxy/pkg/logger"
)

const requestIDHeader = "X-Request-Id"

// RequestID tags every request with an ID, honoring an inbound header when it
// looks sane and minting a UUID otherwise. The ID is echoed back and attached
// to the request's log context.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(requestIDHeader)
			if !validRequestID(reqID) {
				reqID = uuid.NewString()
			}

			w.Header().Set(requestIDHeader, reqID)

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithRequestID(ctx, reqID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// validRequestID rejects inbound IDs that could pollute logs or response
// headers. The ID is caller-supplied and echoed verbatim, so only a short
// token of safe characters is accepted.
func validRequestID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == '.':
		default:
			return false
		}
	}
	return true
}
