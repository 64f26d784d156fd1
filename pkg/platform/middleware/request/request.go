// Package request provides middleware that assigns every request a unique ID.
// The ID is stored in the context and echoed in the X-Request-ID response
// header so clients and log pipelines can correlate entries.
package request

import (
	"net/http"

	"github.com/google/uuid"

	"siva/pkg/requestcontext"
)

const headerRequestID = "X-Request-ID"

// Middleware assigns a request ID. An inbound X-Request-ID from a trusted
// proxy is reused so IDs stay stable across hops; otherwise a fresh UUID is
// minted.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(headerRequestID)
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.NewString()
		}

		w.Header().Set(headerRequestID, requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
