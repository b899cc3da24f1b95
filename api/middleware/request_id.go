package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/dealdesk/dealdesk-backend/pkg/logger"
)

const RequestIDHeader = "X-Request-Id"

// RequestID ensures every request carries a request id, echoing it back on
// the response and attaching it to the request-scoped logger.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}

			w.Header().Set(RequestIDHeader, requestID)
			ctx := logg.WithRequestID(r.Context(), requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
