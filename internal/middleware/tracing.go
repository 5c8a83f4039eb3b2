package middleware

import (
	"net/http"

	"github.com/R3E-Network/loyalty_layer/pkg/logger"
)

// Tracing propagates the caller's X-Trace-ID or mints a new one, stores it in
// the request context and echoes it on the response.
func Tracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(logger.TraceIDHeader)
		if traceID == "" {
			traceID = logger.NewTraceID()
		}
		w.Header().Set(logger.TraceIDHeader, traceID)
		next.ServeHTTP(w, r.WithContext(logger.WithTraceID(r.Context(), traceID)))
	})
}
