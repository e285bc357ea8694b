package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type contextKey string

const correlationIDKey contextKey = "correlation_id"

// CorrelationID tags every request with an identifier so a single Director
// decision can be traced from the HTTP handler through the service and
// broadcast logs. Clients (the approval UI, the resolution producer) may
// supply their own via X-Correlation-ID; otherwise one is generated. The
// value is echoed in the response header either way.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Correlation-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Correlation-ID", id)
		next.ServeHTTP(w, r.WithContext(
			context.WithValue(r.Context(), correlationIDKey, id),
		))
	})
}

// GetCorrelationID returns the request's correlation ID, or an empty string
// when the middleware was not applied.
func GetCorrelationID(ctx context.Context) string {
	v, _ := ctx.Value(correlationIDKey).(string)
	return v
}

// CorrelationField is the zap field form of the correlation ID, used by
// handlers so every error log line carries the same key.
func CorrelationField(ctx context.Context) zap.Field {
	return zap.String("correlation_id", GetCorrelationID(ctx))
}
