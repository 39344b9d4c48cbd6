package middleware

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/butterfly-chat/backend/internal/observability"
)

// RequestIDHeader carries the request ID back to the client
const RequestIDHeader = "X-Request-ID"

// RequestLogger assigns every request an ID and logs it once it completes.
// The ID set by chi's RequestID middleware is reused when present.
// The wrapped writer still implements http.Flusher, so streamed responses are not buffered.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chimiddleware.GetReqID(r.Context())
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, requestID)

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := WithRequestID(r.Context(), requestID)
			ctx = observability.WithLogger(ctx, reqLogger)

			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_addr", r.RemoteAddr),
			}
			switch {
			case status >= http.StatusInternalServerError:
				reqLogger.Error("request completed", fields...)
			case status >= http.StatusBadRequest:
				reqLogger.Warn("request completed", fields...)
			default:
				reqLogger.Info("request completed", fields...)
			}
		})
	}
}
