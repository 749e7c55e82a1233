package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Memesold/vk-tg-repost-bot/internal/httputil"
	"github.com/Memesold/vk-tg-repost-bot/internal/metrics"
	"github.com/Memesold/vk-tg-repost-bot/internal/tracing"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ObservabilityMiddleware adds metrics collection and tracing to HTTP requests
func ObservabilityMiddleware(logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracing.StartSpan(r.Context(), "http_request",
				attribute.String("http.method", r.Method),
				attribute.String("http.route", r.URL.Path),
				attribute.String("client.address", httputil.GetClientIP(r)),
			)
			defer span.End()

			r = r.WithContext(ctx)

			wrapper := &responseWrapper{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			start := time.Now()
			next.ServeHTTP(wrapper, r)
			duration := time.Since(start)

			labels := map[string]string{
				"method": r.Method,
				"path":   r.URL.Path,
				"status": strconv.Itoa(wrapper.statusCode),
			}
			metrics.IncrementCounter("http_requests_total", labels, "Total HTTP requests")
			metrics.RecordTimer("http_request_duration", duration, labels)

			tracing.AddSpanAttributes(ctx,
				attribute.Int("http.status_code", wrapper.statusCode),
				attribute.Int64("http.response_size", wrapper.responseSize),
			)
			if wrapper.statusCode >= http.StatusInternalServerError {
				tracing.SetSpanStatus(ctx, codes.Error, http.StatusText(wrapper.statusCode))
			}

			logger.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   wrapper.statusCode,
				"duration": duration,
				"trace_id": tracing.GetOtelTraceID(ctx),
			}).Debug("HTTP request completed")
		})
	}
}

// responseWrapper captures the status code and response size
type responseWrapper struct {
	http.ResponseWriter
	statusCode   int
	responseSize int64
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWrapper) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.responseSize += int64(n)
	return n, err
}
