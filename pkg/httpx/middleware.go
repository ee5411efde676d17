package httpx

import (
	"net/http"
	"strconv"
	"time"

	"github.com/GwynCerbin/go_rabbit_service/pkg/metrics"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// AccessLog writes one log line per served request.
func AccessLog(l *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				l.Info("http request",
					zap.String("requestId", middleware.GetReqID(r.Context())),
					zap.String("httpProto", r.Proto),
					zap.String("httpMethod", r.Method),
					zap.String("remoteAddr", r.RemoteAddr),
					zap.String("uri", r.URL.Path),
					zap.Duration("lat", time.Since(start)),
					zap.Int("responseSize", ww.BytesWritten()),
					zap.Int("status", status(ww)),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// Collect records request counters and latency, skipping the scrape endpoint.
func Collect(m *metrics.Metrics, skip ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				for _, p := range skip {
					if r.URL.Path == p {
						return
					}
				}

				m.HTTPRequest(strconv.Itoa(status(ww)), r.Method, time.Since(start))
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// status is the written status code; a handler that never wrote a header sent 200.
func status(ww middleware.WrapResponseWriter) int {
	if code := ww.Status(); code != 0 {
		return code
	}

	return http.StatusOK
}
