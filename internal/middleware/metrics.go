package middleware

import (
	"net/http"
	"time"

	"github.com/mcoot/presencechat/internal/metrics"
)

// Metrics records request counts and latency by route template
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := NewResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			m.HTTPRequest(r.Method, routeTemplate(r), wrapped.status, time.Since(start))
		})
	}
}
