// Package middleware provides reusable HTTP middleware for request IDs,
// Prometheus metrics, rate limiting and request timeouts.
package middleware

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/metrics"
)

// Chain applies middleware so that the first listed runs outermost.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Metrics instruments requests with the in-flight gauge, the request counter
// and the latency histogram. Method labels are lower-cased by promhttp.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		byRoute := func(w http.ResponseWriter, r *http.Request) {
			route := prometheus.Labels{"path": routeLabel(r.URL.Path)}
			counted := promhttp.InstrumentHandlerCounter(m.HTTPRequestsTotal.MustCurryWith(route), next)
			promhttp.InstrumentHandlerDuration(m.HTTPRequestDuration.MustCurryWith(route), counted).ServeHTTP(w, r)
		}
		return promhttp.InstrumentHandlerInFlight(m.HTTPRequestsInFlight, http.HandlerFunc(byRoute))
	}
}

var routePrefixes = [...]string{"/api/v1/", "/health/", "/metrics"}

// routeLabel reports paths outside the service's routes as "other" so
// scanners cannot blow up label cardinality.
func routeLabel(path string) string {
	for _, p := range routePrefixes {
		if strings.HasPrefix(path, p) {
			return path
		}
	}
	return "other"
}
