package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/uber-go/tally"
)

// endpointScope subscopes stats by the matched route and method, so
// "GET /api/v1/relay/ping" reports under "api.v1.relay.ping.GET". Path
// variables and wildcards are skipped.
//
// chi only knows the matched pattern once the handler has run, so callers
// must resolve the scope after calling next.
func endpointScope(stats tally.Scope, r *http.Request) tally.Scope {
	pattern := chi.RouteContext(r.Context()).RoutePattern()
	for _, seg := range strings.Split(pattern, "/") {
		if seg == "" || seg[0] == '{' || seg[0] == '*' {
			continue
		}
		stats = stats.SubScope(seg)
	}
	return stats.SubScope(strings.ToUpper(r.Method))
}

// HitCounter counts hits per endpoint.
func HitCounter(stats tally.Scope) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			endpointScope(stats, r).Counter("count").Inc(1)
		})
	}
}

// LatencyTimer records latency per endpoint. On the websocket endpoint this
// covers the whole session, since the upgrade handler returns only after the
// connection closes.
func LatencyTimer(stats tally.Scope) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			endpointScope(stats, r).Timer("latency").Record(time.Since(start))
		})
	}
}
