package middleware

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/relayr/relayr/utils/httputil"
	"github.com/relayr/relayr/utils/testutil"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally"
)

func TestEndpointScope(t *testing.T) {
	tests := []struct {
		method   string
		pattern  string
		reqPath  string
		expected string
	}{
		{"GET", "/api/v1/relay/ping", "/api/v1/relay/ping", "api.v1.relay.ping.GET"},
		{"GET", "/api/v1/relay/file-meta/{sender_id}", "/api/v1/relay/file-meta/abc", "api.v1.relay.file-meta.GET"},
		{"POST", "/api/v1/relay/file-meta/{sender_id}", "/api/v1/relay/file-meta/abc", "api.v1.relay.file-meta.POST"},
		{"GET", "/health", "/health", "health.GET"},
		{"GET", "/", "/", "GET"},
	}

	for _, test := range tests {
		t.Run(test.method+" "+test.pattern, func(t *testing.T) {
			require := require.New(t)

			stats := tally.NewTestScope("", nil)

			r := chi.NewRouter()
			r.HandleFunc(test.pattern, func(w http.ResponseWriter, r *http.Request) {
				endpointScope(stats, r).Counter("count").Inc(1)
			})
			addr, stop := testutil.StartServer(r)
			defer stop()

			_, err := httputil.Send(test.method, fmt.Sprintf("http://%s%s", addr, test.reqPath))
			require.NoError(err)

			counter, ok := stats.Snapshot().Counters()[test.expected+".count"]
			require.True(ok)
			require.Equal(int64(1), counter.Value())
		})
	}
}

func TestLatencyTimer(t *testing.T) {
	require := require.New(t)

	stats := tally.NewTestScope("", nil)

	r := chi.NewRouter()
	r.Use(LatencyTimer(stats))
	r.Get("/api/v1/relay/file-meta/{sender_id}", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})

	addr, stop := testutil.StartServer(r)
	defer stop()

	_, err := httputil.Get(fmt.Sprintf("http://%s/api/v1/relay/file-meta/abc", addr))
	require.NoError(err)

	now := time.Now()

	timer, ok := stats.Snapshot().Timers()["api.v1.relay.file-meta.GET.latency"]
	require.True(ok)
	require.WithinDuration(now, now.Add(timer.Values()[0]), 500*time.Millisecond)
}

func TestHitCounter(t *testing.T) {
	require := require.New(t)

	stats := tally.NewTestScope("", nil)

	r := chi.NewRouter()
	r.Use(HitCounter(stats))
	r.Get("/api/v1/relay/ping", func(w http.ResponseWriter, r *http.Request) {})

	addr, stop := testutil.StartServer(r)
	defer stop()

	for i := 0; i < 5; i++ {
		_, err := httputil.Get(fmt.Sprintf("http://%s/api/v1/relay/ping", addr))
		require.NoError(err)
	}

	counter, ok := stats.Snapshot().Counters()["api.v1.relay.ping.GET.count"]
	require.True(ok)
	require.Equal(int64(5), counter.Value())
}
