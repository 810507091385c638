package process_test

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/comfylaunch/internal/process"
)

func serverPort(t *testing.T, srv *httptest.Server) int {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return port
}

func TestHTTPProber(t *testing.T) {
	tests := map[string]struct {
		handler  http.HandlerFunc
		expAlive bool
	}{
		"A 200 on the queue endpoint should be alive.": {
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/queue" {
					w.WriteHeader(http.StatusNotFound)
					return
				}
				_, _ = w.Write([]byte(`{"queue_running":[],"queue_pending":[]}`))
			},
			expAlive: true,
		},

		"A non 200 status should not be alive.": {
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			expAlive: false,
		},

		"A server slower than the timeout should not be alive.": {
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-time.After(time.Second):
				case <-r.Context().Done():
				}
			},
			expAlive: false,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(test.handler)
			defer srv.Close()

			p, err := process.NewHTTPProber(process.HTTPProberConfig{Timeout: 100 * time.Millisecond})
			require.NoError(t, err)

			assert.Equal(t, test.expAlive, p.Probe(context.Background(), serverPort(t, srv)))
		})
	}
}

func TestHTTPProberNothingListening(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	p, err := process.NewHTTPProber(process.HTTPProberConfig{Timeout: 100 * time.Millisecond})
	require.NoError(t, err)

	assert.False(t, p.Probe(context.Background(), port))
}
