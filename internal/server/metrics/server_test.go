package metrics

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHandler_Metrics(t *testing.T) {
	s := NewServer(":0", newTestLogger(), nil)
	s.Metrics().ObserveLogin("success")

	rec := get(t, s.Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `gophauth_logins_total{outcome="success"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestHandler_Probes(t *testing.T) {
	ready := error(nil)
	s := NewServer(":0", newTestLogger(), func(context.Context) error { return ready })
	h := s.Handler()

	assert.Equal(t, http.StatusOK, get(t, h, "/healthz/liveness").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/healthz/readiness").Code)

	ready = errors.New("store unreachable")
	rec := get(t, h, "/healthz/readiness")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not ready\n", rec.Body.String())
	assert.Equal(t, http.StatusOK, get(t, h, "/healthz/liveness").Code)
}

func TestServe_StopsOnContextCancel(t *testing.T) {
	s := NewServer("", newTestLogger(), nil)
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, lis) }()

	url := "http://" + lis.Addr().String() + "/healthz/liveness"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("metrics server did not stop")
	}
}

func TestRun_BadAddress(t *testing.T) {
	s := NewServer("127.0.0.1:99999", newTestLogger(), nil)
	assert.Error(t, s.Run(context.Background()))
}
