package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m, err := New(Options{Registerer: reg})
	require.NoError(t, err)
	return m, reg
}

func TestMiddleware_RecordsRoutePattern(t *testing.T) {
	m, _ := newTestMetrics(t)

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/User/{login}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/User/alice", nil))
	require.Equal(t, http.StatusCreated, rr.Code)

	labels := prometheus.Labels{"method": http.MethodGet, "route": "/User/{login}", "status": "201"}
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.With(labels)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.InFlight))
	assert.NotZero(t, testutil.CollectAndCount(m.Duration))
}

func TestObservers(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.ObserveAuth("ok")
	m.ObserveAuth("ok")
	m.ObserveAuth("wrong_signature")
	m.ObserveRecovery("request", "ok")
	m.ObserveRelay(http.MethodPost, 200, 10*time.Millisecond)
	m.ObserveRelay(http.MethodPost, 0, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AuthAttempts.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthAttempts.WithLabelValues("wrong_signature")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecoveryRequests.WithLabelValues("request", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RelayRequests.WithLabelValues(http.MethodPost, "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RelayRequests.WithLabelValues(http.MethodPost, "error")))
}

func TestNilMetrics_NoOp(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveAuth("ok")
		m.ObserveRecovery("apply", "ok")
		m.ObserveRelay(http.MethodGet, 200, time.Second)
	})

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)
}

func TestNew_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()

	a, err := New(Options{Registerer: reg})
	require.NoError(t, err)
	b, err := New(Options{Registerer: reg})
	require.NoError(t, err)

	a.ObserveAuth("ok")
	assert.Equal(t, 1.0, testutil.ToFloat64(b.AuthAttempts.WithLabelValues("ok")))
}

func TestNewServer_ServesMetrics(t *testing.T) {
	m, reg := newTestMetrics(t)
	m.ObserveAuth("ok")

	srv := NewServer("127.0.0.1:0", reg)
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	body, _ := io.ReadAll(rr.Body)
	assert.True(t, strings.Contains(string(body), `authgate_auth_attempts_total{outcome="ok"} 1`))
}
