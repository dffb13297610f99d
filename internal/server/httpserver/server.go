// Package httpserver exposes the gateway over HTTP: the protocol endpoints,
// the relay catch-all under /User/{login}, health and drain endpoints, and a
// separate Prometheus listener.
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/authgate/internal/logging"
	"github.com/dmitrijs2005/authgate/internal/server/metrics"
	"github.com/flashbots/go-utils/httplogger"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
)

type HTTPServerConfig struct {
	ListenAddr  string
	MetricsAddr string
	Log         *logging.SlogLogger
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer

	DrainDuration            time.Duration
	GracefulShutdownDuration time.Duration
	ReadTimeout              time.Duration
	WriteTimeout             time.Duration
}

type Server struct {
	cfg     *HTTPServerConfig
	isReady atomic.Bool
	log     logging.Logger

	srv        *http.Server
	metricsSrv *http.Server
	handler    *Handler
}

func New(cfg *HTTPServerConfig, handler *Handler) *Server {
	if cfg.Log == nil {
		cfg.Log = logging.Discard()
	}

	srv := &Server{
		cfg:     cfg,
		log:     cfg.Log.With("module", "httpserver"),
		handler: handler,
	}
	srv.isReady.Store(true)

	srv.srv = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.getRouter(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}
	if cfg.MetricsAddr != "" {
		srv.metricsSrv = metrics.NewServer(cfg.MetricsAddr, cfg.Gatherer)
	}

	return srv
}

// Handler returns the API router.
func (srv *Server) Handler() http.Handler {
	return srv.srv.Handler
}

func (srv *Server) getRouter() http.Handler {
	h := srv.handler
	mux := chi.NewRouter()
	mux.Use(requestID, srv.httpLogger, srv.cfg.Metrics.Middleware)

	mux.Get("/Pubkey", h.HandlePubkey)
	mux.Post("/User", h.HandleRegister)

	mux.Route("/User/{login}", func(r chi.Router) {
		r.Get("/", h.HandleLogin)
		r.Post("/", h.HandleLogin)
		r.Post("/Password", h.HandleRequestRecovery)
		r.Patch("/Password", h.HandleApplyRecovery)
		r.HandleFunc("/*", h.HandleRelay)
		// any other method on the routes above is relayed too
		r.MethodNotAllowed(h.HandleRelay)
	})

	// health and diagnostic endpoints
	mux.Get("/Alive", srv.handleLivenessCheck)
	mux.Get("/livez", srv.handleLivenessCheck)
	mux.Get("/readyz", srv.handleReadinessCheck)
	mux.Get("/drain", srv.handleDrain)
	mux.Get("/undrain", srv.handleUndrain)

	mux.NotFound(h.HandleNotFound)
	mux.MethodNotAllowed(h.HandleMethodNotAllowed)
	return mux
}

func (srv *Server) httpLogger(next http.Handler) http.Handler {
	return httplogger.LoggingMiddlewareSlog(srv.cfg.Log.Slog(), next)
}

func (srv *Server) handleLivenessCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (srv *Server) handleReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if !srv.isReady.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (srv *Server) handleDrain(w http.ResponseWriter, r *http.Request) {
	if !srv.isReady.Swap(false) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "already draining"})
		return
	}
	srv.log.Info(r.Context(), "server marked as not ready")
	writeJSON(w, http.StatusOK, map[string]string{"status": "draining"})
}

func (srv *Server) handleUndrain(w http.ResponseWriter, r *http.Request) {
	if srv.isReady.Swap(true) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "already ready"})
		return
	}
	srv.log.Info(r.Context(), "server marked as ready")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (srv *Server) RunInBackground() {
	ctx := context.Background()

	if srv.metricsSrv != nil {
		go func() {
			srv.log.Info(ctx, "starting metrics server", "metricsAddress", srv.cfg.MetricsAddr)
			if err := srv.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				srv.log.Error(ctx, "metrics server failed", "err", err)
			}
		}()
	}

	go func() {
		srv.log.Info(ctx, "starting HTTP server", "listenAddress", srv.cfg.ListenAddr)
		if err := srv.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srv.log.Error(ctx, "HTTP server failed", "err", err)
		}
	}()
}

// Shutdown marks the server not ready, waits DrainDuration so load
// balancers notice, then stops both listeners gracefully.
func (srv *Server) Shutdown() {
	ctx := context.Background()

	if srv.isReady.Swap(false) && srv.cfg.DrainDuration > 0 {
		srv.log.Info(ctx, "draining before shutdown", "duration", srv.cfg.DrainDuration)
		time.Sleep(srv.cfg.DrainDuration)
	}

	sctx, cancel := context.WithTimeout(ctx, srv.cfg.GracefulShutdownDuration)
	defer cancel()
	if err := srv.srv.Shutdown(sctx); err != nil {
		srv.log.Error(ctx, "graceful HTTP server shutdown failed", "err", err)
	} else {
		srv.log.Info(ctx, "HTTP server gracefully stopped")
	}

	if srv.metricsSrv != nil {
		mctx, cancel := context.WithTimeout(ctx, srv.cfg.GracefulShutdownDuration)
		defer cancel()
		if err := srv.metricsSrv.Shutdown(mctx); err != nil {
			srv.log.Error(ctx, "graceful metrics server shutdown failed", "err", err)
		} else {
			srv.log.Info(ctx, "metrics server gracefully stopped")
		}
	}
}
