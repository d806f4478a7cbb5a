package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/curios-os/curios/internal/tuilog"
)

var metricsServer *http.Server

// startMetrics serves /metrics on addr in the background. An empty addr
// does nothing.
func startMetrics(addr string) error {
	if addr == "" {
		return nil
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}

	metricsServer = &http.Server{Handler: metricsRouter(), ReadHeaderTimeout: 5 * time.Second}

	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			tuilog.Log.Warn("Metrics server stopped", "error", err)
		}
	}(metricsServer)
	tuilog.Log.Info("Serving metrics", "addr", ln.Addr().String())
	return nil
}

func metricsRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

func stopMetrics() {
	if metricsServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(ctx)
	metricsServer = nil
}
