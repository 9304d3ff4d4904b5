package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const (
	metricsPath = "/metrics"
	healthPath  = "/healthz"

	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// NewServeMux routes /metrics to metrics and answers liveness on /healthz.
func NewServeMux(metrics http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(metricsPath, metrics)
	mux.Handle(healthPath, http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte(`{"status":"ok"}`))
	}))

	return mux
}

// MetricsServer serves NewServeMux on a TCP address.
type MetricsServer struct {
	srv    *http.Server
	ln     net.Listener
	logger *slog.Logger
	done   chan error
}

// StartMetricsServer listens on addr and serves in the background.
func StartMetricsServer(addr string, metrics http.Handler, logger *slog.Logger) (*MetricsServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	ms := &MetricsServer{
		srv: &http.Server{
			Handler:           NewServeMux(metrics),
			ReadHeaderTimeout: readHeaderTimeout,
		},
		ln:     ln,
		logger: logger,
		done:   make(chan error, 1),
	}

	go func() {
		serveErr := ms.srv.Serve(ln)
		if errors.Is(serveErr, http.ErrServerClosed) {
			serveErr = nil
		}

		ms.done <- serveErr
	}()

	logger.Info("metrics: serving", "addr", ln.Addr().String(), "path", metricsPath)

	return ms, nil
}

// Addr returns the bound listen address.
func (ms *MetricsServer) Addr() string {
	return ms.ln.Addr().String()
}

// Close shuts the server down gracefully.
func (ms *MetricsServer) Close(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	err := ms.srv.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}

	return <-ms.done
}
