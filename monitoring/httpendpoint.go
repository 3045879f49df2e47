// Package monitoring serves Prometheus metrics of long-running commands.
package monitoring

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricExporter holds the web endpoint for prometheus.
type MetricExporter struct {
	log        logr.Logger
	registry   *prometheus.Registry
	httpServer *http.Server
}

// New returns an exporter listening on addr. The registry already contains the
// Go runtime and process collectors.
func New(addr string, log logr.Logger) *MetricExporter {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := http.NewServeMux()
	m.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	return &MetricExporter{
		log:      log.WithName("metrics"),
		registry: reg,
		httpServer: &http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      10 * time.Second,
			MaxHeaderBytes:    1 << 20,
			Handler:           m,
		},
	}
}

// Registry is where components register their collectors.
func (m *MetricExporter) Registry() prometheus.Registerer {
	return m.registry
}

// Handler returns the HTTP handler serving /metrics.
func (m *MetricExporter) Handler() http.Handler {
	return m.httpServer.Handler
}

// Run serves until ctx is done and then shuts the server down.
func (m *MetricExporter) Run(ctx context.Context) error {
	errC := make(chan error, 1)
	go func() {
		m.log.Info("starting prometheus endpoint", "address", m.httpServer.Addr)
		errC <- m.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errC:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
