package apm

import (
	"fmt"
	"net/http"
	"time"

	"github.com/naughtygopher/errors"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.uber.org/zap"

	"github.com/prashantkr001/inventory-api/internal/pkg/logger"
)

const (
	metricsPath = "/-/metrics"
	// metricsNamespace prefixes every application metric
	metricsNamespace = "inventory"
)

// prometheusExporter registers the otel collector into reg. The MongoDB command monitor
// registers into the default registry as well, so both are served from the same endpoint.
func prometheusExporter(reg promclient.Registerer) (*prometheus.Exporter, error) {
	exporter, err := prometheus.New(
		prometheus.WithRegisterer(reg),
		prometheus.WithNamespace(metricsNamespace),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create prometheus exporter")
	}

	return exporter, nil
}

func metricsServer(port uint16, gatherer promclient.Gatherer) *http.Server {
	const readTimeout = time.Second * 5
	mux := http.NewServeMux()
	mux.Handle(metricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return &http.Server{
		Handler:           mux,
		Addr:              fmt.Sprintf(":%d", port),
		ReadHeaderTimeout: readTimeout,
	}
}

// serveMetrics blocks until the server is closed.
func serveMetrics(server *http.Server) {
	logger.Info(
		"[http/otel] serving inventory metrics",
		zap.String("addr", server.Addr),
		zap.String("path", metricsPath),
	)

	err := server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error(
			"[http/otel] metrics server stopped",
			zap.String("addr", server.Addr),
			zap.Error(err),
		)
	}
}
