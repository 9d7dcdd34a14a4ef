// Package apm sets up application performance monitoring, i.e. OpenTelemetry traces and metrics.
// Metrics are exposed for Prometheus to scrape, traces are exported to an OTLP collector.
package apm

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/naughtygopher/errors"
	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/propagators/b3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const instrumentationName = "github.com/prashantkr001/inventory-api"

type Options struct {
	Environment    string
	Debug          bool
	ServiceName    string
	ServiceVersion string
	// TracesSampleRate is the ratio (0 to 1) of root spans sampled. Debug forces 1
	TracesSampleRate float64
	// CollectorURL starting with http:// or https:// uses OTLP/HTTP, anything else is
	// treated as a host:port of an OTLP/gRPC collector. Empty disables trace export.
	CollectorURL         string
	PrometheusScrapePort uint16
	UseStdOut            bool
}

type APM struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	appTracer      trace.Tracer
	appMeter       metric.Meter
	// metricsServer is nil unless a Prometheus scrape port is configured
	metricsServer *http.Server
}

var (
	globalLocker = &sync.RWMutex{}
	global       = newWithProviders(sdktrace.NewTracerProvider(), sdkmetric.NewMeterProvider())
)

func newWithProviders(tp *sdktrace.TracerProvider, mp *sdkmetric.MeterProvider) *APM {
	return &APM{
		tracerProvider: tp,
		meterProvider:  mp,
		appTracer:      tp.Tracer(instrumentationName),
		appMeter:       mp.Meter(instrumentationName),
	}
}

// Global returns the APM instance in use. Until SetGlobal is called, it is a non-exporting instance.
func Global() *APM {
	globalLocker.RLock()
	defer globalLocker.RUnlock()
	return global
}

func SetGlobal(ins *APM) {
	globalLocker.Lock()
	defer globalLocker.Unlock()
	global = ins

	otel.SetTracerProvider(ins.tracerProvider)
	otel.SetMeterProvider(ins.meterProvider)
}

func (ap *APM) GetTracerProvider() trace.TracerProvider { //nolint:ireturn // that's how otel sdk works
	return ap.tracerProvider
}

func (ap *APM) GetMeterProvider() metric.MeterProvider { //nolint:ireturn // that's how otel sdk works
	return ap.meterProvider
}

func (ap *APM) AppTracer() trace.Tracer { //nolint:ireturn // that's how otel sdk works
	return ap.appTracer
}

func (ap *APM) AppMeter() metric.Meter { //nolint:ireturn // that's how otel sdk works
	return ap.appMeter
}

func (ap *APM) Shutdown(ctx context.Context) error {
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return ap.tracerProvider.Shutdown(gctx)
	})
	group.Go(func() error {
		return ap.meterProvider.Shutdown(gctx)
	})
	if ap.metricsServer != nil {
		group.Go(func() error {
			return ap.metricsServer.Shutdown(gctx)
		})
	}

	err := group.Wait()
	if err != nil {
		return errors.Wrap(err, "failed to shutdown APM")
	}
	return nil
}

func traceExporter(ctx context.Context, opts *Options) (sdktrace.SpanExporter, error) { //nolint:ireturn // that's how otel sdk works
	if strings.HasPrefix(opts.CollectorURL, "http://") || strings.HasPrefix(opts.CollectorURL, "https://") {
		exp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(opts.CollectorURL))
		if err != nil {
			return nil, errors.Wrap(err, "otlptracehttp.New")
		}
		return exp, nil
	}

	exp, err := otlptracegrpc.New(
		ctx,
		otlptracegrpc.WithEndpoint(opts.CollectorURL),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "otlptracegrpc.New")
	}
	return exp, nil
}

func tracerProvider(ctx context.Context, opts *Options, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	sampler := sdktrace.ParentBased(sdktrace.TraceIDRatioBased(opts.TracesSampleRate))
	if opts.Debug {
		sampler = sdktrace.AlwaysSample()
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	}

	if opts.CollectorURL != "" {
		exp, err := traceExporter(ctx, opts)
		if err != nil {
			return nil, err
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
	}

	if opts.UseStdOut {
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, errors.Wrap(err, "stdouttrace.New")
		}
		tpOpts = append(tpOpts, sdktrace.WithSyncer(exp))
	}

	return sdktrace.NewTracerProvider(tpOpts...), nil
}

// meterProvider also returns the Prometheus scrape server, which is already serving, if
// a scrape port is configured.
func meterProvider(opts *Options, res *resource.Resource) (*sdkmetric.MeterProvider, *http.Server, error) {
	mpOpts := []sdkmetric.Option{
		sdkmetric.WithResource(res),
	}

	var server *http.Server
	if opts.PrometheusScrapePort != 0 {
		exporter, err := prometheusExporter(promclient.DefaultRegisterer)
		if err != nil {
			return nil, nil, err
		}
		mpOpts = append(mpOpts, sdkmetric.WithReader(exporter))
		server = metricsServer(opts.PrometheusScrapePort, promclient.DefaultGatherer)
		go serveMetrics(server)
	}

	if opts.UseStdOut {
		exp, err := stdoutmetric.New()
		if err != nil {
			return nil, nil, errors.Wrap(err, "stdoutmetric.New")
		}
		mpOpts = append(mpOpts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)))
	}

	return sdkmetric.NewMeterProvider(mpOpts...), server, nil
}

// New initializes tracer & meter providers and the text map propagators. It does not replace
// the global instance, use SetGlobal for that.
func New(ctx context.Context, opts *Options) (*APM, error) {
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(opts.ServiceName),
		semconv.ServiceVersion(opts.ServiceVersion),
		attribute.String("deployment.environment", opts.Environment),
	)

	tp, err := tracerProvider(ctx, opts, res)
	if err != nil {
		return nil, err
	}

	mp, server, err := meterProvider(opts, res)
	if err != nil {
		return nil, err
	}

	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
			b3.New(b3.WithInjectEncoding(b3.B3MultipleHeader)),
		),
	)

	ins := newWithProviders(tp, mp)
	ins.metricsServer = server
	return ins, nil
}
