package apm

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type HTTPOpts struct {
	OperationName string
	OTEL          []otelhttp.Option
}

type HTTPMiddleware func(h http.Handler) http.Handler

// NewHTTPMiddleware instruments HTTP handlers with the tracer & meter providers of the global APM
func NewHTTPMiddleware(
	hopts *HTTPOpts,
) HTTPMiddleware {
	if hopts == nil {
		hopts = &HTTPOpts{}
	}

	const minOptions = 2
	opts := make([]otelhttp.Option, 0, len(hopts.OTEL)+minOptions)
	opts = append(opts, hopts.OTEL...)

	gb := Global()
	opts = append(
		opts,
		otelhttp.WithMeterProvider(gb.GetMeterProvider()),
		otelhttp.WithTracerProvider(gb.GetTracerProvider()),
	)

	opName := hopts.OperationName
	if opName == "" {
		opName = "inventory-http"
	}

	return otelhttp.NewMiddleware(opName, opts...)
}
