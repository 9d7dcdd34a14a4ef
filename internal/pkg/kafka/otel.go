package kafka

import (
	"context"
	"strconv"

	"github.com/naughtygopher/errors"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"

	"github.com/prashantkr001/inventory-api/internal/pkg/apm"
)

const handlerDurationMetric = "kafka.handler.duration"

// itemCodeKey renders record keys, which are item codes, as span attributes. Keys which are
// not item codes are left out.
func itemCodeKey(record *kgo.Record) (string, error) {
	code, err := strconv.Atoi(string(record.Key))
	if err != nil {
		return "", errors.Wrap(err, "record key is not an item code")
	}
	return strconv.Itoa(code), nil
}

func newTracer(cfg *Config) *kotel.Tracer {
	return kotel.NewTracer(
		kotel.TracerProvider(apm.Global().GetTracerProvider()),
		kotel.TracerPropagator(propagation.TraceContext{}),
		kotel.ConsumerGroup(cfg.ConsumerGroup),
		kotel.KeyFormatter(itemCodeKey),
	)
}

// withOTEL creates the client with kotel hooks for broker, produce and fetch telemetry,
// and the instruments HandleTopic records into.
func withOTEL(ctx context.Context, cfg *Config, opts ...kgo.Opt) (*Kafka, error) {
	tracer := newTracer(cfg)
	hooks := kotel.NewKotel(
		kotel.WithTracer(tracer),
		kotel.WithMeter(kotel.NewMeter(
			kotel.MeterProvider(apm.Global().GetMeterProvider()),
			kotel.WithMergedConnectsMeter(),
		)),
	).Hooks()

	handlerLatency, err := apm.Global().AppMeter().Int64Histogram(
		handlerDurationMetric,
		metric.WithUnit("ms"),
		metric.WithDescription("time taken to handle one consumed record, retries included"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create kafka handler histogram")
	}

	kcli, err := newCli(ctx, cfg, append(opts, kgo.WithHooks(hooks...))...)
	if err != nil {
		return nil, err
	}

	return &Kafka{
		cfg:               cfg,
		client:            kcli,
		tracer:            tracer,
		commitTimeout:     cfg.CommitTimeout,
		latencyInstrument: handlerLatency,
	}, nil
}
