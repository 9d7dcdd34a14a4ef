package apm

import (
	"net"
	"strconv"
	"time"

	"github.com/naughtygopher/errors"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/stats"
)

// reflectionMethods are long lived streams opened by tools like grpcurl, they'd only skew latencies
var reflectionMethods = []string{
	"/grpc.reflection.v1.ServerReflection/ServerReflectionInfo",
	"/grpc.reflection.v1alpha.ServerReflection/ServerReflectionInfo",
}

func grpcServiceAttr(service string) attribute.KeyValue {
	return attribute.String("inventory.grpc.service", service)
}

// GRPCServerStatsHandler traces and measures every RPC of the server except reflection and the
// full method names in skipMethods. Spans and metrics are labelled with service.
func GRPCServerStatsHandler(service string, skipMethods ...string) stats.Handler { //nolint:ireturn // that's how otel sdk works
	skipped := make(map[string]struct{}, len(reflectionMethods)+len(skipMethods))
	for _, method := range reflectionMethods {
		skipped[method] = struct{}{}
	}
	for _, method := range skipMethods {
		skipped[method] = struct{}{}
	}

	return otelgrpc.NewServerHandler(
		otelgrpc.WithTracerProvider(Global().GetTracerProvider()),
		otelgrpc.WithMeterProvider(Global().GetMeterProvider()),
		otelgrpc.WithFilter(func(info *stats.RPCTagInfo) bool {
			_, skip := skipped[info.FullMethodName]
			return !skip
		}),
		otelgrpc.WithSpanAttributes(grpcServiceAttr(service)),
		otelgrpc.WithMetricAttributes(grpcServiceAttr(service)),
	)
}

// NewGRPCClient creates a plaintext client connection to host:port, instrumented the same way
// as the server.
func NewGRPCClient(host string, port int, service string) (*grpc.ClientConn, error) {
	const (
		keepAliveTime = time.Second * 30
		timeout       = time.Second * 10
	)

	conn, err := grpc.NewClient(
		net.JoinHostPort(host, strconv.Itoa(port)),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                keepAliveTime,
			Timeout:             timeout,
			PermitWithoutStream: true,
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler(
			otelgrpc.WithTracerProvider(Global().GetTracerProvider()),
			otelgrpc.WithMeterProvider(Global().GetMeterProvider()),
			otelgrpc.WithSpanAttributes(grpcServiceAttr(service)),
		)),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create gRPC client for %s", service)
	}

	return conn, nil
}
