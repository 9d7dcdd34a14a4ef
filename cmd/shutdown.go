package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/naughtygopher/proberesponder"

	"github.com/prashantkr001/inventory-api/cmd/server/grpc"
	xhttp "github.com/prashantkr001/inventory-api/cmd/server/http"
	kafkaSubs "github.com/prashantkr001/inventory-api/cmd/subscriber/kafka"
	"github.com/prashantkr001/inventory-api/internal/pkg/apm"
	"github.com/prashantkr001/inventory-api/internal/pkg/logger"
)

func shutdown(
	pResp *proberesponder.ProbeResponder,
	healthResp *http.Server,
	httpServer *xhttp.HTTP,
	grpcServer *grpc.GRPC,
	ksub *kafkaSubs.Kafka,
	deps *dependencies,
	apmHandler *apm.APM,
) {
	// the time should be decided based on the K8s grace period allowed for shutdown
	// ref: terminationGracePeriodSeconds, https://kubernetes.io/docs/concepts/containers/container-lifecycle-hooks/
	const shutdownTimeout = time.Second * 60
	pResp.AppendHealthResponse("shutdown", fmt.Sprintf("initiated %s", time.Now().Format(time.RFC3339)))
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	/*
		Note: Though there is no mandate to do healthcheck via HTTP, it is important to keep healthcheck
		endpoint available as long as possible to provide Kubernetes probes as much context as possible.
		Especially during the graceful shutdown period. Hence it is recommended to setup an independent
		server for health checks alone.
	*/
	defer func() {
		_ = healthResp.Shutdown(ctx)
	}()

	wgroup := &sync.WaitGroup{}

	shutdownAPIs(ctx, wgroup, pResp, httpServer, grpcServer, ksub)

	// after all the APIs of the application are shutdown (e.g. HTTP, gRPC, Pubsub listener etc.)
	// we should close connections to dependencies like database, cache etc.
	// This should only be done after the APIs are shutdown completely
	shutdownDependencies(ctx, wgroup, pResp, deps, apmHandler)

	wgroup.Wait()
}

func shutdownAPIs(
	ctx context.Context,
	wgroup *sync.WaitGroup,
	pResp *proberesponder.ProbeResponder,
	httpServer *xhttp.HTTP,
	grpcServer *grpc.GRPC,
	ksub *kafkaSubs.Kafka,
) {
	shutdownComponent(wgroup, pResp, "http-itemserver", func() error {
		return httpServer.Shutdown(ctx)
	})

	shutdownComponent(wgroup, pResp, "grpc-itemserver", func() error {
		grpcServer.Shutdown()
		return nil
	})

	shutdownComponent(wgroup, pResp, "kafka-subscriber", func() error {
		return ksub.Shutdown(ctx)
	})

	wgroup.Wait()
}

// shutdownComponent runs closer in its own goroutine, recording start and completion
// in the health response.
func shutdownComponent(
	wgroup *sync.WaitGroup,
	pResp *proberesponder.ProbeResponder,
	name string,
	closer func() error,
) {
	key := fmt.Sprintf("shutdown/%s", name)
	wgroup.Add(1)
	go func() {
		defer func() {
			wgroup.Done()
			pResp.AppendHealthResponse(key, fmt.Sprintf("completed %s", time.Now().Format(time.RFC3339)))
		}()
		pResp.AppendHealthResponse(key, fmt.Sprintf("initiated %s", time.Now().Format(time.RFC3339)))

		err := closer()
		if err != nil {
			logger.ErrWithStacktrace(err)
		}
	}()
}

func shutdownDependencies(
	ctx context.Context,
	wgroup *sync.WaitGroup,
	pResp *proberesponder.ProbeResponder,
	deps *dependencies,
	apmHandler *apm.APM,
) {
	if deps.mongoClient != nil {
		shutdownComponent(wgroup, pResp, "mongodb-driver", func() error {
			return deps.mongoClient.Disconnect(ctx)
		})
	}

	if deps.postgresDB != nil {
		shutdownComponent(wgroup, pResp, "postgres-driver", deps.postgresDB.Close)
	}

	if deps.redisClient != nil {
		shutdownComponent(wgroup, pResp, "redis-client", deps.redisClient.Close)
	}

	if deps.memcached != nil {
		shutdownComponent(wgroup, pResp, "memcached-client", deps.memcached.Close)
	}

	shutdownComponent(wgroup, pResp, "apm-server", func() error {
		return apmHandler.Shutdown(ctx)
	})
}
