package main

import (
	"context"
	"time"

	"github.com/naughtygopher/proberesponder"
	"github.com/naughtygopher/proberesponder/extensions/depprober"
)

const (
	dependencyIDKafka     = "kafka"
	dependencyIDMongo     = "mongodb"
	dependencyIDPostgres  = "postgres"
	dependencyIDRedis     = "redis"
	dependencyIDMemcached = "memcached"
)

func readinessProbe(id string, checker func(ctx context.Context) error) *depprober.Probe {
	return &depprober.Probe{
		ID:               id,
		AffectedStatuses: []proberesponder.Statuskey{proberesponder.StatusReady},
		Checker:          depprober.CheckerFunc(checker),
	}
}

// dependencyProbes returns a readiness probe for every configured dependency.
func dependencyProbes(deps *dependencies) []depprober.Prober {
	probes := make([]depprober.Prober, 0, 5)

	if deps.mongoClient != nil {
		probes = append(probes, readinessProbe(dependencyIDMongo, func(ctx context.Context) error {
			return deps.mongoClient.Ping(ctx, nil)
		}))
	}

	if deps.postgresDB != nil {
		probes = append(probes, readinessProbe(dependencyIDPostgres, deps.postgresDB.PingContext))
	}

	if deps.redisClient != nil {
		probes = append(probes, readinessProbe(dependencyIDRedis, func(ctx context.Context) error {
			return deps.redisClient.Ping(ctx).Err()
		}))
	}

	if deps.memcached != nil {
		// memcache client has no context support, it relies on its own timeout
		probes = append(probes, readinessProbe(dependencyIDMemcached, func(context.Context) error {
			return deps.memcached.Ping()
		}))
	}

	if deps.kafkaClient != nil {
		probes = append(probes, readinessProbe(dependencyIDKafka, deps.kafkaClient.Ping))
	}

	return probes
}

func healthStatus( //nolint:ireturn // returning interface because that's what's exposed by the package
	delay time.Duration,
	pstatus *proberesponder.ProbeResponder,
	deps *dependencies,
) depprober.Stopper {
	/*
		Important: having regular pings would keep the respective clients "active".
		This may or may not be a desirable behavior.
		e.g. it might be better to let all connections of MongoDB be disconnected
		if there's no activity, so that the server would only need to deal with fewer connections.
	*/
	return depprober.Start(delay, pstatus, dependencyProbes(deps)...)
}
