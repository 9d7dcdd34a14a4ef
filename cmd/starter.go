package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/naughtygopher/proberesponder"
	proberespHTTP "github.com/naughtygopher/proberesponder/extensions/http"

	"github.com/prashantkr001/inventory-api/cmd/server/grpc"
	xhttp "github.com/prashantkr001/inventory-api/cmd/server/http"
	kafkaSubs "github.com/prashantkr001/inventory-api/cmd/subscriber/kafka"
	"github.com/prashantkr001/inventory-api/internal/api"
	"github.com/prashantkr001/inventory-api/internal/config"
	"github.com/prashantkr001/inventory-api/internal/pkg/kafka"
	"github.com/prashantkr001/inventory-api/internal/pkg/logger"
)

func startItemHTTPServer(
	ctx context.Context,
	pResp *proberesponder.ProbeResponder,
	fatalErr chan<- error,
	apis *api.API,
	cfg *xhttp.Config,
) (*xhttp.HTTP, error) { //nolint:unparam,nolintlint
	itemServer := xhttp.New(apis, cfg)
	go func() {
		defer logger.InfoCtx(ctx, fmt.Sprintf("[http] %s:%d shutdown complete", cfg.Host, cfg.Port))
		logger.InfoCtx(ctx, fmt.Sprintf("[http] listening on %s:%d", cfg.Host, cfg.Port))
		pResp.AppendHealthResponse(
			"http/itemserver",
			fmt.Sprintf("OK: %s", time.Now().Format(time.RFC3339)),
		)
		fatalErr <- itemServer.Start()
	}()

	return itemServer, nil
}

func startItemGrpcServer(
	ctx context.Context,
	pResp *proberesponder.ProbeResponder,
	fatalErr chan<- error,
	apis *api.API,
	cfg *grpc.Config,
) (*grpc.GRPC, error) { //nolint:unparam,nolintlint
	itemServer := grpc.New(apis, cfg)
	go func() {
		defer logger.InfoCtx(ctx, fmt.Sprintf("[grpc] %s:%d shutdown complete", cfg.Host, cfg.Port))
		logger.InfoCtx(ctx, fmt.Sprintf("[grpc] listening on %s:%d", cfg.Host, cfg.Port))
		pResp.AppendHealthResponse(
			"grpc/itemserver",
			fmt.Sprintf("OK: %s", time.Now().Format(time.RFC3339)),
		)
		fatalErr <- itemServer.Start()
	}()

	return itemServer, nil
}

func startHealthResponder(
	ctx context.Context,
	ps *proberesponder.ProbeResponder,
	fatalErr chan<- error,
) (*http.Server, error) { //nolint:unparam,nolintlint
	const port = uint16(2000)
	srv := proberespHTTP.Server(ps, "", port)
	go func() {
		defer logger.InfoCtx(ctx, fmt.Sprintf("[http/healthresponder] :%d shutdown complete", port))
		logger.InfoCtx(ctx, fmt.Sprintf("[http/healthresponder] listening on :%d", port))
		fatalErr <- srv.ListenAndServe()
	}()
	return srv, nil
}

func startItemSubscriber(
	ctx context.Context,
	pResp *proberesponder.ProbeResponder,
	fatalErr chan<- error,
	kafkaClient *kafka.Kafka,
	apiService *api.API,
	cfg *kafkaSubs.Config,
) (*kafkaSubs.Kafka, error) {
	ksub, err := kafkaSubs.NewService(kafkaClient, apiService, cfg)
	if err != nil {
		return nil, err
	}

	go func() {
		logger.InfoCtx(
			ctx,
			fmt.Sprintf("[kafka] subscribing to topic(s): '%s'", cfg.TopicItemAdd),
		)
		pResp.AppendHealthResponse(
			"kafka/subscriber",
			fmt.Sprintf("OK: %s", time.Now().Format(time.RFC3339)),
		)
		err := ksub.Subscribe(ctx)
		if err != nil {
			fatalErr <- err
		}
	}()

	return ksub, nil
}

func startServices(
	ctx context.Context,
	pResp *proberesponder.ProbeResponder,
	fatalErr chan<- error,
	cfg *config.Config,
	kafkaClient *kafka.Kafka,
	apiService *api.API,
) (ksub *kafkaSubs.Kafka, hserver *xhttp.HTTP, gserver *grpc.GRPC, err error) {
	ksub, err = startItemSubscriber(
		ctx,
		pResp,
		fatalErr,
		kafkaClient,
		apiService,
		&kafkaSubs.Config{TopicItemAdd: cfg.Kafka.Topics[0]},
	)
	if err != nil {
		return nil, nil, nil, err
	}

	// start below service(s) based on command line arguments or os.Env
	// e.g. if services=item,grpcserver,something_else etc. it should start all 3
	hConfig := xhttp.Config(cfg.HTTP)
	hConfig.EnableAccesslog = isDevEnv(cfg)
	hserver, err = startItemHTTPServer(ctx, pResp, fatalErr, apiService, &hConfig)
	if err != nil {
		return nil, nil, nil, err
	}

	gcfg := grpc.Config(cfg.GRPC)
	gcfg.EnableAccesslog = isDevEnv(cfg)
	gserver, err = startItemGrpcServer(ctx, pResp, fatalErr, apiService, &gcfg)
	if err != nil {
		return nil, nil, nil, err
	}

	return ksub, hserver, gserver, nil
}

func start(
	ctx context.Context,
	cfg *config.Config,
	probestatus *proberesponder.ProbeResponder,
	fatalErr chan<- error,
) (
	deps *dependencies,
	hserver *xhttp.HTTP,
	gserver *grpc.GRPC,
	ksub *kafkaSubs.Kafka,
) {
	err := initAPM(ctx, cfg)
	if err != nil {
		panic(err)
	}

	deps = &dependencies{}
	deps.kafkaClient, _, err = initKafka(ctx, cfg)
	if err != nil {
		panic(err)
	}

	itemService, err := initItemService(ctx, cfg, deps)
	if err != nil {
		panic(err)
	}

	apiService := api.NewService(itemService)

	ksub, hserver, gserver, err = startServices(
		ctx,
		probestatus,
		fatalErr,
		cfg,
		deps.kafkaClient,
		apiService,
	)
	if err != nil {
		panic(err)
	}

	return deps, hserver, gserver, ksub
}
