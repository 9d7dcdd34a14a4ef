package main

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	mongoprom "github.com/globocom/mongo-go-prometheus"
	_ "github.com/lib/pq" // registers the "postgres" database/sql driver
	"github.com/naughtygopher/errors"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/prashantkr001/inventory-api/internal/config"
	"github.com/prashantkr001/inventory-api/internal/item"
	"github.com/prashantkr001/inventory-api/internal/pkg/apm"
	"github.com/prashantkr001/inventory-api/internal/pkg/kafka"
	"github.com/prashantkr001/inventory-api/internal/pkg/logger"
)

type ctxKey string

const (
	CtxKeyEnv ctxKey = "env"
)

// itemStore has the same method set as the store the item service depends on, so any
// of the backends and decorators can be held and passed around here.
type itemStore interface {
	ExistsByCode(ctx context.Context, code int) (bool, error)
	SaveItem(ctx context.Context, it item.Item) (*item.Item, error)
	ItemByCode(ctx context.Context, code int) (*item.Item, error)
	ListItems(ctx context.Context) ([]item.Item, error)
	DeleteByCode(ctx context.Context, code int) error
}

type itemCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// dependencies holds every external client, a nil client was not configured.
type dependencies struct {
	mongoClient *mongo.Client
	postgresDB  *sql.DB
	redisClient *redis.Client
	memcached   *memcache.Client
	kafkaClient *kafka.Kafka
}

func isDevEnv(cfg *config.Config) bool {
	return slices.Contains([]string{config.EnvDevelopment, config.EnvCI}, cfg.Environment)
}

func initLogger(cfg *config.Config) {
	ctxKeys := []any{CtxKeyEnv}
	if isDevEnv(cfg) {
		lh, _ := zap.NewDevelopment(zap.AddCallerSkip(1))
		logger.SetGlobal(lh)
	}

	logger.SetContextFieldsSetter(func(ctx context.Context) []zap.Field {
		fields := make([]zap.Field, 0, len(ctxKeys)+1)
		for _, key := range ctxKeys {
			fields = append(
				fields,
				zap.Any(fmt.Sprintf("%v", key), ctx.Value(key)),
			)
		}

		traceID := trace.SpanContextFromContext(ctx).TraceID()
		if traceID.IsValid() {
			fields = append(fields, zap.String("trace_id", traceID.String()))
		}

		return fields
	})
}

func initAPM(ctx context.Context, cfg *config.Config) error {
	ins, err := apm.New(ctx, &apm.Options{
		Environment:          cfg.Environment,
		Debug:                cfg.APM.Debug,
		ServiceName:          cfg.AppName,
		ServiceVersion:       cfg.Version,
		TracesSampleRate:     cfg.APM.TracesSampleRate,
		CollectorURL:         cfg.APM.TracesCollectorURL,
		PrometheusScrapePort: cfg.APM.MetricScrapePort,
		UseStdOut:            isDevEnv(cfg),
	})
	if err != nil {
		return errors.Wrap(err, "failed to initialize APM")
	}
	apm.SetGlobal(ins)
	return nil
}

func initializeMongoDB(ctx context.Context, cfg *config.Config) (*mongo.Client, *mongo.Database, error) {
	monitor := mongoprom.NewCommandMonitor(
		mongoprom.WithInstanceName(cfg.MongoDB.Database),
		mongoprom.WithNamespace(cfg.MongoDB.Namespace),
		mongoprom.WithDurationBuckets([]float64{.001, .005, .01}),
	)

	opts := options.Client().SetMonitor(monitor)
	opts.Hosts = cfg.MongoDB.Hosts
	if cfg.MongoDB.Username != "" {
		opts.Auth = &options.Credential{
			AuthMechanism:           cfg.MongoDB.AuthMechanism,
			AuthMechanismProperties: nil,
			AuthSource:              cfg.MongoDB.AuthDatabase,
			Username:                cfg.MongoDB.Username,
			Password:                cfg.MongoDB.Password,

			PasswordSet:         false,
			OIDCMachineCallback: nil,
			OIDCHumanCallback:   nil,
		}
	}
	opts.MaxConnIdleTime = &cfg.MongoDB.MaxConnIdleTime
	opts.SetTimeout(cfg.MongoDB.ReadTimeout)
	opts.SetAppName(cfg.AppFullname())

	mongoClient, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to connect to MongoDB")
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.MongoDB.PingTimeout)
	defer cancel()

	err = mongoClient.Ping(ctx, nil)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to ping MongoDB")
	}

	return mongoClient, mongoClient.Database(cfg.MongoDB.Database), nil
}

func initializePostgres(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Postgres.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open postgres connection")
	}
	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(ctx, cfg.Postgres.PingTimeout)
	defer cancel()

	err = db.PingContext(ctx)
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to ping postgres")
	}

	return db, nil
}

func initItemStore(ctx context.Context, cfg *config.Config, deps *dependencies) (itemStore, error) { //nolint:ireturn // the concrete store depends on config
	switch cfg.Store.Driver {
	case config.StoreMemory:
		logger.WarnCtx(ctx, "using the in-memory item store, data is lost on restart")
		return item.NewMemoryPersistentStore(), nil

	case config.StorePostgres:
		db, err := initializePostgres(ctx, cfg)
		if err != nil {
			return nil, err
		}
		deps.postgresDB = db

		pstore, err := item.NewPostgresPersistentStore(db, cfg.Postgres.Table)
		if err != nil {
			return nil, err
		}

		err = pstore.Migrate(ctx)
		if err != nil {
			return nil, err
		}
		return pstore, nil

	default:
		mongoClient, mongoDB, err := initializeMongoDB(ctx, cfg)
		if err != nil {
			return nil, err
		}
		deps.mongoClient = mongoClient

		mstore, err := item.NewMongoPersistentStore(mongoDB)
		if err != nil {
			return nil, err
		}

		err = mstore.EnsureIndexes(ctx)
		if err != nil {
			return nil, err
		}
		return mstore, nil
	}
}

func initItemCache(ctx context.Context, cfg *config.Config, deps *dependencies) (itemCache, error) { //nolint:ireturn // the concrete cache depends on config
	const pingTimeout = time.Second * 3

	switch cfg.Cache.Driver {
	case config.CacheLRU:
		return item.NewLRUCache(cfg.Cache.Size, cfg.Cache.TTL), nil

	case config.CacheRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			ClientName: cfg.AppFullname(),
		})

		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		err := rdb.Ping(pctx).Err()
		if err != nil {
			_ = rdb.Close()
			return nil, errors.Wrap(err, "failed to ping redis")
		}
		deps.redisClient = rdb
		return item.NewRedisCache(rdb), nil

	case config.CacheMemcached:
		mc := memcache.New(cfg.Memcached.Addrs...)
		mc.Timeout = cfg.Memcached.Timeout
		mc.MaxIdleConns = cfg.Memcached.MaxIdleConns

		err := mc.Ping()
		if err != nil {
			return nil, errors.Wrap(err, "failed to ping memcached")
		}
		deps.memcached = mc
		return item.NewMemcachedCache(mc), nil

	default:
		return nil, nil //nolint:nilnil // caching is disabled
	}
}

func initKafka(
	ctx context.Context,
	cfg *config.Config,
) (*kafka.Kafka, *kafka.Config, error) {
	if cfg.Kafka.ConsumerGroup == "" {
		cfg.Kafka.ConsumerGroup = cfg.AppFullname()
	}

	kfCfg := kafka.Config(cfg.Kafka)
	kfkClient, err := kafka.New(ctx, &kfCfg)
	if err != nil {
		return nil, nil, err
	}

	return kfkClient, &kfCfg, nil
}

/*
initItemService assembles the item service. The store is decorated in this order
  - cache (optional), read-through for single item lookups
  - publisher, announcing every save/delete on the events topic
*/
func initItemService(ctx context.Context, cfg *config.Config, deps *dependencies) (*item.Service, error) {
	store, err := initItemStore(ctx, cfg, deps)
	if err != nil {
		return nil, err
	}

	cache, err := initItemCache(ctx, cfg, deps)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		store = item.NewCachedStore(store, cache, cfg.Cache.TTL)
	}

	itemPublisher, err := item.NewKafkaItemPublisher(deps.kafkaClient, cfg.Kafka.EventsTopic)
	if err != nil {
		return nil, err
	}
	store = item.NewPublishingStore(store, itemPublisher)

	return item.NewService(store)
}
