// Package config reads config required for the entire application
package config

import (
	stderrors "errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/naughtygopher/errors"
	"github.com/spf13/viper"
)

const (
	EnvLive        = "live"
	EnvDevelopment = "development"
	EnvCI          = "ci"
)

const (
	StoreMongoDB  = "mongodb"
	StorePostgres = "postgres"
	StoreMemory   = "memory"

	CacheNone      = ""
	CacheLRU       = "lru"
	CacheRedis     = "redis"
	CacheMemcached = "memcached"
)

/*
Config holds all the configurations required for the application to function.
Most drivers like Redis, SQL etc. have optional "client name" field. Make use of the
`cfg.AppFullname()` to set these. It helps us easily identify which version of the app is
communicating with the respective dependency.
*/
type Config struct {
	AppName      string `json:"appName,omitempty" env:"APP_NAME" envDefault:"inventory-api"`
	Version      string `json:"version,omitempty" env:"APP_VERSION" envDefault:"v0.0.0"`
	AppBuildDate string `json:"appBuild,omitempty" env:"APP_BUILT_AT" envDefault:"0000-00-00"`
	Environment  string `json:"environment,omitempty" env:"ENVIRONMENT" envDefault:""`

	HTTP struct {
		Host              string        `json:"host,omitempty" env:"APP_HTTP_HOST" envDefault:""`
		Port              int           `json:"port,omitempty" env:"APP_HTTP_PORT" envDefault:"5001"`
		ReadHeaderTimeout time.Duration `json:"readHeaderTimeout,omitempty" env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
		ReadTimeout       time.Duration `json:"readTimeout,omitempty" env:"HTTP_READ_TIMEOUT" envDefault:"60s"`
		WriteTimeout      time.Duration `json:"writeTimeout,omitempty" env:"HTTP_WRITE_TIMEOUT" envDefault:"60s"`
		IdleTimeout       time.Duration `json:"idleTimeout,omitempty" env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
		// RateLimitRPS <= 0 disables rate limiting
		RateLimitRPS    float64 `json:"rateLimitRps,omitempty" env:"HTTP_RATE_LIMIT_RPS" envDefault:"0"`
		RateLimitBurst  int     `json:"rateLimitBurst,omitempty" env:"HTTP_RATE_LIMIT_BURST" envDefault:"20"`
		EnableAccesslog bool
	} `json:"http,omitempty"`
	GRPC struct {
		Host            string        `json:"grpcHost,omitempty" env:"APP_GRPC_HOST" envDefault:""`
		Port            int           `json:"grpcPort,omitempty" env:"APP_GRPC_PORT" envDefault:"5002"`
		ConnTimeout     time.Duration `json:"grpcTimeout,omitempty" env:"APP_GRPC_TIMEOUT" envDefault:"15s"`
		EnableAccesslog bool
	}

	Store struct {
		// Driver is one of StoreMongoDB, StorePostgres, StoreMemory
		Driver string `json:"driver,omitempty" env:"STORE_DRIVER" envDefault:"mongodb"`
	} `json:"store,omitempty"`
	MongoDB struct {
		Hosts     []string `json:"hosts,omitempty" env:"MONGODB_HOSTS" envDefault:"localhost"`
		Port      int      `json:"port,omitempty" env:"MONGODB_PORT"`
		Database  string   `json:"database,omitempty" env:"MONGODB_DATABASE" envDefault:"inventory"`
		Namespace string   `json:"namespace,omitempty" env:"MONGODB_NAMESPACE"`
		Username  string   `json:"username,omitempty" env:"MONGODB_USERNAME"`
		Password  string   `json:"password,omitempty" env:"MONGODB_PASSWORD"`
		// AuthMechanism for MongoDB should be one of "SCRAM-SHA-256", "SCRAM-SHA-1", "MONGODB-CR", "PLAIN", "GSSAPI", "MONGODB-X509",
		AuthMechanism   string        `json:"authMechanism,omitempty" env:"MONGODB_AUTH_MECHANISM" envDefault:"SCRAM-SHA-1"`
		AuthDatabase    string        `json:"authDatabase,omitempty" env:"MONGODB_AUTH_DATABASE"`
		ReadTimeout     time.Duration `json:"readTimeout,omitempty" env:"MONGODB_READTIMEOUT" envDefault:"3m"`
		WriteTimeout    time.Duration `json:"writeTimeout,omitempty" env:"MONGODB_WRITETIMEOUT" envDefault:"3m"`
		MaxConnIdleTime time.Duration `json:"maxIdleTimeout,omitempty" env:"MONGODB_IDLE_TIMEOUT" envDefault:"4m"`
		PingTimeout     time.Duration `json:"pingTimeout,omitempty" env:"MONGODB_PING_TIMEOUT" envDefault:"3s"`
	} `json:"mongoDB,omitempty"`
	Postgres struct {
		DSN             string        `json:"dsn,omitempty" env:"POSTGRES_DSN" envDefault:"postgres://localhost:5432/inventory?sslmode=disable"`
		Table           string        `json:"table,omitempty" env:"POSTGRES_TABLE" envDefault:"items"`
		MaxOpenConns    int           `json:"maxOpenConns,omitempty" env:"POSTGRES_MAX_OPEN_CONNS" envDefault:"10"`
		MaxIdleConns    int           `json:"maxIdleConns,omitempty" env:"POSTGRES_MAX_IDLE_CONNS" envDefault:"5"`
		ConnMaxLifetime time.Duration `json:"connMaxLifetime,omitempty" env:"POSTGRES_CONN_MAX_LIFETIME" envDefault:"30m"`
		PingTimeout     time.Duration `json:"pingTimeout,omitempty" env:"POSTGRES_PING_TIMEOUT" envDefault:"3s"`
	} `json:"postgres,omitempty"`

	Cache struct {
		// Driver is one of CacheNone, CacheLRU, CacheRedis, CacheMemcached
		Driver string        `json:"driver,omitempty" env:"CACHE_DRIVER" envDefault:""`
		TTL    time.Duration `json:"ttl,omitempty" env:"CACHE_TTL" envDefault:"5m"`
		// Size is the max number of items held by the in-process LRU
		Size int `json:"size,omitempty" env:"CACHE_SIZE" envDefault:"10000"`
	} `json:"cache,omitempty"`
	Redis struct {
		Addr     string `json:"addr,omitempty" env:"REDIS_ADDR" envDefault:"localhost:6379"`
		Password string `json:"password,omitempty" env:"REDIS_PASSWORD"`
		DB       int    `json:"db,omitempty" env:"REDIS_DB" envDefault:"0"`
	} `json:"redis,omitempty"`
	Memcached struct {
		Addrs        []string      `json:"addrs,omitempty" env:"MEMCACHED_ADDRS" envDefault:"localhost:11211"`
		Timeout      time.Duration `json:"timeout,omitempty" env:"MEMCACHED_TIMEOUT" envDefault:"500ms"`
		MaxIdleConns int           `json:"maxIdleConns,omitempty" env:"MEMCACHED_MAX_IDLE_CONNS" envDefault:"10"`
	} `json:"memcached,omitempty"`

	Kafka struct {
		LogLevel int8 `json:"logLevel,omitempty" env:"KAFKA_LOG_LEVEL" envDefault:"1"` // loglevel 1 is >= error

		Seeds         []string `json:"seeds,omitempty" env:"KAFKA_SEEDS" envDefault:"localhost:9092"`
		Topics        []string `json:"topics,omitempty" env:"KAFKA_TOPICS" envDefault:"item_create"`
		EventsTopic   string   `json:"eventsTopic,omitempty" env:"KAFKA_EVENTS_TOPIC" envDefault:"inventory-item-events"`
		ConsumerGroup string   `json:"consumerGroup,omitempty" env:"KAFKA_CONSUMERGROUP" envDefault:""`

		IdleTimeout            time.Duration `json:"idleTimeout,omitempty" env:"KAFKA_IDLETIMEOUT" envDefault:"3s"`
		RequestTimeoutOverhead time.Duration `json:"requestTimeoutOverhead,omitempty" env:"KAFKA_REQTIMEOUT" envDefault:"3s"`
		RetryTimeout           time.Duration `json:"retryTimeout,omitempty" env:"KAFKA_RETTIMEOUT" envDefault:"3s"`
		TxnTimeout             time.Duration `json:"txnTimeout,omitempty" env:"KAFKA_TXNTIMEOUT" envDefault:"3s"`
		RecordTimeout          time.Duration `json:"recordTimeout,omitempty" env:"KAFKA_RECTIMEOUT" envDefault:"3s"`
		SessionTimeout         time.Duration `json:"sessionTimeout,omitempty" env:"KAFKA_SESSTIMEOUT" envDefault:"60s"`
		CommitTimeout          time.Duration `json:"CommitTimeout,omitempty" env:"KAFKA_COMMTIMEOUT" envDefault:"5s"`
		HandlerRetryBackoff    time.Duration `json:"handlerRetryBackoff,omitempty" env:"KAFKA_HANDLER_RETRY_BACKOFF" envDefault:"500ms"`

		AuthMechanism string `json:"authMechanism,omitempty" env:"KAFKA_AUTH_MECHANISM" envDefault:""`
		SASLUsername  string `json:"saslUsername,omitempty" env:"KAFKA_SASL_USERNAME" envDefault:""`
		SASLPassword  string `json:"saslPassword,omitempty" env:"KAFKA_SASL_PASSWORD" envDefault:""`
		CACertificate string `json:"caCertificate,omitempty" env:"KAFKA_CA_CERT" envDefault:""`

		FetchMaxBytes  int32 `json:"fetchMaxBytes,omitempty" env:"KAFKA_FETCH_MAXBYTES" envDefault:"1048576"` // 1MiB
		HandlerRetries int   `json:"handlerRetries,omitempty" env:"KAFKA_HANDLER_RETRIES" envDefault:"3"`

		// the item subscriber commits handled records itself, autocommit would also commit failed ones
		EnableAutoCommit bool `json:"enableAutoCommit,omitempty" env:"KAFKA_AUTO_COMMIT" envDefault:"false"`
		EnableTLSDialer  bool `json:"enableTLSDialer,omitempty" env:"KAFKA_ENABLE_TLSDIALER" envDefault:"false"`
	}
	APM struct {
		Debug              bool    `json:"debug" env:"TRACES_DEBUG"`
		TracesSampleRate   float64 `json:"tracesSampleRate" env:"TRACES_SAMPLE_RATE"`
		TracesCollectorURL string  `json:"collectorUrl" env:"TRACES_COLLECTOR_URL"`
		MetricScrapePort   uint16  `json:"metricScrapePort" env:"METRIC_SCRAPE_PORT" envDefault:"2223"`
	} `json:"apm"`
}

func (cfg *Config) AppFullname() string {
	return fmt.Sprintf("%s%s", cfg.AppName, cfg.Version)
}

// Validate checks the driver selections, everything else has usable defaults
func (cfg *Config) Validate() error {
	switch cfg.Store.Driver {
	case StoreMongoDB, StorePostgres, StoreMemory:
	default:
		return errors.Validationf("unsupported store driver %q", cfg.Store.Driver)
	}

	switch cfg.Cache.Driver {
	case CacheNone:
	case CacheRedis:
		if cfg.Cache.TTL <= 0 {
			return errors.Validationf("cache ttl should be > 0, got %s", cfg.Cache.TTL)
		}
	case CacheMemcached:
		// memcached reads an expiration over 30 days as a unix timestamp
		const maxMemcachedTTL = 30 * 24 * time.Hour
		if cfg.Cache.TTL < time.Second || cfg.Cache.TTL > maxMemcachedTTL {
			return errors.Validationf("memcached cache ttl should be within [1s, %s], got %s", maxMemcachedTTL, cfg.Cache.TTL)
		}
	case CacheLRU:
		if cfg.Cache.TTL <= 0 {
			return errors.Validationf("cache ttl should be > 0, got %s", cfg.Cache.TTL)
		}
		if cfg.Cache.Size <= 0 {
			return errors.Validationf("lru cache size should be > 0, got %d", cfg.Cache.Size)
		}
	default:
		return errors.Validationf("unsupported cache driver %q", cfg.Cache.Driver)
	}

	if len(cfg.Kafka.Topics) == 0 {
		return errors.Validation("at least one kafka topic is required for the item subscriber")
	}

	return nil
}

/*
Load reads configuration from environment variables (including the envDefault values), and then
overlays the YAML file `fileName` found in `path`, if any. A missing file is not an error.
*/
func Load(path, fileName string) (*Config, error) {
	configs := Config{}

	err := env.Parse(&configs)
	if err != nil {
		return nil, errors.Wrap(err, "failed parsing config from environment")
	}

	if fileName == "" {
		return validated(&configs)
	}

	vip := viper.New()
	vip.AddConfigPath(path)
	vip.SetConfigName(fileName)
	vip.SetConfigType("yaml")
	vip.AutomaticEnv()

	err = vip.ReadInConfig()
	if err != nil {
		notFound := viper.ConfigFileNotFoundError{}
		if stderrors.As(err, &notFound) {
			return validated(&configs)
		}
		return nil, errors.Wrap(err, "failed reading config file")
	}

	err = vip.Unmarshal(&configs)
	if err != nil {
		return nil, errors.Wrap(err, "failed unmarshaling config file")
	}

	return validated(&configs)
}

func validated(cfg *Config) (*Config, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
