// Package http implements all the HTTP handlers exported by this application.
// Handlers only decode requests and encode responses, the business rules stay in internal/item.
package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/naughtygopher/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/prashantkr001/inventory-api/internal/api"
	"github.com/prashantkr001/inventory-api/internal/pkg/apm"
	"github.com/prashantkr001/inventory-api/internal/pkg/logger"
)

type Config struct {
	Host              string
	Port              int
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	RateLimitRPS      float64
	RateLimitBurst    int
	EnableAccesslog   bool
}

type HTTP struct {
	locker *sync.Mutex
	server *http.Server
	// apis has all the APIs, and respective HTTP handlers will call using this
	apis              *api.API
	shutdownInitiated bool
	serverStartTime   time.Time
}

func (ht *HTTP) Start() error {
	ht.locker.Lock()
	ht.serverStartTime = time.Now()
	ht.locker.Unlock()

	err := ht.server.ListenAndServe()
	if err != nil {
		return errors.Wrap(err, "failed to start http server")
	}

	return nil
}

func (ht *HTTP) Shutdown(ctx context.Context) error {
	ht.locker.Lock()
	defer ht.locker.Unlock()

	ht.shutdownInitiated = true
	err := ht.server.Shutdown(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to shutdown http server")
	}

	return nil
}

func (ht *HTTP) StartedAt() time.Time {
	ht.locker.Lock()
	defer ht.locker.Unlock()
	return ht.serverStartTime
}

// Handler returns the fully configured router, with all middleware
func (ht *HTTP) Handler() http.Handler {
	return ht.server.Handler
}

type HandlerFuncErr func(w http.ResponseWriter, req *http.Request) error

func (ht *HTTP) ErrorHandler(fn HandlerFuncErr) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}

		status, message, _ := errors.HTTPStatusCodeMessage(err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(message))

		// 4xx are client side errors, only internal errors are logged with a stacktrace
		if status >= http.StatusInternalServerError {
			logger.ErrWithStacktraceCtx(r.Context(), err)
		}
	}
}

// chiURIPattern matches on a fresh route context, the request's own context is still
// being used by chi to route the request.
func chiURIPattern(router *chi.Mux, r *http.Request) string {
	rctx := chi.NewRouteContext()
	if router.Match(rctx, r.Method, r.URL.Path) {
		return rctx.RoutePattern()
	}
	return "unmatched-path"
}

// rateLimiter rejects requests with 429 once the token bucket is empty. It is a no-op
// if rps is not positive.
func rateLimiter(rps float64, burst int) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst <= 0 {
		burst = 1
	}

	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				logger.DebugCtx(r.Context(), "rate limit denied", zap.String("path", r.URL.Path))
				w.Header().Set("Retry-After", "1")
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func newChiRouter(cfg *Config) *chi.Mux {
	router := chi.NewRouter()
	router.Use(
		middleware.Recoverer,
		middleware.RequestID,
		func(h http.Handler) http.Handler {
			wrapped := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				l := new(otelhttp.Labeler)
				l.Add(attribute.KeyValue{
					Key:   semconv.HTTPRouteKey,
					Value: attribute.StringValue(chiURIPattern(router, r)),
				})

				h.ServeHTTP(
					w,
					r.WithContext(otelhttp.ContextWithLabeler(r.Context(), l)),
				)
			})
			return wrapped
		},
		apm.NewHTTPMiddleware(&apm.HTTPOpts{
			OTEL: []otelhttp.Option{
				otelhttp.WithFilter(func(req *http.Request) bool {
					return !strings.HasPrefix(req.URL.Path, "/-/")
				}),
				otelhttp.WithSpanNameFormatter(func(_ string, req *http.Request) string {
					return chiURIPattern(router, req)
				}),
			},
		},
		),
		rateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)

	if cfg.EnableAccesslog {
		router.Use(middleware.Logger)
	}

	return router
}

func New(apis *api.API, cfg *Config) *HTTP {
	ht := &HTTP{
		locker: &sync.Mutex{},
		apis:   apis,
		server: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
		},
	}

	router := newChiRouter(cfg)
	ht.itemRoutes(router)
	ht.server.Handler = router

	return ht
}
