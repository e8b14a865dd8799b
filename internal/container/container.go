package container

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor" // CBOR format support for huma
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jaevor/go-nanoid"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/serroba/scanlink/internal/analytics"
	"github.com/serroba/scanlink/internal/geo"
	"github.com/serroba/scanlink/internal/handlers"
	"github.com/serroba/scanlink/internal/health"
	"github.com/serroba/scanlink/internal/messaging"
	"github.com/serroba/scanlink/internal/metrics"
	"github.com/serroba/scanlink/internal/middleware"
	"github.com/serroba/scanlink/internal/qr"
	"github.com/serroba/scanlink/internal/ratelimit"
	"github.com/serroba/scanlink/internal/scan"
	"github.com/serroba/scanlink/internal/store"
	"go.uber.org/zap"
)

// RedisClient owns the shared Redis connection.
type RedisClient struct {
	*redis.Client
}

// Shutdown closes the connection.
func (c *RedisClient) Shutdown() error {
	return c.Close()
}

// PostgresPool owns the PostgreSQL connection pool.
type PostgresPool struct {
	*pgxpool.Pool
}

// Shutdown closes every pooled connection.
func (p *PostgresPool) Shutdown() error {
	p.Close()

	return nil
}

func LoggerPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*zap.Logger, error) {
		opts := do.MustInvoke[*Options](i)

		return NewLogger(opts.LogFormat, opts.LogLevel)
	})
}

func RedisPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*RedisClient, error) {
		opts := do.MustInvoke[*Options](i)
		if !opts.redisEnabled() {
			return nil, fmt.Errorf("redis address is not configured")
		}

		return &RedisClient{Client: redis.NewClient(&redis.Options{Addr: opts.RedisAddr})}, nil
	})
}

// PostgresPackage connects to PostgreSQL and applies the schema before handing out the store.
func PostgresPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*PostgresPool, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		pool, err := pgxpool.New(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}

		if err := pool.Ping(ctx); err != nil {
			pool.Close()

			return nil, fmt.Errorf("ping postgres: %w", err)
		}

		if err := store.Migrate(ctx, pool); err != nil {
			pool.Close()

			return nil, err
		}

		logger.Info("postgres ready")

		return &PostgresPool{Pool: pool}, nil
	})

	do.Provide(injector, func(i *do.Injector) (*store.PostgresStore, error) {
		pool := do.MustInvoke[*PostgresPool](i)

		return store.NewPostgresStore(pool.Pool), nil
	})
}

// RepositoryPackage provides the link repository and the scan store. Without a database
// URL both live in one in-memory store. With Redis configured, slug lookups go through
// the cache.
func RepositoryPackage(injector *do.Injector) {
	do.Provide(injector, func(_ *do.Injector) (*store.MemoryStore, error) {
		return store.NewMemoryStore(), nil
	})

	do.Provide(injector, func(i *do.Injector) (qr.Repository, error) {
		opts := do.MustInvoke[*Options](i)

		var repo qr.Repository
		if opts.postgresEnabled() {
			repo = do.MustInvoke[*store.PostgresStore](i)
		} else {
			repo = do.MustInvoke[*store.MemoryStore](i)
		}

		if !opts.redisEnabled() || opts.CacheTTL <= 0 {
			return repo, nil
		}

		client := do.MustInvoke[*RedisClient](i)
		ttl := time.Duration(opts.CacheTTL) * time.Second

		return store.NewRedisCacheRepository(repo, client.Client, ttl, do.MustInvoke[*zap.Logger](i)), nil
	})

	do.Provide(injector, func(i *do.Injector) (scan.Store, error) {
		if do.MustInvoke[*Options](i).postgresEnabled() {
			return do.MustInvoke[*store.PostgresStore](i), nil
		}

		return do.MustInvoke[*store.MemoryStore](i), nil
	})
}

func RateLimitPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (ratelimit.Store, error) {
		if !do.MustInvoke[*Options](i).redisEnabled() {
			return store.NewRateLimitMemoryStore(), nil
		}

		client := do.MustInvoke[*RedisClient](i)

		return store.NewRateLimitRedisStore(client.Client), nil
	})

	do.Provide(injector, func(i *do.Injector) (*ratelimit.PolicyLimiter, error) {
		opts := do.MustInvoke[*Options](i)
		policy := ratelimit.NewPolicy(opts.RedirectRateLimit, opts.ReadRateLimit, opts.WriteRateLimit)

		return ratelimit.NewPolicyLimiter(do.MustInvoke[ratelimit.Store](i), policy), nil
	})
}

func MetricsPackage(injector *do.Injector) {
	do.Provide(injector, func(_ *do.Injector) (*metrics.Metrics, error) {
		return metrics.New(), nil
	})
}

func PublisherGroupPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*messaging.PublisherGroup, error) {
		client := do.MustInvoke[*RedisClient](i)
		logger := do.MustInvoke[*zap.Logger](i)

		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{Client: client.Client},
			messaging.NewZapLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("create stream publisher: %w", err)
		}

		return messaging.NewPublisherGroup(publisher), nil
	})
}

// RecorderPackage provides the scan recorder selected by Options.RecordMode.
func RecorderPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (scan.Recorder, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)
		m := do.MustInvoke[*metrics.Metrics](i)

		var rec scan.Recorder

		switch opts.RecordMode {
		case RecordDirect, "":
			rec = scan.NewDirectRecorder(do.MustInvoke[scan.Store](i), opts.recordTimeout(), logger)
		case RecordStream:
			if err := opts.streamReady(); err != nil {
				return nil, err
			}

			group := do.MustInvoke[*messaging.PublisherGroup](i)
			publish := messaging.NewPublishFunc[scan.Event](group.Publisher(), scan.TopicScanRecorded)
			rec = scan.NewStreamRecorder(publish, opts.recordTimeout(), logger)
		default:
			return nil, fmt.Errorf("unknown record mode %q", opts.RecordMode)
		}

		return metrics.InstrumentRecorder(rec, m), nil
	})
}

// ConsumerGroupPackage provides the consumers that persist queued scans.
func ConsumerGroupPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*messaging.ConsumerGroup, error) {
		opts := do.MustInvoke[*Options](i)
		if err := opts.streamReady(); err != nil {
			return nil, err
		}

		client := do.MustInvoke[*RedisClient](i)
		logger := do.MustInvoke[*zap.Logger](i)
		m := do.MustInvoke[*metrics.Metrics](i)

		subscriber, err := redisstream.NewSubscriber(
			redisstream.SubscriberConfig{
				Client:        client.Client,
				ConsumerGroup: opts.ConsumerGroup,
			},
			messaging.NewZapLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("create stream subscriber: %w", err)
		}

		consumer := messaging.NewConsumer(
			subscriber,
			scan.TopicScanRecorded,
			scan.PersistHandler(do.MustInvoke[scan.Store](i)),
			logger,
		)
		m.RegisterConsumerStats(consumer.Topic(), consumer.Stats)

		group := messaging.NewConsumerGroup(subscriber, logger)
		group.Add(consumer)

		return group, nil
	})
}

// HTTPPackage provides the router and the API with every route registered.
func HTTPPackage(injector *do.Injector) {
	do.Provide(injector, func(_ *do.Injector) (*chi.Mux, error) {
		router := chi.NewMux()
		router.Use(chimw.Recoverer)

		return router, nil
	})

	do.Provide(injector, func(i *do.Injector) (huma.API, error) {
		opts := do.MustInvoke[*Options](i)
		router := do.MustInvoke[*chi.Mux](i)
		logger := do.MustInvoke[*zap.Logger](i)
		m := do.MustInvoke[*metrics.Metrics](i)

		displayTZ, err := time.LoadLocation(opts.DisplayTZ)
		if err != nil {
			return nil, fmt.Errorf("display time zone: %w", err)
		}

		gen, err := nanoid.Standard(opts.SlugLength)
		if err != nil {
			return nil, fmt.Errorf("slug generator: %w", err)
		}

		links := do.MustInvoke[qr.Repository](i)
		scans := do.MustInvoke[scan.Store](i)
		linkService := qr.NewService(links, gen)

		api := humachi.New(router, huma.DefaultConfig("Scanlink", "1.0.0"))
		api.UseMiddleware(middleware.RequestMeta(geo.Headers{
			Country: opts.CountryHeader,
			City:    opts.CityHeader,
		}))

		if opts.RateLimit {
			api.UseMiddleware(middleware.PolicyRateLimiter(
				api,
				do.MustInvoke[*ratelimit.PolicyLimiter](i),
				ratelimit.NewOperationScopeResolver(),
				logger,
			))
		}

		handlers.RegisterRedirectRoutes(api, handlers.NewRedirectHandler(
			qr.NewResolver(links),
			do.MustInvoke[scan.Recorder](i),
			m,
			logger,
		))
		handlers.RegisterLinkRoutes(api,
			handlers.NewLinkHandler(linkService, opts.PublicBaseURL(), m, logger),
			handlers.NewAnalyticsHandler(linkService, analytics.NewService(scans, displayTZ), logger),
		)
		health.RegisterRoutes(api, health.NewHandler(healthDependencies(i, opts)...))

		router.Handle("/metrics", m.Handler())

		return api, nil
	})
}

func healthDependencies(i *do.Injector, opts *Options) []health.Dependency {
	var deps []health.Dependency

	if opts.postgresEnabled() {
		deps = append(deps, health.Dependency{Name: "postgres", Checker: do.MustInvoke[*store.PostgresStore](i)})
	}

	if opts.redisEnabled() {
		client := do.MustInvoke[*RedisClient](i)
		deps = append(deps, health.Dependency{Name: "redis", Checker: health.NewRedisChecker(client.Client)})
	}

	return deps
}
