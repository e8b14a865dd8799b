package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	"github.com/samber/do"
	"github.com/serroba/scanlink/internal/container"
	"github.com/serroba/scanlink/internal/messaging"
	"github.com/serroba/scanlink/internal/metrics"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cli := humacli.New(func(hooks humacli.Hooks, options *container.Options) {
		injector := do.New()
		do.ProvideValue(injector, options)
		container.LoggerPackage(injector)
		container.RedisPackage(injector)
		container.PostgresPackage(injector)
		container.RepositoryPackage(injector)
		container.MetricsPackage(injector)
		container.ConsumerGroupPackage(injector)

		logger := do.MustInvoke[*zap.Logger](injector)

		ctx, cancel := context.WithCancel(context.Background())

		var server *http.Server

		hooks.OnStart(func() {
			group := do.MustInvoke[*messaging.ConsumerGroup](injector)
			if err := group.Start(ctx); err != nil {
				logger.Fatal("failed to start consumer group", zap.Error(err))
			}

			server = &http.Server{
				Addr:              fmt.Sprintf(":%d", options.MetricsPort),
				Handler:           do.MustInvoke[*metrics.Metrics](injector).Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			logger.Info("consumer started",
				zap.String("group", options.ConsumerGroup),
				zap.Int("metrics_port", options.MetricsPort),
			)

			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal("metrics server failed", zap.Error(err))
			}
		})

		hooks.OnStop(func() {
			logger.Info("shutting down")
			cancel()

			shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
			defer done()

			if server != nil {
				if err := server.Shutdown(shutdownCtx); err != nil {
					logger.Error("metrics server shutdown error", zap.Error(err))
				}
			}

			if err := injector.Shutdown(); err != nil {
				logger.Error("shutdown error", zap.Error(err))
			}

			logger.Info("shutdown complete")
		})
	})

	cli.Run()
}
