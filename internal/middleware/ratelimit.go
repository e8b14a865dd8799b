package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/scanlink/internal/handlers"
	"github.com/serroba/scanlink/internal/ratelimit"
	"go.uber.org/zap"
)

// PolicyRateLimiter returns a Huma middleware that applies policy-based rate limiting.
//
// Per-endpoint configuration is read from operation metadata under
// ratelimit.MetadataKey; see ratelimit.EndpointConfig.
func PolicyRateLimiter(
	api huma.API,
	limiter *ratelimit.PolicyLimiter,
	resolver ratelimit.ScopeResolver,
	logger *zap.Logger,
) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		path := operationPath(ctx)
		cfg := ratelimit.GetEndpointConfig(ctx)

		switch {
		case cfg != nil && cfg.Disabled:
			next(ctx)

			return
		case cfg != nil && len(cfg.Limits) > 0:
			if checkCustomLimits(api, ctx, limiter.Store(), cfg, path, logger) {
				next(ctx)
			}

			return
		}

		allowed, exceeded, err := limiter.Allow(ctx.Context(), clientKey(ctx), resolver.Resolve(ctx))
		if err != nil {
			if cfg != nil && cfg.FailOpen {
				logger.Warn("rate limit check failed, letting request through",
					zap.String("path", path), zap.Error(err))
				next(ctx)

				return
			}

			logger.Error("rate limit check failed", zap.String("path", path), zap.Error(err))
			_ = huma.WriteErr(api, ctx, http.StatusInternalServerError, "internal server error", err)

			return
		}

		if !allowed {
			logger.Warn("rate limit exceeded",
				zap.String("path", path),
				zap.String("method", ctx.Method()),
				zap.String("scope", string(exceeded.Scope)),
				zap.Int64("count", exceeded.Count),
				zap.Int64("max", exceeded.Config.Max),
				zap.Duration("window", exceeded.Config.Window),
				zap.String("client_ip", ClientIP(ctx)),
			)

			msg := fmt.Sprintf("rate limit exceeded: %s scope, %d/%d requests in %s",
				exceeded.Scope, exceeded.Count, exceeded.Config.Max, exceeded.Config.Window)
			_ = huma.WriteErr(api, ctx, http.StatusTooManyRequests, msg)

			return
		}

		next(ctx)
	}
}

func operationPath(ctx huma.Context) string {
	if op := ctx.Operation(); op != nil {
		return op.Path
	}

	return ""
}

// checkCustomLimits counts the request against limits keyed by route template, so
// /s/a and /s/b share one counter per client. It reports whether to continue.
func checkCustomLimits(
	api huma.API,
	ctx huma.Context,
	store ratelimit.Store,
	cfg *ratelimit.EndpointConfig,
	path string,
	logger *zap.Logger,
) bool {
	client := clientKey(ctx)

	for _, limit := range cfg.Limits {
		key := fmt.Sprintf("%s:custom:%s:%d", client, path, limit.Window.Milliseconds())

		count, err := store.Record(ctx.Context(), key, limit.Window)
		if err != nil {
			if cfg.FailOpen {
				logger.Warn("custom rate limit check failed, letting request through",
					zap.String("path", path), zap.Error(err))

				return true
			}

			logger.Error("custom rate limit check failed", zap.String("path", path), zap.Error(err))
			_ = huma.WriteErr(api, ctx, http.StatusInternalServerError, "internal server error", err)

			return false
		}

		if count > limit.Max {
			logger.Warn("custom rate limit exceeded",
				zap.String("path", path),
				zap.Int64("count", count),
				zap.Int64("max", limit.Max),
				zap.Duration("window", limit.Window),
				zap.String("client_ip", ClientIP(ctx)),
			)

			msg := fmt.Sprintf("rate limit exceeded: %d/%d requests in %s", count, limit.Max, limit.Window)
			_ = huma.WriteErr(api, ctx, http.StatusTooManyRequests, msg)

			return false
		}
	}

	return true
}

// clientKey identifies a client by IP and User-Agent. Requests without proxy headers
// fall back to the socket address so they do not all share one bucket.
func clientKey(ctx huma.Context) string {
	ip := ClientIP(ctx)
	if ip == handlers.UnknownIP {
		ip = remoteHost(ctx.RemoteAddr())
	}

	hash := sha256.Sum256([]byte(ip + "|" + ctx.Header("User-Agent")))

	return hex.EncodeToString(hash[:])
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}

	return host
}
