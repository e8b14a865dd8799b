package middleware

import (
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/scanlink/internal/geo"
	"github.com/serroba/scanlink/internal/handlers"
)

// RequestMeta is a middleware that adds client IP, user-agent and edge geolocation to
// the request context.
func RequestMeta(headers geo.Headers) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		meta := handlers.RequestMeta{
			ClientIP:  ClientIP(ctx),
			UserAgent: ctx.Header("User-Agent"),
			Location:  geo.Extract(ctx.Header, headers),
		}

		newCtx := handlers.ContextWithRequestMeta(ctx.Context(), meta)
		ctx = huma.WithContext(ctx, newCtx)

		next(ctx)
	}
}

// ClientIP returns the first X-Forwarded-For entry, else X-Real-IP, else
// handlers.UnknownIP. The socket address is never used.
func ClientIP(ctx huma.Context) string {
	if xff := ctx.Header("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := strings.TrimSpace(ctx.Header("X-Real-IP")); xri != "" {
		return xri
	}

	return handlers.UnknownIP
}
