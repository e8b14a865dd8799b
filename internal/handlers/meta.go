package handlers

import (
	"context"

	"github.com/serroba/scanlink/internal/geo"
)

type requestMetaKey struct{}

// RequestMeta holds the client details a scan is attributed with.
type RequestMeta struct {
	ClientIP  string
	UserAgent string
	Location  geo.Location
}

// ContextWithRequestMeta adds request metadata to context.
func ContextWithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFromContext extracts request metadata from context. Missing metadata
// reads as an anonymous client.
func RequestMetaFromContext(ctx context.Context) RequestMeta {
	if v, ok := ctx.Value(requestMetaKey{}).(RequestMeta); ok {
		return v
	}

	return RequestMeta{
		ClientIP: UnknownIP,
		Location: geo.Location{Country: geo.Unknown, City: geo.Unknown},
	}
}

// UnknownIP is recorded when no proxy header names the client.
const UnknownIP = "unknown"
