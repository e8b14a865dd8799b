package middleware_test

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"mime/multipart"
	"net/url"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/serroba/scanlink/internal/middleware"
	"github.com/serroba/scanlink/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

const (
	testRemoteAddr = "192.168.1.1:12345"
	testUserAgent  = "TestAgent/1.0"
)

var errMultipartNotSupported = errors.New("multipart not supported in mock")

func newTestAPI() huma.API {
	return humachi.New(chi.NewMux(), huma.DefaultConfig("Test", "1.0.0"))
}

// mockHumaContext implements huma.Context for testing.
type mockHumaContext struct {
	headers    map[string]string
	remoteAddr string
	written    []byte
	statusCode int
	method     string
	operation  *huma.Operation
}

func newMockHumaContext() *mockHumaContext {
	return &mockHumaContext{
		headers:    map[string]string{"User-Agent": testUserAgent},
		remoteAddr: testRemoteAddr,
		method:     "GET",
	}
}

func (m *mockHumaContext) Operation() *huma.Operation {
	return m.operation
}
func (m *mockHumaContext) Context() context.Context              { return context.Background() }
func (m *mockHumaContext) TLS() *tls.ConnectionState             { return nil }
func (m *mockHumaContext) Version() huma.ProtoVersion            { return huma.ProtoVersion{} }
func (m *mockHumaContext) Method() string                        { return m.method }
func (m *mockHumaContext) Host() string                          { return "" }
func (m *mockHumaContext) RemoteAddr() string                    { return m.remoteAddr }
func (m *mockHumaContext) URL() url.URL                          { return url.URL{} }
func (m *mockHumaContext) Param(_ string) string                 { return "" }
func (m *mockHumaContext) Query(_ string) string                 { return "" }
func (m *mockHumaContext) Header(name string) string             { return m.headers[name] }
func (m *mockHumaContext) EachHeader(_ func(name, value string)) {}
func (m *mockHumaContext) BodyReader() io.Reader                 { return nil }
func (m *mockHumaContext) GetMultipartForm() (*multipart.Form, error) {
	return nil, errMultipartNotSupported
}
func (m *mockHumaContext) SetReadDeadline(_ time.Time) error { return nil }
func (m *mockHumaContext) SetStatus(code int)                { m.statusCode = code }
func (m *mockHumaContext) Status() int                       { return m.statusCode }
func (m *mockHumaContext) AppendHeader(_, _ string)          {}
func (m *mockHumaContext) SetHeader(_, _ string)             {}
func (m *mockHumaContext) BodyWriter() io.Writer             { return &mockBodyWriter{ctx: m} }

type mockBodyWriter struct {
	ctx *mockHumaContext
}

func (w *mockBodyWriter) Write(p []byte) (n int, err error) {
	w.ctx.written = append(w.ctx.written, p...)

	return len(p), nil
}

// mockPolicyStore counts per key and remembers the keys it saw.
type mockPolicyStore struct {
	counts map[string]int64
	err    error
}

func newMockPolicyStore() *mockPolicyStore {
	return &mockPolicyStore{counts: make(map[string]int64)}
}

func (m *mockPolicyStore) Record(_ context.Context, key string, _ time.Duration) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}

	m.counts[key]++

	return m.counts[key], nil
}

type mockScopeResolver struct {
	scopes []ratelimit.Scope
}

func (m *mockScopeResolver) Resolve(_ huma.Context) []ratelimit.Scope {
	return m.scopes
}

func newRateLimiter(store ratelimit.Store, policy *ratelimit.Policy, scopes ...ratelimit.Scope) func(huma.Context, func(huma.Context)) {
	limiter := ratelimit.NewPolicyLimiter(store, policy)

	return middleware.PolicyRateLimiter(newTestAPI(), limiter, &mockScopeResolver{scopes: scopes}, zap.NewNop())
}

func run(mw func(huma.Context, func(huma.Context)), ctx *mockHumaContext) bool {
	called := false

	mw(ctx, func(_ huma.Context) { called = true })

	return called
}

func TestPolicyRateLimiter(t *testing.T) {
	t.Run("allows request when under limit", func(t *testing.T) {
		policy := ratelimit.NewPolicyBuilder().AddLimit(ratelimit.ScopeGlobal, 10, time.Minute).Build()
		mw := newRateLimiter(newMockPolicyStore(), policy, ratelimit.ScopeGlobal)

		assert.True(t, run(mw, newMockHumaContext()))
	})

	t.Run("returns 429 with limit details when rate limited", func(t *testing.T) {
		policy := ratelimit.NewPolicyBuilder().AddLimit(ratelimit.ScopeRedirect, 1, time.Minute).Build()
		mw := newRateLimiter(newMockPolicyStore(), policy, ratelimit.ScopeRedirect)

		assert.True(t, run(mw, newMockHumaContext()))

		ctx := newMockHumaContext()

		assert.False(t, run(mw, ctx))
		assert.Equal(t, 429, ctx.statusCode)
		assert.Contains(t, string(ctx.written), "redirect")
		assert.Contains(t, string(ctx.written), "2/1")
	})

	t.Run("returns 500 on store error", func(t *testing.T) {
		store := newMockPolicyStore()
		store.err = errors.New("store error")
		policy := ratelimit.NewPolicyBuilder().AddLimit(ratelimit.ScopeGlobal, 10, time.Minute).Build()
		mw := newRateLimiter(store, policy, ratelimit.ScopeGlobal)

		ctx := newMockHumaContext()

		assert.False(t, run(mw, ctx))
		assert.Equal(t, 500, ctx.statusCode)
	})

	t.Run("fails open on store error when the endpoint allows it", func(t *testing.T) {
		store := newMockPolicyStore()
		store.err = errors.New("store error")
		policy := ratelimit.NewPolicyBuilder().AddLimit(ratelimit.ScopeRedirect, 10, time.Minute).Build()
		mw := newRateLimiter(store, policy, ratelimit.ScopeRedirect)

		ctx := newMockHumaContext()
		ctx.operation = &huma.Operation{
			Path: "/s/{slug}",
			Metadata: map[string]any{
				ratelimit.MetadataKey: ratelimit.EndpointConfig{Scope: ratelimit.ScopeRedirect, FailOpen: true},
			},
		}

		assert.True(t, run(mw, ctx))
		assert.Zero(t, ctx.statusCode)
	})

	t.Run("clients behind different forwarded IPs count separately", func(t *testing.T) {
		policy := ratelimit.NewPolicyBuilder().AddLimit(ratelimit.ScopeGlobal, 1, time.Minute).Build()
		mw := newRateLimiter(newMockPolicyStore(), policy, ratelimit.ScopeGlobal)

		first := newMockHumaContext()
		first.headers["X-Forwarded-For"] = "203.0.113.1"
		second := newMockHumaContext()
		second.headers["X-Forwarded-For"] = "203.0.113.2"

		assert.True(t, run(mw, first))
		assert.True(t, run(mw, second))
	})

	t.Run("skips rate limiting when disabled via metadata", func(t *testing.T) {
		policy := ratelimit.NewPolicyBuilder().AddLimit(ratelimit.ScopeGlobal, 1, time.Minute).Build()
		mw := newRateLimiter(newMockPolicyStore(), policy, ratelimit.ScopeGlobal)
		operation := &huma.Operation{
			Path: "/health",
			Metadata: map[string]any{
				ratelimit.MetadataKey: ratelimit.EndpointConfig{Disabled: true},
			},
		}

		for range 3 {
			ctx := newMockHumaContext()
			ctx.operation = operation

			assert.True(t, run(mw, ctx))
		}
	})

	t.Run("applies custom limits from metadata", func(t *testing.T) {
		policy := ratelimit.NewPolicyBuilder().AddLimit(ratelimit.ScopeGlobal, 100, time.Minute).Build()
		mw := newRateLimiter(newMockPolicyStore(), policy, ratelimit.ScopeGlobal)
		operation := &huma.Operation{
			Path: "/qrs",
			Metadata: map[string]any{
				ratelimit.MetadataKey: ratelimit.EndpointConfig{
					Limits: []ratelimit.LimitConfig{{Window: time.Minute, Max: 2}},
				},
			},
		}

		for i := range 2 {
			ctx := newMockHumaContext()
			ctx.operation = operation

			assert.True(t, run(mw, ctx), "request %d should be allowed", i+1)
		}

		ctx := newMockHumaContext()
		ctx.operation = operation

		assert.False(t, run(mw, ctx), "third request should be denied by custom limit")
		assert.Equal(t, 429, ctx.statusCode)
	})

	t.Run("custom limits store error returns 500", func(t *testing.T) {
		store := newMockPolicyStore()
		store.err = errors.New("store error")
		mw := newRateLimiter(store, ratelimit.NewPolicyBuilder().Build())

		ctx := newMockHumaContext()
		ctx.operation = &huma.Operation{
			Path: "/qrs",
			Metadata: map[string]any{
				ratelimit.MetadataKey: ratelimit.EndpointConfig{
					Limits: []ratelimit.LimitConfig{{Window: time.Minute, Max: 10}},
				},
			},
		}

		assert.False(t, run(mw, ctx))
		assert.Equal(t, 500, ctx.statusCode)
	})

	t.Run("custom limits fail open when the endpoint allows it", func(t *testing.T) {
		store := newMockPolicyStore()
		store.err = errors.New("store error")
		mw := newRateLimiter(store, ratelimit.NewPolicyBuilder().Build())

		ctx := newMockHumaContext()
		ctx.operation = &huma.Operation{
			Path: "/s/{slug}",
			Metadata: map[string]any{
				ratelimit.MetadataKey: ratelimit.EndpointConfig{
					Limits:   []ratelimit.LimitConfig{{Window: time.Minute, Max: 10}},
					FailOpen: true,
				},
			},
		}

		assert.True(t, run(mw, ctx))
	})
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"single forwarded address", map[string]string{"X-Forwarded-For": "192.168.1.1"}, "192.168.1.1"},
		{"first of several forwarded addresses", map[string]string{"X-Forwarded-For": " 10.0.0.1 , 172.16.0.1"}, "10.0.0.1"},
		{"real ip when not forwarded", map[string]string{"X-Real-IP": "10.0.0.2"}, "10.0.0.2"},
		{"forwarded wins over real ip", map[string]string{"X-Forwarded-For": "10.0.0.1", "X-Real-IP": "10.0.0.2"}, "10.0.0.1"},
		{"unknown without proxy headers", map[string]string{}, "unknown"},
		{"empty forwarded entry falls through", map[string]string{"X-Forwarded-For": " ", "X-Real-IP": "10.0.0.2"}, "10.0.0.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newMockHumaContext()
			ctx.headers = tt.headers

			assert.Equal(t, tt.want, middleware.ClientIP(ctx))
		})
	}
}
