package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/jaevor/go-nanoid"
	"github.com/serroba/scanlink/internal/analytics"
	"github.com/serroba/scanlink/internal/geo"
	"github.com/serroba/scanlink/internal/handlers"
	"github.com/serroba/scanlink/internal/middleware"
	"github.com/serroba/scanlink/internal/qr"
	"github.com/serroba/scanlink/internal/scan"
	"github.com/serroba/scanlink/internal/store"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testBaseURL = "http://localhost:8888"
	iPhoneUA    = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) " +
		"AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
)

var errMock = errors.New("mock error")

// failingScans is a scan store whose inserts always fail.
type failingScans struct {
	inserts int
}

func (f *failingScans) Insert(_ context.Context, _ *scan.Event) error {
	f.inserts++

	return errMock
}

func (f *failingScans) ListByQR(_ context.Context, _ string) ([]scan.Event, error) {
	return nil, errMock
}

// countingScans is a memory scan store that counts inserts across every link.
type countingScans struct {
	*store.MemoryStore

	inserts int
}

func (c *countingScans) Insert(ctx context.Context, event *scan.Event) error {
	c.inserts++

	return c.MemoryStore.Insert(ctx, event)
}

// brokenLinks is a link repository whose slug lookups misbehave.
type brokenLinks struct {
	*store.MemoryStore

	found []*qr.Link
	err   error
}

func (b *brokenLinks) FindBySlug(_ context.Context, _ qr.Slug) ([]*qr.Link, error) {
	return b.found, b.err
}

// countingObserver records redirect outcomes and created links.
type countingObserver struct {
	outcomes []string
	created  int
}

func (c *countingObserver) ObserveRedirect(outcome string) {
	c.outcomes = append(c.outcomes, outcome)
}

func (c *countingObserver) LinkCreated() {
	c.created++
}

type testServer struct {
	router   *chi.Mux
	links    qr.Repository
	scans    scan.Store
	observer *countingObserver
}

type serverOption func(*testServer)

func withLinks(repo qr.Repository) serverOption {
	return func(s *testServer) { s.links = repo }
}

func withScans(scans scan.Store) serverOption {
	return func(s *testServer) { s.scans = scans }
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()

	memStore := store.NewMemoryStore()
	srv := &testServer{
		router:   chi.NewMux(),
		links:    memStore,
		scans:    memStore,
		observer: &countingObserver{},
	}

	for _, opt := range opts {
		opt(srv)
	}

	gen, err := nanoid.Standard(8)
	require.NoError(t, err)

	logger := zap.NewNop()
	linkService := qr.NewService(srv.links, gen)
	recorder := scan.NewDirectRecorder(srv.scans, time.Second, logger)

	api := humachi.New(srv.router, huma.DefaultConfig("Test", "1.0.0"))
	api.UseMiddleware(middleware.RequestMeta(geo.DefaultHeaders()))

	handlers.RegisterRedirectRoutes(api,
		handlers.NewRedirectHandler(qr.NewResolver(srv.links), recorder, srv.observer, logger))
	handlers.RegisterLinkRoutes(api,
		handlers.NewLinkHandler(linkService, testBaseURL, srv.observer, logger),
		handlers.NewAnalyticsHandler(linkService, analytics.NewService(srv.scans, time.UTC), logger))

	return srv
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	return w
}

func (s *testServer) get(path string) *httptest.ResponseRecorder {
	return s.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (s *testServer) sendJSON(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	return s.do(req)
}

func (s *testServer) createLink(t *testing.T, body map[string]any) handlers.LinkBody {
	t.Helper()

	w := s.sendJSON(t, http.MethodPost, "/qrs", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var link handlers.LinkBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &link))

	return link
}

func (s *testServer) scan(slug string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/s/"+slug, nil)
	for name, value := range headers {
		req.Header.Set(name, value)
	}

	return s.do(req)
}
