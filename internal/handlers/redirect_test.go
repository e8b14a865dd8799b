package handlers_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/serroba/scanlink/internal/handlers"
	"github.com/serroba/scanlink/internal/qr"
	"github.com/serroba/scanlink/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertNoCache(t *testing.T, header http.Header) {
	t.Helper()

	assert.Equal(t, "no-store, no-cache, must-revalidate, max-age=0", header.Get("Cache-Control"))
	assert.Equal(t, "no-cache", header.Get("Pragma"))
	assert.Equal(t, "0", header.Get("Expires"))
}

func TestRedirect(t *testing.T) {
	t.Run("known slug redirects and records the scan", func(t *testing.T) {
		srv := newTestServer(t)
		link := srv.createLink(t, map[string]any{
			"ownerId":     "owner-1",
			"destination": "https://example.com/landing",
			"slug":        "promo",
		})

		w := srv.scan("promo", map[string]string{
			"User-Agent":          iPhoneUA,
			"X-Forwarded-For":     "203.0.113.7, 10.0.0.1",
			"X-Vercel-IP-Country": "TH",
			"X-Vercel-IP-City":    "Bangkok",
		})

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "https://example.com/landing", w.Header().Get("Location"))
		assertNoCache(t, w.Header())

		scans, err := srv.scans.ListByQR(context.Background(), link.ID)
		require.NoError(t, err)
		require.Len(t, scans, 1)

		got := scans[0]
		assert.Equal(t, "mobile", got.DeviceType)
		assert.Equal(t, "iOS", got.OS)
		assert.Equal(t, "Safari", got.Browser)
		assert.Equal(t, "203.0.113.7", got.IP)
		assert.Equal(t, "TH", got.Country)
		assert.Equal(t, "Bangkok", got.City)
		assert.False(t, got.ScannedAt.IsZero())

		assert.Equal(t, []string{handlers.RedirectOutcomeRedirected}, srv.observer.outcomes)
	})

	t.Run("anonymous scan is recorded with fallback fields", func(t *testing.T) {
		srv := newTestServer(t)
		link := srv.createLink(t, map[string]any{
			"ownerId":     "owner-1",
			"destination": "https://example.com",
			"slug":        "bare",
		})

		w := srv.scan("bare", nil)
		require.Equal(t, http.StatusFound, w.Code)

		scans, _ := srv.scans.ListByQR(context.Background(), link.ID)
		require.Len(t, scans, 1)
		assert.Equal(t, "desktop", scans[0].DeviceType)
		assert.Equal(t, "Unknown", scans[0].OS)
		assert.Equal(t, "Unknown", scans[0].Browser)
		assert.Equal(t, "unknown", scans[0].IP)
		assert.Equal(t, "Unknown", scans[0].Country)
		assert.Equal(t, "Unknown", scans[0].City)
	})

	t.Run("unknown slug renders the not found page and records nothing", func(t *testing.T) {
		memStore := store.NewMemoryStore()
		scans := &countingScans{MemoryStore: memStore}
		srv := newTestServer(t, withLinks(memStore), withScans(scans))
		link := srv.createLink(t, map[string]any{
			"ownerId":     "owner-1",
			"destination": "https://example.com/promo",
			"slug":        "promo",
		})

		w := srv.scan("doesnotexist", map[string]string{"User-Agent": iPhoneUA})

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
		assert.Contains(t, w.Body.String(), "Link not found or expired.")
		assert.Empty(t, w.Header().Get("Location"))
		assertNoCache(t, w.Header())

		recorded, err := memStore.ListByQR(context.Background(), link.ID)
		require.NoError(t, err)
		assert.Empty(t, recorded)
		assert.Zero(t, scans.inserts)
		assert.Equal(t, []string{handlers.RedirectOutcomeNotFound}, srv.observer.outcomes)
	})

	t.Run("slug matching is case sensitive", func(t *testing.T) {
		srv := newTestServer(t)
		srv.createLink(t, map[string]any{
			"ownerId":     "owner-1",
			"destination": "https://example.com",
			"slug":        "promo",
		})

		assert.Equal(t, http.StatusNotFound, srv.scan("PROMO", nil).Code)
	})

	t.Run("failed scan insert still redirects", func(t *testing.T) {
		scans := &failingScans{}
		srv := newTestServer(t, withScans(scans))
		srv.createLink(t, map[string]any{
			"ownerId":     "owner-1",
			"destination": "https://example.com/landing",
			"slug":        "promo",
		})

		w := srv.scan("promo", map[string]string{"User-Agent": iPhoneUA})

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "https://example.com/landing", w.Header().Get("Location"))
		assert.Equal(t, 1, scans.inserts, "insert attempted exactly once")
	})

	t.Run("duplicate slug is an error page, not a pick", func(t *testing.T) {
		links := &brokenLinks{
			MemoryStore: store.NewMemoryStore(),
			found: []*qr.Link{
				{ID: "qr-1", Slug: "promo", Destination: "https://a.example"},
				{ID: "qr-2", Slug: "promo", Destination: "https://b.example"},
			},
		}
		memScans := store.NewMemoryStore()
		srv := newTestServer(t, withLinks(links), withScans(memScans))

		w := srv.scan("promo", nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
		assert.Empty(t, w.Header().Get("Location"))

		for _, id := range []string{"qr-1", "qr-2"} {
			scans, _ := memScans.ListByQR(context.Background(), id)
			assert.Empty(t, scans)
		}
	})

	t.Run("store failure is an error page, not a not found", func(t *testing.T) {
		links := &brokenLinks{MemoryStore: store.NewMemoryStore(), err: errMock}
		srv := newTestServer(t, withLinks(links))

		w := srv.scan("promo", nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "Link not found")
		assert.Equal(t, []string{handlers.RedirectOutcomeError}, srv.observer.outcomes)
	})

	t.Run("edited destination applies to the next scan", func(t *testing.T) {
		srv := newTestServer(t)
		link := srv.createLink(t, map[string]any{
			"ownerId":     "owner-1",
			"destination": "https://example.com/old",
			"slug":        "promo",
		})

		w := srv.sendJSON(t, http.MethodPatch, "/qrs/"+link.ID, map[string]any{
			"destination": "https://example.com/new",
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		assert.Equal(t, "https://example.com/new", srv.scan("promo", nil).Header().Get("Location"))
	})
}
