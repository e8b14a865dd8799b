package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/serroba/scanlink/internal/classifier"
	"github.com/serroba/scanlink/internal/qr"
	"github.com/serroba/scanlink/internal/scan"
	"go.uber.org/zap"
)

const (
	noStore     = "no-store, no-cache, must-revalidate, max-age=0"
	htmlContent = "text/html; charset=utf-8"
)

var (
	notFoundPage = []byte(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Not found</title></head>
<body><h1>404</h1><p>Link not found or expired.</p></body>
</html>
`)
	errorPage = []byte(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Error</title></head>
<body><h1>500</h1><p>Something went wrong. Please try again later.</p></body>
</html>
`)
)

// RedirectObserver is told how each redirect request ended.
type RedirectObserver interface {
	ObserveRedirect(outcome string)
}

// Redirect outcomes reported to the observer.
const (
	RedirectOutcomeRedirected = "redirected"
	RedirectOutcomeNotFound   = "not_found"
	RedirectOutcomeError      = "error"
)

type nopObserver struct{}

func (nopObserver) ObserveRedirect(string) {}

// RedirectHandler resolves scanned slugs and records each successful scan.
type RedirectHandler struct {
	resolver *qr.Resolver
	recorder scan.Recorder
	observer RedirectObserver
	logger   *zap.Logger
}

// NewRedirectHandler creates a redirect handler. A nil observer is allowed.
func NewRedirectHandler(
	resolver *qr.Resolver,
	recorder scan.Recorder,
	observer RedirectObserver,
	logger *zap.Logger,
) *RedirectHandler {
	if observer == nil {
		observer = nopObserver{}
	}

	return &RedirectHandler{
		resolver: resolver,
		recorder: recorder,
		observer: observer,
		logger:   logger,
	}
}

// Redirect answers one scan.
//
// Only a resolved slug is recorded, and recording never changes the response: the
// client is redirected whether or not the scan was stored.
func (h *RedirectHandler) Redirect(ctx context.Context, req *RedirectRequest) (*RedirectResponse, error) {
	target, err := h.resolver.Resolve(ctx, qr.Slug(req.Slug))

	switch {
	case errors.Is(err, qr.ErrNotFound):
		h.observer.ObserveRedirect(RedirectOutcomeNotFound)

		return page(http.StatusNotFound, notFoundPage), nil
	case err != nil:
		h.observer.ObserveRedirect(RedirectOutcomeError)
		h.logger.Error("failed to resolve slug",
			zap.String("slug", req.Slug),
			zap.Error(err),
		)

		return page(http.StatusInternalServerError, errorPage), nil
	}

	meta := RequestMetaFromContext(ctx)
	event := scan.NewEvent(target.ID, meta.ClientIP, classifier.Classify(meta.UserAgent), meta.Location)

	outcome := h.recorder.Record(ctx, event)
	h.logger.Debug("scan handled",
		zap.String("slug", req.Slug),
		zap.String("qr_id", target.ID),
		zap.String("status", string(outcome.Status)),
	)

	h.observer.ObserveRedirect(RedirectOutcomeRedirected)

	resp := noCache(http.StatusFound)
	resp.Location = target.Destination

	return resp, nil
}

func noCache(status int) *RedirectResponse {
	return &RedirectResponse{
		Status:       status,
		CacheControl: noStore,
		Pragma:       "no-cache",
		Expires:      "0",
	}
}

func page(status int, body []byte) *RedirectResponse {
	resp := noCache(status)
	resp.ContentType = htmlContent
	resp.Body = body

	return resp
}
