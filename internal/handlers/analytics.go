package handlers

import (
	"context"
	"time"
	_ "time/tzdata" // tz query parameter must resolve without system zoneinfo

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/scanlink/internal/analytics"
	"github.com/serroba/scanlink/internal/qr"
	"go.uber.org/zap"
)

// AnalyticsHandler serves per-link scan summaries.
type AnalyticsHandler struct {
	links     *qr.Service
	analytics *analytics.Service
	logger    *zap.Logger
}

// NewAnalyticsHandler creates an analytics handler.
func NewAnalyticsHandler(links *qr.Service, summaries *analytics.Service, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		links:     links,
		analytics: summaries,
		logger:    logger,
	}
}

func (h *AnalyticsHandler) GetAnalytics(ctx context.Context, req *AnalyticsRequest) (*AnalyticsResponse, error) {
	var loc *time.Location

	if req.TZ != "" {
		parsed, err := time.LoadLocation(req.TZ)
		if err != nil {
			return nil, huma.Error400BadRequest("unknown time zone: " + req.TZ)
		}

		loc = parsed
	}

	if _, err := h.links.Get(ctx, req.ID); err != nil {
		return nil, linkError(h.logger, "get link", err)
	}

	summary, err := h.analytics.ForLink(ctx, req.ID, loc)
	if err != nil {
		h.logger.Error("failed to summarize scans", zap.String("qr_id", req.ID), zap.Error(err))

		return nil, huma.Error500InternalServerError("internal server error")
	}

	return &AnalyticsResponse{Body: summary}, nil
}
