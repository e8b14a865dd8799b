package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/scanlink/internal/qr"
	"go.uber.org/zap"
)

// LinkObserver is told about every created link.
type LinkObserver interface {
	LinkCreated()
}

// LinkHandler serves the link management API.
type LinkHandler struct {
	links    *qr.Service
	baseURL  string
	observer LinkObserver
	logger   *zap.Logger
}

// NewLinkHandler creates a link handler. Short URLs are built on baseURL. A nil observer
// is allowed.
func NewLinkHandler(links *qr.Service, baseURL string, observer LinkObserver, logger *zap.Logger) *LinkHandler {
	return &LinkHandler{
		links:    links,
		baseURL:  baseURL,
		observer: observer,
		logger:   logger,
	}
}

func (h *LinkHandler) CreateLink(ctx context.Context, req *CreateLinkRequest) (*CreateLinkResponse, error) {
	params := qr.CreateParams{
		OwnerID:     req.Body.OwnerID,
		Name:        req.Body.Name,
		Destination: req.Body.Destination,
		Slug:        qr.Slug(req.Body.Slug),
	}

	if req.Body.Style != nil {
		params.Style = qr.Style{FgColor: req.Body.Style.FgColor, BgColor: req.Body.Style.BgColor}
	}

	link, err := h.links.Create(ctx, params)
	if err != nil {
		return nil, linkError(h.logger, "create link", err)
	}

	if h.observer != nil {
		h.observer.LinkCreated()
	}

	h.logger.Info("link created",
		zap.String("qr_id", link.ID),
		zap.String("slug", string(link.Slug)),
		zap.String("owner_id", link.OwnerID),
	)

	resp := &CreateLinkResponse{Body: toLinkBody(link, h.baseURL)}
	resp.Headers.Location = resp.Body.ShortURL

	return resp, nil
}

func (h *LinkHandler) GetLink(ctx context.Context, req *LinkIDRequest) (*LinkResponse, error) {
	link, err := h.links.Get(ctx, req.ID)
	if err != nil {
		return nil, linkError(h.logger, "get link", err)
	}

	return &LinkResponse{Body: toLinkBody(link, h.baseURL)}, nil
}

func (h *LinkHandler) ListLinks(ctx context.Context, req *ListLinksRequest) (*ListLinksResponse, error) {
	links, err := h.links.ListByOwner(ctx, req.OwnerID)
	if err != nil {
		return nil, linkError(h.logger, "list links", err)
	}

	resp := &ListLinksResponse{}
	resp.Body.Links = make([]LinkBody, 0, len(links))

	for _, link := range links {
		resp.Body.Links = append(resp.Body.Links, toLinkBody(link, h.baseURL))
	}

	return resp, nil
}

func (h *LinkHandler) UpdateLink(ctx context.Context, req *UpdateLinkRequest) (*LinkResponse, error) {
	link, err := h.links.Update(ctx, req.ID, qr.UpdateParams{
		Name:        req.Body.Name,
		Destination: req.Body.Destination,
	})
	if err != nil {
		return nil, linkError(h.logger, "update link", err)
	}

	h.logger.Info("link updated", zap.String("qr_id", link.ID))

	return &LinkResponse{Body: toLinkBody(link, h.baseURL)}, nil
}

// linkError maps link service errors onto HTTP problems. Unexpected errors are logged.
func linkError(logger *zap.Logger, op string, err error) error {
	switch {
	case qr.IsValidation(err):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, qr.ErrSlugTaken):
		return huma.Error409Conflict("slug is already taken")
	case errors.Is(err, qr.ErrNotFound):
		return huma.Error404NotFound("link not found")
	default:
		logger.Error("link operation failed", zap.String("op", op), zap.Error(err))

		return huma.Error500InternalServerError("internal server error")
	}
}
