package handlers

import (
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/scanlink/internal/ratelimit"
)

func rateLimit(cfg ratelimit.EndpointConfig) map[string]any {
	return map[string]any{ratelimit.MetadataKey: cfg}
}

// RegisterRedirectRoutes registers the public scan endpoint.
func RegisterRedirectRoutes(api huma.API, h *RedirectHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "redirect",
		Method:      http.MethodGet,
		Path:        "/s/{slug}",
		Summary:     "Resolve a scanned code",
		Description: "Records the scan and redirects to the link destination. Unknown slugs get an HTML 404 page.",
		Tags:        []string{"Scans"},
		Metadata:    rateLimit(ratelimit.EndpointConfig{Scope: ratelimit.ScopeRedirect, FailOpen: true}),
	}, h.Redirect)
}

// RegisterLinkRoutes registers the link management and analytics endpoints.
func RegisterLinkRoutes(api huma.API, links *LinkHandler, stats *AnalyticsHandler) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-link",
		Method:        http.MethodPost,
		Path:          "/qrs",
		Summary:       "Create link",
		Description:   "Creates a QR link with a custom or generated slug.",
		Tags:          []string{"Links"},
		DefaultStatus: http.StatusCreated,
		Metadata: rateLimit(ratelimit.EndpointConfig{
			Limits: []ratelimit.LimitConfig{
				{Window: time.Minute, Max: 10},
				{Window: time.Hour, Max: 100},
				{Window: 24 * time.Hour, Max: 500},
			},
		}),
	}, links.CreateLink)

	huma.Register(api, huma.Operation{
		OperationID: "get-link",
		Method:      http.MethodGet,
		Path:        "/qrs/{id}",
		Summary:     "Get link",
		Tags:        []string{"Links"},
	}, links.GetLink)

	huma.Register(api, huma.Operation{
		OperationID: "update-link",
		Method:      http.MethodPatch,
		Path:        "/qrs/{id}",
		Summary:     "Update link",
		Description: "Changes the name or destination. The slug cannot be changed.",
		Tags:        []string{"Links"},
	}, links.UpdateLink)

	huma.Register(api, huma.Operation{
		OperationID: "list-owner-links",
		Method:      http.MethodGet,
		Path:        "/owners/{ownerId}/qrs",
		Summary:     "List an owner's links",
		Tags:        []string{"Links"},
	}, links.ListLinks)

	huma.Register(api, huma.Operation{
		OperationID: "link-analytics",
		Method:      http.MethodGet,
		Path:        "/qrs/{id}/analytics",
		Summary:     "Scan analytics",
		Description: "Total scans, daily trend, device breakdown and top cities of one link.",
		Tags:        []string{"Analytics"},
	}, stats.GetAnalytics)
}
