package handlers

import (
	"net/url"
	"time"

	"github.com/serroba/scanlink/internal/analytics"
	"github.com/serroba/scanlink/internal/qr"
)

// RedirectRequest is the request for resolving a scanned code.
type RedirectRequest struct {
	Slug string `doc:"The slug printed in the QR code" example:"promo" path:"slug"`
}

// RedirectResponse is either a 302 to the destination or an HTML error page.
// Every variant forbids caching so that destination edits take effect on the next scan.
type RedirectResponse struct {
	Status       int
	Location     string `header:"Location"`
	CacheControl string `header:"Cache-Control"`
	Pragma       string `header:"Pragma"`
	Expires      string `header:"Expires"`
	ContentType  string `header:"Content-Type"`
	Body         []byte
}

// StyleBody is the rendering style of a QR code.
type StyleBody struct {
	FgColor string `doc:"Foreground color" example:"#000000" json:"fgColor,omitempty"`
	BgColor string `doc:"Background color" example:"#ffffff" json:"bgColor,omitempty"`
}

// LinkBody is the representation of a link returned by the management API.
type LinkBody struct {
	ID          string    `doc:"Link id"                        json:"id"`
	OwnerID     string    `doc:"Owning account"                 json:"ownerId"`
	Name        string    `doc:"Display name"                   json:"name"`
	Destination string    `doc:"Where scans are redirected"     example:"https://example.com/landing" json:"destination"`
	Slug        string    `doc:"Public slug"                    example:"promo"                       json:"slug"`
	ShortURL    string    `doc:"The URL encoded in the QR code" example:"http://localhost:8888/s/promo" json:"shortUrl"`
	Style       StyleBody `json:"style"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CreateLinkRequest is the request body for creating a link.
// Field presence is checked by the link service, not by schema validation.
type CreateLinkRequest struct {
	Body struct {
		OwnerID     string     `doc:"Owning account"                             json:"ownerId,omitempty"`
		Name        string     `doc:"Display name"                               json:"name,omitempty"`
		Destination string     `doc:"Absolute URL scans are redirected to"       example:"https://example.com/landing" json:"destination,omitempty"`
		Slug        string     `doc:"Custom slug; a random one is generated when empty" json:"slug,omitempty"`
		Style       *StyleBody `json:"style,omitempty"`
	}
}

// CreateLinkResponse is the response for a successfully created link.
type CreateLinkResponse struct {
	Headers struct {
		Location string `doc:"The short URL" header:"Location"`
	}
	Body LinkBody
}

// LinkIDRequest addresses one link.
type LinkIDRequest struct {
	ID string `doc:"Link id" path:"id"`
}

// LinkResponse wraps a single link.
type LinkResponse struct {
	Body LinkBody
}

// ListLinksRequest lists the links of one owner.
type ListLinksRequest struct {
	OwnerID string `doc:"Owning account" path:"ownerId"`
}

// ListLinksResponse is the owner's links, newest first.
type ListLinksResponse struct {
	Body struct {
		Links []LinkBody `json:"links"`
	}
}

// UpdateLinkRequest edits a link. The slug is immutable.
type UpdateLinkRequest struct {
	ID   string `doc:"Link id" path:"id"`
	Body struct {
		Name        *string `doc:"New display name"  json:"name,omitempty"`
		Destination *string `doc:"New destination"   json:"destination,omitempty"`
	}
}

// AnalyticsRequest asks for the summary of one link.
type AnalyticsRequest struct {
	ID string `doc:"Link id" path:"id"`
	TZ string `doc:"IANA time zone for trend dates; the server default when empty" example:"Asia/Bangkok" query:"tz"`
}

// AnalyticsResponse is the dashboard summary of one link.
type AnalyticsResponse struct {
	Body analytics.Summary
}

func toLinkBody(link *qr.Link, baseURL string) LinkBody {
	return LinkBody{
		ID:          link.ID,
		OwnerID:     link.OwnerID,
		Name:        link.Name,
		Destination: link.Destination,
		Slug:        string(link.Slug),
		ShortURL:    ShortURL(baseURL, link.Slug),
		Style:       StyleBody{FgColor: link.Style.FgColor, BgColor: link.Style.BgColor},
		CreatedAt:   link.CreatedAt,
	}
}

// ShortURL is the public URL that resolves slug.
func ShortURL(baseURL string, slug qr.Slug) string {
	return baseURL + "/s/" + url.PathEscape(string(slug))
}
