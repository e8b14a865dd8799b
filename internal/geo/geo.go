// Package geo reads coarse client location from headers injected by a trusted edge.
//
// No IP-to-location lookup happens here. Deployments without an edge that sets these
// headers label every scan Unknown/Unknown.
package geo

import "net/url"

// Unknown is used for any location field the edge did not supply.
const Unknown = "Unknown"

// Default header names, as set by the Vercel edge network.
const (
	DefaultCountryHeader = "X-Vercel-IP-Country"
	DefaultCityHeader    = "X-Vercel-IP-City"
)

// Headers names the request headers carrying the edge-supplied location.
type Headers struct {
	Country string
	City    string
}

// DefaultHeaders returns the Vercel header names. Vercel percent-encodes the values,
// so Extract decodes whatever these headers carry.
func DefaultHeaders() Headers {
	return Headers{Country: DefaultCountryHeader, City: DefaultCityHeader}
}

// Location is a coarse client location.
type Location struct {
	Country string
	City    string
}

// Extract reads the location through get, typically a request's header accessor.
// Both values are percent-decoded, as the edge encodes non-ASCII header values; a value
// that does not decode passes through as is.
func Extract(get func(name string) string, headers Headers) Location {
	return Location{
		Country: orUnknown(decode(get(headers.Country))),
		City:    orUnknown(decode(get(headers.City))),
	}
}

func decode(v string) string {
	decoded, err := url.PathUnescape(v)
	if err != nil {
		return v
	}

	return decoded
}

func orUnknown(v string) string {
	if v == "" {
		return Unknown
	}

	return v
}
