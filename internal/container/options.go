package container

import (
	"fmt"
	"time"
)

// Record modes.
const (
	RecordDirect = "direct"
	RecordStream = "stream"
)

// Options configures both binaries. Every field is also read from SERVICE_* env vars.
type Options struct {
	Port       int    `default:"8888"    help:"Port to listen on"                           short:"p"`
	BaseURL    string `default:""        help:"Public base URL for short links"             short:"b"`
	SlugLength int    `default:"8"       help:"Length of generated slugs"                   short:"c"`
	LogFormat  string `default:"console" help:"Log format: console or json"`
	LogLevel   string `default:"info"    help:"Log level: debug, info, warn or error"`

	RedisAddr   string `default:""    help:"Redis address; empty keeps rate limits in process and disables the slug cache" short:"r"`
	DatabaseURL string `default:""    help:"PostgreSQL URL; empty uses the in-memory store"                                 short:"d"`
	CacheTTL    int    `default:"300" help:"Slug cache TTL in seconds; 0 disables the cache"`

	RecordMode    string `default:"direct" help:"Scan recording: direct or stream"`
	RecordTimeout int    `default:"2000"   help:"Scan insert or publish timeout in milliseconds"`
	ConsumerGroup string `default:"scanlink-scans" help:"Redis stream consumer group of the scan consumer"`
	MetricsPort   int    `default:"9090"           help:"Metrics port of the scan consumer"`

	DisplayTZ     string `default:"UTC"                 help:"IANA time zone used to bucket analytics trends"`
	CountryHeader string `default:"X-Vercel-IP-Country" help:"Header carrying the client country"`
	CityHeader    string `default:"X-Vercel-IP-City"    help:"Header carrying the client city"`

	RateLimit         bool  `default:"true" help:"Enable rate limiting"`
	RedirectRateLimit int64 `default:"0"    help:"Redirects per minute per client; 0 uses the default"`
	ReadRateLimit     int64 `default:"0"    help:"Reads per minute per client; 0 uses the default"`
	WriteRateLimit    int64 `default:"0"    help:"Writes per minute per client; 0 uses the default"`
}

// PublicBaseURL returns BaseURL, or the local listen address when it is unset.
func (o *Options) PublicBaseURL() string {
	if o.BaseURL != "" {
		return o.BaseURL
	}

	return fmt.Sprintf("http://localhost:%d", o.Port)
}

func (o *Options) redisEnabled() bool {
	return o.RedisAddr != ""
}

func (o *Options) postgresEnabled() bool {
	return o.DatabaseURL != ""
}

// streamReady reports why stream recording cannot work. The server publishes and the
// consumer persists, so both need Redis and a database they share.
func (o *Options) streamReady() error {
	if !o.redisEnabled() {
		return fmt.Errorf("record mode %q needs a redis address", RecordStream)
	}

	if !o.postgresEnabled() {
		return fmt.Errorf("record mode %q needs a database url", RecordStream)
	}

	return nil
}

func (o *Options) recordTimeout() time.Duration {
	return time.Duration(o.RecordTimeout) * time.Millisecond
}
