package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/scanlink/internal/qr"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var errCacheMiss = errors.New("cache miss")

// getter is satisfied by both *redis.Client and a watched *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisCacheRepository wraps a qr.Repository with a Redis cache of slug lookups.
//
// Only single-match lookups are cached. Misses and duplicate slugs always reach the
// underlying store so the resolver sees them as they are. Concurrent misses for the
// same slug share one store round trip.
//
// Every update bumps a per-slug generation counter. A miss only fills the cache when
// the generation it saw before reading the store is still current, so a lookup racing
// an update cannot put the old destination back.
type RedisCacheRepository struct {
	store  qr.Repository
	client *redis.Client
	prefix string
	ttl    time.Duration
	group  singleflight.Group
	logger *zap.Logger
}

// NewRedisCacheRepository creates a new Redis-cached repository decorator.
func NewRedisCacheRepository(
	store qr.Repository,
	client *redis.Client,
	ttl time.Duration,
	logger *zap.Logger,
) *RedisCacheRepository {
	return &RedisCacheRepository{
		store:  store,
		client: client,
		prefix: "qr:slug:",
		ttl:    ttl,
		logger: logger,
	}
}

// Create stores a link in the underlying store and updates the cache.
func (r *RedisCacheRepository) Create(ctx context.Context, link *qr.Link) error {
	if err := r.store.Create(ctx, link); err != nil {
		return err
	}

	r.cacheLink(ctx, link)

	return nil
}

// FindBySlug checks the cache first and falls back to the underlying store.
func (r *RedisCacheRepository) FindBySlug(ctx context.Context, slug qr.Slug) ([]*qr.Link, error) {
	if link, err := r.getFromCache(ctx, slug); err == nil {
		return []*qr.Link{link}, nil
	}

	v, err, _ := r.group.Do(string(slug), func() (any, error) {
		// Shared by every waiter, so one caller going away must not fail the others.
		ctx := context.WithoutCancel(ctx)

		gen, genErr := r.generation(ctx, r.client, slug)

		links, err := r.store.FindBySlug(ctx, slug)
		if err != nil {
			return nil, err
		}

		if len(links) == 1 && genErr == nil {
			r.cacheIfCurrent(ctx, links[0], gen)
		}

		return links, nil
	})
	if err != nil {
		return nil, err
	}

	shared, _ := v.([]*qr.Link)

	links := make([]*qr.Link, 0, len(shared))
	for _, link := range shared {
		copied := *link
		links = append(links, &copied)
	}

	return links, nil
}

func (r *RedisCacheRepository) GetByID(ctx context.Context, id string) (*qr.Link, error) {
	return r.store.GetByID(ctx, id)
}

func (r *RedisCacheRepository) ListByOwner(ctx context.Context, ownerID string) ([]*qr.Link, error) {
	return r.store.ListByOwner(ctx, ownerID)
}

// Update writes through to the underlying store and evicts the cached slug, so the
// next scan redirects to the new destination. A failed eviction is logged, not returned.
func (r *RedisCacheRepository) Update(ctx context.Context, link *qr.Link) error {
	slug := link.Slug
	if slug == "" {
		stored, err := r.store.GetByID(ctx, link.ID)
		if err != nil {
			return err
		}

		slug = stored.Slug
	}

	if err := r.store.Update(ctx, link); err != nil {
		return err
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, r.genKey(slug))
		pipe.Del(ctx, r.key(slug))

		if r.ttl > 0 {
			pipe.Expire(ctx, r.genKey(slug), r.ttl)
		}

		return nil
	})
	if err != nil {
		r.logger.Warn("slug cache eviction failed",
			zap.String("slug", string(slug)),
			zap.Error(err),
		)
	}

	return nil
}

func (r *RedisCacheRepository) key(slug qr.Slug) string {
	return r.prefix + string(slug)
}

func (r *RedisCacheRepository) genKey(slug qr.Slug) string {
	return r.prefix + string(slug) + ":gen"
}

// generation returns the slug's update counter, empty when it was never updated.
func (r *RedisCacheRepository) generation(ctx context.Context, c getter, slug qr.Slug) (string, error) {
	gen, err := c.Get(ctx, r.genKey(slug)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}

	return gen, err
}

// cacheIfCurrent caches link unless its slug was updated since gen was read.
func (r *RedisCacheRepository) cacheIfCurrent(ctx context.Context, link *qr.Link, gen string) {
	genKey := r.genKey(link.Slug)

	_ = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := r.generation(ctx, tx, link.Slug)
		if err != nil || current != gen {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			r.writeLink(ctx, pipe, link)

			return nil
		})

		return err
	}, genKey)
}

func (r *RedisCacheRepository) getFromCache(ctx context.Context, slug qr.Slug) (*qr.Link, error) {
	result, err := r.client.HGetAll(ctx, r.key(slug)).Result()
	if err != nil {
		return nil, err
	}

	if len(result) == 0 {
		return nil, errCacheMiss
	}

	var createdAt time.Time

	if ts, ok := result["created_at"]; ok {
		if nanos, err := strconv.ParseInt(ts, 10, 64); err == nil {
			createdAt = time.Unix(0, nanos).UTC()
		}
	}

	return &qr.Link{
		ID:          result["id"],
		OwnerID:     result["owner_id"],
		Name:        result["name"],
		Destination: result["destination"],
		Slug:        qr.Slug(result["slug"]),
		Style: qr.Style{
			FgColor: result["fg_color"],
			BgColor: result["bg_color"],
		},
		CreatedAt: createdAt,
	}, nil
}

func (r *RedisCacheRepository) cacheLink(ctx context.Context, link *qr.Link) {
	pipe := r.client.Pipeline()
	r.writeLink(ctx, pipe, link)
	_, _ = pipe.Exec(ctx)
}

func (r *RedisCacheRepository) writeLink(ctx context.Context, pipe redis.Pipeliner, link *qr.Link) {
	key := r.key(link.Slug)

	pipe.HSet(ctx, key, map[string]any{
		"id":          link.ID,
		"owner_id":    link.OwnerID,
		"name":        link.Name,
		"destination": link.Destination,
		"slug":        string(link.Slug),
		"fg_color":    link.Style.FgColor,
		"bg_color":    link.Style.BgColor,
		"created_at":  link.CreatedAt.UnixNano(),
	})

	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
}

// Shutdown is a no-op for RedisCacheRepository (client managed externally).
func (r *RedisCacheRepository) Shutdown() error {
	return nil
}

// Compile-time check.
var _ qr.Repository = (*RedisCacheRepository)(nil)
