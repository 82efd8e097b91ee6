package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"

	"github.com/nandanugg/carrier-geo/module/core/domain"
	"github.com/nandanugg/carrier-geo/module/core/internal/geocoder"
)

var _ geocoder.Resolver = (*Cache)(nil)

const (
	keyPrefix      = "geocode:"
	notFoundMarker = "-"
)

type client interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd
}

// Cache is a read-through cache in front of a Resolver. Misses are cached
// for NegativeTTL; transport failures of the wrapped resolver are not cached.
type Cache struct {
	next        geocoder.Resolver
	rdb         client
	ttl         time.Duration
	negativeTTL time.Duration
}

func NewCache(next geocoder.Resolver, rdb *goredis.Client, ttl, negativeTTL time.Duration) *Cache {
	return newCache(next, rdb, ttl, negativeTTL)
}

func newCache(next geocoder.Resolver, rdb client, ttl, negativeTTL time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if negativeTTL <= 0 {
		negativeTTL = 10 * time.Minute
	}
	return &Cache{next: next, rdb: rdb, ttl: ttl, negativeTTL: negativeTTL}
}

func cacheKey(place string) string {
	return keyPrefix + strings.ToLower(strings.TrimSpace(place))
}

func (c *Cache) Resolve(ctx context.Context, place string) (domain.Coordinate, error) {
	key := cacheKey(place)

	val, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		if val == notFoundMarker {
			return domain.Coordinate{}, domain.ErrPlaceNotFound
		}
		var lngLat [2]float64
		if jerr := json.Unmarshal([]byte(val), &lngLat); jerr == nil {
			return domain.Coordinate{Lat: lngLat[1], Lng: lngLat[0]}, nil
		}
		log.WithField("key", key).Warn("discarding malformed geocode cache entry")
	case !errors.Is(err, goredis.Nil):
		log.WithError(err).Warn("geocode cache read failed")
	}

	coord, err := c.next.Resolve(ctx, place)
	if geocoder.IsNotFound(err) {
		c.store(ctx, key, notFoundMarker, c.negativeTTL)
		return domain.Coordinate{}, err
	}
	if err != nil {
		return domain.Coordinate{}, err
	}

	body, _ := json.Marshal([2]float64{coord.Lng, coord.Lat})
	c.store(ctx, key, string(body), c.ttl)
	return coord, nil
}

func (c *Cache) store(ctx context.Context, key, value string, ttl time.Duration) {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		log.WithError(err).Warn("geocode cache write failed")
	}
}
