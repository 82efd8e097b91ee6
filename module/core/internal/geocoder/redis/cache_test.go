package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nandanugg/carrier-geo/module/core/domain"
)

type fakeRedis struct {
	data   map[string]string
	ttls   map[string]time.Duration
	getErr error
	setErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *goredis.StringCmd {
	if f.getErr != nil {
		return goredis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *goredis.StatusCmd {
	if f.setErr != nil {
		return goredis.NewStatusResult("", f.setErr)
	}
	f.data[key] = value.(string)
	f.ttls[key] = ttl
	return goredis.NewStatusResult("OK", nil)
}

type fakeResolver struct {
	calls int
	coord domain.Coordinate
	err   error
}

func (f *fakeResolver) Resolve(_ context.Context, _ string) (domain.Coordinate, error) {
	f.calls++
	return f.coord, f.err
}

func TestCache_MissThenHit(t *testing.T) {
	rdb := newFakeRedis()
	next := &fakeResolver{coord: domain.Coordinate{Lat: 13.0827, Lng: 80.2707}}
	c := newCache(next, rdb, time.Hour, time.Minute)

	got, err := c.Resolve(context.Background(), "Chennai")
	require.NoError(t, err)
	assert.Equal(t, next.coord, got)
	assert.Equal(t, "[80.2707,13.0827]", rdb.data["geocode:chennai"])
	assert.Equal(t, time.Hour, rdb.ttls["geocode:chennai"])

	got, err = c.Resolve(context.Background(), "  CHENNAI ")
	require.NoError(t, err)
	assert.Equal(t, next.coord, got)
	assert.Equal(t, 1, next.calls)
}

func TestCache_NegativeEntry(t *testing.T) {
	rdb := newFakeRedis()
	next := &fakeResolver{err: domain.ErrPlaceNotFound}
	c := newCache(next, rdb, time.Hour, time.Minute)

	_, err := c.Resolve(context.Background(), "Atlantis")
	assert.ErrorIs(t, err, domain.ErrPlaceNotFound)
	assert.Equal(t, time.Minute, rdb.ttls["geocode:atlantis"])

	_, err = c.Resolve(context.Background(), "atlantis")
	assert.ErrorIs(t, err, domain.ErrPlaceNotFound)
	assert.Equal(t, 1, next.calls)
}

func TestCache_UpstreamFailureNotCached(t *testing.T) {
	rdb := newFakeRedis()
	next := &fakeResolver{err: errors.New("timeout")}
	c := newCache(next, rdb, time.Hour, time.Minute)

	_, err := c.Resolve(context.Background(), "Pune")
	require.Error(t, err)
	assert.Empty(t, rdb.data)
}

func TestCache_RedisDownFallsThrough(t *testing.T) {
	rdb := newFakeRedis()
	rdb.getErr = errors.New("connection refused")
	rdb.setErr = errors.New("connection refused")
	next := &fakeResolver{coord: domain.Coordinate{Lat: 1, Lng: 2}}
	c := newCache(next, rdb, 0, 0)

	got, err := c.Resolve(context.Background(), "Somewhere")
	require.NoError(t, err)
	assert.Equal(t, next.coord, got)
}

func TestCache_MalformedEntryRefetched(t *testing.T) {
	rdb := newFakeRedis()
	rdb.data["geocode:delhi"] = "garbage"
	next := &fakeResolver{coord: domain.Coordinate{Lat: 28.7041, Lng: 77.1025}}
	c := newCache(next, rdb, time.Hour, time.Minute)

	got, err := c.Resolve(context.Background(), "Delhi")
	require.NoError(t, err)
	assert.Equal(t, next.coord, got)
	assert.Equal(t, 1, next.calls)
}
