package geocoder

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_BestMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Chennai.json", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "secret", r.URL.Query().Get("access_token"))
		_, _ = w.Write([]byte(`{"features":[{"place_name":"Chennai, India","center":[80.2707,13.0827]}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL + "/", Token: "secret"})
	coord, err := c.Resolve(context.Background(), " Chennai ")
	require.NoError(t, err)
	assert.Equal(t, 13.0827, coord.Lat)
	assert.Equal(t, 80.2707, coord.Lng)
}

func TestResolve_EmptyResult(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"features":[]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.Resolve(context.Background(), "Atlantis")
	assert.True(t, IsNotFound(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "not-found is not retried")
}

func TestResolve_BlankQuery(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://unused"})
	_, err := c.Resolve(context.Background(), "   ")
	assert.True(t, IsNotFound(err))
}

func TestResolve_RetriesOnceOnServerError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"features":[{"center":[72.8777,19.076]}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	coord, err := c.Resolve(context.Background(), "Mumbai")
	require.NoError(t, err)
	assert.Equal(t, 19.076, coord.Lat)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestResolve_GivesUpAfterSecondFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.Resolve(context.Background(), "Pune")
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestResolve_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.Resolve(context.Background(), "Pune")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestResolve_AttemptTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Timeout: 20 * time.Millisecond})
	start := time.Now()
	_, err := c.Resolve(context.Background(), "Delhi")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}
