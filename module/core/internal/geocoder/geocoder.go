// Package geocoder resolves free-text place names through an external
// forward-geocoding service.
package geocoder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/nandanugg/carrier-geo/module/core/domain"
)

type Resolver interface {
	Resolve(ctx context.Context, place string) (domain.Coordinate, error)
}

var _ Resolver = (*Client)(nil)

type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client calls a Mapbox-style places endpoint: GET {base}/{query}.json.
// Each attempt is bounded by Timeout and a failed attempt is retried once.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: &http.Client{}}
}

type placesResponse struct {
	Features []struct {
		PlaceName string    `json:"place_name"`
		Center    []float64 `json:"center"`
	} `json:"features"`
}

func (c *Client) Resolve(ctx context.Context, place string) (domain.Coordinate, error) {
	place = strings.TrimSpace(place)
	if place == "" {
		return domain.Coordinate{}, domain.ErrPlaceNotFound
	}

	return backoff.Retry(ctx, func() (domain.Coordinate, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
		return c.lookup(attemptCtx, place)
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(200*time.Millisecond)),
		backoff.WithMaxTries(2),
	)
}

func (c *Client) lookup(ctx context.Context, place string) (domain.Coordinate, error) {
	q := url.Values{}
	q.Set("limit", "1")
	if c.cfg.Token != "" {
		q.Set("access_token", c.cfg.Token)
	}
	endpoint := fmt.Sprintf("%s/%s.json?%s", c.cfg.BaseURL, url.PathEscape(place), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.Coordinate{}, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("geocode %q: %w", place, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 500:
		return domain.Coordinate{}, fmt.Errorf("geocode %q: HTTP %d", place, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return domain.Coordinate{}, backoff.Permanent(fmt.Errorf("geocode %q: HTTP %d", place, resp.StatusCode))
	}

	var body placesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.Coordinate{}, backoff.Permanent(fmt.Errorf("decode geocode response: %w", err))
	}

	if len(body.Features) == 0 || len(body.Features[0].Center) < 2 {
		return domain.Coordinate{}, backoff.Permanent(domain.ErrPlaceNotFound)
	}
	center := body.Features[0].Center
	return domain.Coordinate{Lat: center[1], Lng: center[0]}, nil
}

// IsNotFound reports whether err means the place has no match, as opposed to
// the service being unreachable.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrPlaceNotFound)
}
