package service

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/nandanugg/carrier-geo/module/core/domain"
)

// RouteService resolves a shipment's free-text endpoints for map display.
type RouteService struct {
	geocoder placeResolver
}

func NewRouteService(geocoder placeResolver) *RouteService {
	return &RouteService{geocoder: geocoder}
}

// Resolve looks both labels up concurrently. Unresolved endpoints are left
// nil; this never fails.
func (s *RouteService) Resolve(ctx context.Context, source, destination string) domain.ShipmentRouteEndpoints {
	var ep domain.ShipmentRouteEndpoints
	if s.geocoder == nil {
		return ep
	}

	var g errgroup.Group
	g.Go(func() error {
		ep.Source = s.resolve(ctx, source)
		return nil
	})
	g.Go(func() error {
		ep.Destination = s.resolve(ctx, destination)
		return nil
	})
	_ = g.Wait()
	return ep
}

func (s *RouteService) resolve(ctx context.Context, place string) *domain.Coordinate {
	if strings.TrimSpace(place) == "" {
		return nil
	}
	coord, err := s.geocoder.Resolve(ctx, place)
	if err != nil {
		log.WithField("place", place).WithError(err).Info("route endpoint unresolved")
		return nil
	}
	return &coord
}
