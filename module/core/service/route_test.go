package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nandanugg/carrier-geo/module/core/domain"
)

func TestRouteResolve_OmitsUnresolvedEndpoint(t *testing.T) {
	geo := &mockResolver{
		resolveFn: func(_ context.Context, place string) (domain.Coordinate, error) {
			if place == "Chennai" {
				return domain.Coordinate{Lat: 13.0827, Lng: 80.2707}, nil
			}
			return domain.Coordinate{}, domain.ErrPlaceNotFound
		},
	}
	svc := NewRouteService(geo)

	ep := svc.Resolve(context.Background(), "Chennai", "Atlantis")
	require.NotNil(t, ep.Source)
	assert.Equal(t, 13.0827, ep.Source.Lat)
	assert.Nil(t, ep.Destination)
}

func TestRouteResolve_BlankLabelsSkipGeocoder(t *testing.T) {
	geo := &mockResolver{
		resolveFn: func(_ context.Context, _ string) (domain.Coordinate, error) {
			t.Fatal("geocoder should not be called")
			return domain.Coordinate{}, nil
		},
	}
	ep := NewRouteService(geo).Resolve(context.Background(), "", "  ")
	assert.Nil(t, ep.Source)
	assert.Nil(t, ep.Destination)
}

func TestRouteResolve_NoGeocoder(t *testing.T) {
	ep := NewRouteService(nil).Resolve(context.Background(), "Chennai", "Delhi")
	assert.Nil(t, ep.Source)
	assert.Nil(t, ep.Destination)
}
