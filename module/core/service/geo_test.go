package service

import (
	"math"
	"testing"

	"github.com/nandanugg/carrier-geo/module/core/domain"
)

func TestHaversine(t *testing.T) {
	chennai := domain.Coordinate{Lat: 13.0827, Lng: 80.2707}

	// same point should be 0
	if d := Haversine(chennai, chennai); d != 0 {
		t.Errorf("expected 0, got %f", d)
	}

	// Chennai to Bangalore is roughly 290km as the crow flies
	bangalore := domain.Coordinate{Lat: 12.9716, Lng: 77.5946}
	d := Haversine(chennai, bangalore)
	if d < 280 || d > 300 {
		t.Errorf("expected ~290km, got %f", d)
	}
}

func TestHaversine_Symmetric(t *testing.T) {
	points := []domain.Coordinate{
		{Lat: 0, Lng: 0},
		{Lat: 13.0827, Lng: 80.2707},
		{Lat: -33.8688, Lng: 151.2093},
		{Lat: 89.9, Lng: -179.9},
		{Lat: -45, Lng: 179.99},
	}
	for _, a := range points {
		for _, b := range points {
			if ab, ba := Haversine(a, b), Haversine(b, a); math.Abs(ab-ba) > 1e-9 {
				t.Errorf("distance(%v,%v)=%f but distance(%v,%v)=%f", a, b, ab, b, a, ba)
			}
		}
	}
}

func TestEstimateTravel(t *testing.T) {
	tests := []struct {
		km   float64
		want string
	}{
		{0, "0h 0m"},
		{30, "0h 30m"},
		{60, "1h 0m"},
		{90, "1h 30m"},
		{125.4, "2h 5m"},
		{119.6, "2h 0m"},
	}
	for _, tt := range tests {
		if got := EstimateTravel(tt.km); got != tt.want {
			t.Errorf("EstimateTravel(%v) = %q, want %q", tt.km, got, tt.want)
		}
	}
}

func TestClassifyCongestion(t *testing.T) {
	tests := []struct {
		speed float64
		want  domain.Congestion
	}{
		{0, domain.Congested},
		{24.9, domain.Congested},
		{25.0, domain.Stable},
		{80, domain.Stable},
	}
	for _, tt := range tests {
		if got := ClassifyCongestion(tt.speed); got != tt.want {
			t.Errorf("ClassifyCongestion(%v) = %s, want %s", tt.speed, got, tt.want)
		}
	}
}

func TestCompassLabel(t *testing.T) {
	tests := []struct {
		heading float64
		want    string
	}{
		{0, "N"},
		{22.4, "N"},
		{22.5, "NE"},
		{45, "NE"},
		{90, "E"},
		{135, "SE"},
		{180, "S"},
		{225, "SW"},
		{270, "W"},
		{315, "NW"},
		{337.4, "NW"},
		{337.5, "N"},
		{359.9, "N"},
	}
	for _, tt := range tests {
		if got := CompassLabel(tt.heading); got != tt.want {
			t.Errorf("CompassLabel(%v) = %s, want %s", tt.heading, got, tt.want)
		}
	}
}
