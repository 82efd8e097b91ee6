package service

import (
	"fmt"
	"math"

	"github.com/nandanugg/carrier-geo/module/core/domain"
)

const (
	earthRadiusKm = 6371

	// Travel estimates assume a flat average road speed.
	averageSpeedKmh = 60

	congestionThresholdKmh = 25
)

var compassPoints = [8]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// Haversine returns the great-circle distance between a and b in kilometres.
func Haversine(a, b domain.Coordinate) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// EstimateTravel formats distanceKm at the average speed as "Hh Mm".
func EstimateTravel(distanceKm float64) string {
	minutes := int(math.Round(distanceKm / averageSpeedKmh * 60))
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

// ClassifyCongestion treats anything below the threshold as congested; the
// threshold itself is stable.
func ClassifyCongestion(speedKmh float64) domain.Congestion {
	if speedKmh < congestionThresholdKmh {
		return domain.Congested
	}
	return domain.Stable
}

// CompassLabel rounds heading to the nearest of eight 45° sectors.
func CompassLabel(heading float64) string {
	idx := int(math.Round(heading/45)) % len(compassPoints)
	if idx < 0 {
		idx += len(compassPoints)
	}
	return compassPoints[idx]
}
