package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/nandanugg/carrier-geo/module/core/domain"
	"github.com/nandanugg/carrier-geo/module/core/internal/metrics"
)

const DefaultRosterLimit = 100

type City struct {
	Name     string
	Location domain.Coordinate
}

// KnownCities is the fallback lookup table, matched in order by
// case-insensitive substring.
var KnownCities = []City{
	{Name: "chennai", Location: domain.Coordinate{Lat: 13.0827, Lng: 80.2707}},
	{Name: "mumbai", Location: domain.Coordinate{Lat: 19.0760, Lng: 72.8777}},
	{Name: "delhi", Location: domain.Coordinate{Lat: 28.7041, Lng: 77.1025}},
	{Name: "bangalore", Location: domain.Coordinate{Lat: 12.9716, Lng: 77.5946}},
	{Name: "bengaluru", Location: domain.Coordinate{Lat: 12.9716, Lng: 77.5946}},
	{Name: "kolkata", Location: domain.Coordinate{Lat: 22.5726, Lng: 88.3639}},
	{Name: "hyderabad", Location: domain.Coordinate{Lat: 17.3850, Lng: 78.4867}},
	{Name: "pune", Location: domain.Coordinate{Lat: 18.5204, Lng: 73.8567}},
}

// DefaultReference is used when the source text matches nothing.
var DefaultReference = domain.Coordinate{Lat: 20.5937, Lng: 78.9629}

type placeResolver interface {
	Resolve(ctx context.Context, place string) (domain.Coordinate, error)
}

type rosterRepository interface {
	ListRoster(ctx context.Context, limit int) ([]domain.CarrierRosterEntry, error)
}

type RankingService struct {
	roster   rosterRepository
	geocoder placeResolver
	limit    int
	metrics  *metrics.Collector
}

// NewRankingService accepts a nil geocoder, in which case only the city
// table is consulted.
func NewRankingService(roster rosterRepository, geocoder placeResolver, limit int, m *metrics.Collector) *RankingService {
	if limit <= 0 {
		limit = DefaultRosterLimit
	}
	return &RankingService{roster: roster, geocoder: geocoder, limit: limit, metrics: m}
}

func LookupCity(text string) (domain.Coordinate, bool) {
	needle := strings.ToLower(text)
	for _, c := range KnownCities {
		if strings.Contains(needle, c.Name) {
			return c.Location, true
		}
	}
	return domain.Coordinate{}, false
}

// ResolveSource never fails: geocoder, then city table, then DefaultReference.
func (s *RankingService) ResolveSource(ctx context.Context, text string) domain.Coordinate {
	if s.geocoder != nil && strings.TrimSpace(text) != "" {
		coord, err := s.geocoder.Resolve(ctx, text)
		if err == nil {
			return coord
		}
		log.WithField("source", text).WithError(err).Debug("geocoder miss, using city table")
	}
	if coord, ok := LookupCity(text); ok {
		return coord
	}
	return DefaultReference
}

func (s *RankingService) Rank(ctx context.Context, sourceText string, roster []domain.CarrierRosterEntry) []domain.RankedCarrier {
	return RankFrom(s.ResolveSource(ctx, sourceText), roster)
}

// Search ranks a capped roster snapshot against source.
func (s *RankingService) Search(ctx context.Context, source string) ([]domain.RankedCarrier, error) {
	defer s.metrics.ObserveSearch(time.Now())

	roster, err := s.roster.ListRoster(ctx, s.limit)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	return s.Rank(ctx, source, roster), nil
}

// RankFrom orders roster by distance from ref. Entries without a coordinate
// are kept with distance 0 and travel "N/A"; ties keep roster order.
func RankFrom(ref domain.Coordinate, roster []domain.CarrierRosterEntry) []domain.RankedCarrier {
	ranked := make([]domain.RankedCarrier, 0, len(roster))
	for _, e := range roster {
		rc := domain.RankedCarrier{
			CarrierID:    e.CarrierID,
			BaseLocation: e.BaseLocation,
			Reliability:  e.Reliability,
			Capacity:     e.Capacity,
			Travel:       "N/A",
		}
		if e.Location != nil {
			rc.Located = true
			rc.DistanceKm = Haversine(ref, *e.Location)
			rc.Travel = EstimateTravel(rc.DistanceKm)
		}
		ranked = append(ranked, rc)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].DistanceKm < ranked[j].DistanceKm
	})
	return ranked
}
