package domain

import "time"

type TrackingState string

const (
	StateUninitialized TrackingState = "uninitialized"
	StateAwaitingData  TrackingState = "awaiting_data"
	StateTracking      TrackingState = "tracking"
	StateDetached      TrackingState = "detached"
)

type Congestion string

const (
	Congested Congestion = "congested"
	Stable    Congestion = "stable"
)

// TrailPoint serialises as [lng, lat], the order map layers expect.
type TrailPoint [2]float64

func NewTrailPoint(c Coordinate) TrailPoint {
	return TrailPoint{c.Lng, c.Lat}
}

func (p TrailPoint) Coordinate() Coordinate {
	return Coordinate{Lat: p[1], Lng: p[0]}
}

type TrackingSnapshot struct {
	CarrierID  string        `json:"carrier_id"`
	State      TrackingState `json:"state"`
	Trail      []TrailPoint  `json:"trail"`
	Current    *Coordinate   `json:"current,omitempty"`
	Speed      float64       `json:"speed"`
	Heading    float64       `json:"heading"`
	Congestion Congestion    `json:"congestion,omitempty"`
	Compass    string        `json:"compass,omitempty"`
	UpdatedAt  *time.Time    `json:"updated_at,omitempty"`
}

// ShipmentRouteEndpoints is advisory map data; either end may be unresolved.
type ShipmentRouteEndpoints struct {
	Source      *Coordinate `json:"source,omitempty"`
	Destination *Coordinate `json:"destination,omitempty"`
}
