package domain

import (
	"regexp"
	"time"
)

// Carrier ids become a segment of the broker routing key and the MQTT topic,
// so the wildcard and separator characters of both are excluded.
var carrierIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

func ValidCarrierID(id string) bool {
	return carrierIDPattern.MatchString(id)
}

type Coordinate struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}

// Equal reports exact equality of both components.
func (c Coordinate) Equal(o Coordinate) bool {
	return c.Lat == o.Lat && c.Lng == o.Lng
}

// CarrierPosition is the single latest-known record kept per carrier.
type CarrierPosition struct {
	CarrierID string     `json:"carrier_id"`
	Location  Coordinate `json:"location"`
	Speed     float64    `json:"speed"`
	Heading   float64    `json:"heading"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type TelemetryReport struct {
	CarrierID string
	Lat       float64
	Lng       float64
	Speed     float64
	Heading   float64
	Timestamp time.Time
}

func (r *TelemetryReport) Position() *CarrierPosition {
	return &CarrierPosition{
		CarrierID: r.CarrierID,
		Location:  Coordinate{Lat: r.Lat, Lng: r.Lng},
		Speed:     r.Speed,
		Heading:   r.Heading,
		UpdatedAt: r.Timestamp,
	}
}

type PositionEventKind string

const (
	PositionInserted PositionEventKind = "insert"
	PositionUpdated  PositionEventKind = "update"
	// PositionResync carries no position; the receiver should re-read the
	// store because upstream events may have been lost.
	PositionResync PositionEventKind = "resync"
)

type PositionEvent struct {
	Kind     PositionEventKind `json:"kind"`
	Position CarrierPosition   `json:"position"`
}
