package domain

// CarrierRosterEntry is a read-only ranking input owned by the carrier profile store.
type CarrierRosterEntry struct {
	CarrierID    string
	BaseLocation string
	Location     *Coordinate
	Reliability  float64
	Capacity     float64
}

type RankedCarrier struct {
	CarrierID    string
	BaseLocation string
	DistanceKm   float64
	// Located is false when the roster entry had no coordinate; DistanceKm is
	// then 0 and Travel is "N/A".
	Located     bool
	Travel      string
	Reliability float64
	Capacity    float64
}
