package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nandanugg/carrier-geo/module/core/domain"
)

func TestTrail_CollapsesConsecutiveDuplicates(t *testing.T) {
	tr := NewTrail(TrailCapacity)
	a := domain.Coordinate{Lat: 13.0827, Lng: 80.2707}
	b := domain.Coordinate{Lat: 13.0900, Lng: 80.2800}

	assert.True(t, tr.Push(a))
	assert.False(t, tr.Push(a))
	assert.True(t, tr.Push(b))
	assert.True(t, tr.Push(a), "non-consecutive repeat is a new point")
	assert.Equal(t, 3, tr.Len())
}

func TestTrail_BoundedFIFO(t *testing.T) {
	tr := NewTrail(TrailCapacity)
	at := func(i int) domain.Coordinate { return domain.Coordinate{Lat: float64(i) * 0.001, Lng: 80} }
	for i := 0; i < 250; i++ {
		tr.Push(at(i))
		assert.LessOrEqual(t, tr.Len(), TrailCapacity)
	}

	pts := tr.Points()
	assert.Len(t, pts, TrailCapacity)
	assert.Equal(t, domain.NewTrailPoint(at(150)), pts[0])
	assert.Equal(t, domain.NewTrailPoint(at(249)), pts[len(pts)-1])
}

func TestTrail_PointsIsACopy(t *testing.T) {
	tr := NewTrail(2)
	tr.Push(domain.Coordinate{Lat: 1, Lng: 2})

	pts := tr.Points()
	pts[0][0] = 99

	assert.Equal(t, domain.TrailPoint{2, 1}, tr.Points()[0])
}

func TestTrailPoint_LngLatOrder(t *testing.T) {
	p := domain.NewTrailPoint(domain.Coordinate{Lat: 13.0827, Lng: 80.2707})
	assert.Equal(t, 80.2707, p[0])
	assert.Equal(t, 13.0827, p[1])
	assert.Equal(t, domain.Coordinate{Lat: 13.0827, Lng: 80.2707}, p.Coordinate())
}

func TestTracker_StateMachine(t *testing.T) {
	tk := newTracker("c1")
	assert.Equal(t, domain.StateUninitialized, tk.State())

	tk.seed(nil)
	snap := tk.Snapshot()
	assert.Equal(t, domain.StateAwaitingData, snap.State)
	assert.Empty(t, snap.Trail)
	assert.Nil(t, snap.Current)

	tk.Apply(domain.PositionEvent{Position: domain.CarrierPosition{
		CarrierID: "c1",
		Location:  domain.Coordinate{Lat: 1, Lng: 2},
		Speed:     24.9,
		Heading:   44,
	}})
	snap = tk.Snapshot()
	assert.Equal(t, domain.StateTracking, snap.State)
	assert.Len(t, snap.Trail, 1)
	assert.Equal(t, domain.Congested, snap.Congestion)
	assert.Equal(t, "NE", snap.Compass)
}

func TestTracker_SeedWithSnapshot(t *testing.T) {
	tk := newTracker("c1")
	tk.seed(&domain.CarrierPosition{
		CarrierID: "c1",
		Location:  domain.Coordinate{Lat: 1, Lng: 2},
		Speed:     25,
		Heading:   180,
	})

	snap := tk.Snapshot()
	assert.Equal(t, domain.StateTracking, snap.State)
	assert.Equal(t, []domain.TrailPoint{{2, 1}}, snap.Trail)
	assert.Equal(t, domain.Stable, snap.Congestion)
	assert.Equal(t, "S", snap.Compass)

	// a second seed is ignored
	tk.seed(nil)
	assert.Equal(t, domain.StateTracking, tk.State())
}

func TestTracker_ChangedCoalesces(t *testing.T) {
	tk := newTracker("c1")
	tk.seed(nil)
	for i := 0; i < 5; i++ {
		tk.Apply(domain.PositionEvent{Position: domain.CarrierPosition{Location: domain.Coordinate{Lat: float64(i)}}})
	}
	assert.Len(t, tk.Changed(), 1)
}
