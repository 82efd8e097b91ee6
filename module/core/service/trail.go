package service

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/nandanugg/carrier-geo/module/core/domain"
	"github.com/nandanugg/carrier-geo/module/core/internal/feed"
)

const TrailCapacity = 100

// Trail is a bounded arrival-ordered buffer of points. Consecutive identical
// points collapse into one and the oldest point is evicted on overflow.
type Trail struct {
	points   []domain.TrailPoint
	capacity int
}

func NewTrail(capacity int) *Trail {
	if capacity <= 0 {
		capacity = TrailCapacity
	}
	return &Trail{points: make([]domain.TrailPoint, 0, capacity), capacity: capacity}
}

// Push reports whether c was appended.
func (t *Trail) Push(c domain.Coordinate) bool {
	if n := len(t.points); n > 0 && t.points[n-1].Coordinate().Equal(c) {
		return false
	}
	if len(t.points) == t.capacity {
		copy(t.points, t.points[1:])
		t.points = t.points[:len(t.points)-1]
	}
	t.points = append(t.points, domain.NewTrailPoint(c))
	return true
}

func (t *Trail) Len() int {
	return len(t.points)
}

func (t *Trail) Points() []domain.TrailPoint {
	out := make([]domain.TrailPoint, len(t.points))
	copy(out, t.points)
	return out
}

func (t *Trail) reset() {
	t.points = nil
}

// Tracker reconstructs one viewer's live trail for one carrier. It is created
// by TrackingService.Attach and must be released with Close.
type Tracker struct {
	carrierID string

	mu      sync.Mutex
	state   domain.TrackingState
	trail   *Trail
	last    *domain.CarrierPosition
	floor   time.Time
	changed chan struct{}

	sub       feed.Subscription
	refresh   func(ctx context.Context) (*domain.CarrierPosition, error)
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	onClose   func()
}

func newTracker(carrierID string) *Tracker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Tracker{
		carrierID: carrierID,
		state:     domain.StateUninitialized,
		trail:     NewTrail(TrailCapacity),
		changed:   make(chan struct{}, 1),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

func (t *Tracker) CarrierID() string {
	return t.carrierID
}

// seed applies the initial snapshot; nil means the carrier has never reported.
func (t *Tracker) seed(pos *domain.CarrierPosition) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != domain.StateUninitialized {
		return
	}
	if pos == nil {
		t.state = domain.StateAwaitingData
		t.notify()
		return
	}
	t.floor = pos.UpdatedAt
	t.apply(*pos)
}

// Apply folds one change event into the trail. Derived fields follow the
// latest event even when its point collapses into the previous one. Events
// older than the last resync snapshot are ignored.
func (t *Tracker) Apply(evt domain.PositionEvent) bool {
	if evt.Kind == domain.PositionResync {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == domain.StateDetached {
		return false
	}
	if !t.floor.IsZero() && evt.Position.UpdatedAt.Before(t.floor) {
		return false
	}
	t.apply(evt.Position)
	return true
}

// apply requires t.mu.
func (t *Tracker) apply(pos domain.CarrierPosition) {
	t.state = domain.StateTracking
	t.trail.Push(pos.Location)
	t.last = &pos
	t.notify()
}

// resync re-reads the store after the feed reported a possible gap.
func (t *Tracker) resync() {
	if t.refresh == nil {
		return
	}

	pos, err := t.refresh(t.ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrPositionNotFound) && t.ctx.Err() == nil {
			log.WithField("carrier_id", t.carrierID).WithError(err).Warn("resync snapshot unavailable")
		}
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == domain.StateDetached {
		return
	}
	t.floor = pos.UpdatedAt
	t.apply(*pos)
}

func (t *Tracker) notify() {
	select {
	case t.changed <- struct{}{}:
	default:
	}
}

// Changed signals after each state change; signals coalesce. It is closed on
// Close.
func (t *Tracker) Changed() <-chan struct{} {
	return t.changed
}

func (t *Tracker) State() domain.TrackingState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Tracker) Snapshot() domain.TrackingSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := domain.TrackingSnapshot{
		CarrierID: t.carrierID,
		State:     t.state,
		Trail:     t.trail.Points(),
	}
	if t.last != nil {
		loc := t.last.Location
		ts := t.last.UpdatedAt
		snap.Current = &loc
		snap.Speed = t.last.Speed
		snap.Heading = t.last.Heading
		snap.Congestion = ClassifyCongestion(t.last.Speed)
		snap.Compass = CompassLabel(t.last.Heading)
		snap.UpdatedAt = &ts
	}
	return snap
}

func (t *Tracker) run() {
	defer close(t.done)
	for evt := range t.sub.Events() {
		if evt.Kind == domain.PositionResync {
			t.resync()
			continue
		}
		t.Apply(evt)
	}
}

// Close detaches the tracker. When it returns the subscription is gone, the
// consume loop has exited, and the trail has been discarded.
func (t *Tracker) Close() {
	t.closeOnce.Do(func() {
		t.cancel()

		t.mu.Lock()
		t.state = domain.StateDetached
		t.trail.reset()
		t.last = nil
		close(t.changed)
		t.mu.Unlock()

		t.sub.Close()
		<-t.done

		if t.onClose != nil {
			t.onClose()
		}
	})
}
