// Package feed fans position change events out to per-carrier subscriptions.
package feed

import (
	"context"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/nandanugg/carrier-geo/module/core/domain"
	"github.com/nandanugg/carrier-geo/module/core/internal/metrics"
	"github.com/nandanugg/carrier-geo/module/core/internal/repository/publisher"
)

const (
	DefaultBuffer = 64

	// backlogWarn is the queued-event count past which a slow subscriber is
	// logged. Nothing is dropped.
	backlogWarn = 1024
)

var _ publisher.PositionPublisher = (*Hub)(nil)

// Subscription is a handle on the events for one carrier. Events is closed
// once Close returns.
type Subscription interface {
	ID() string
	CarrierID() string
	Events() <-chan domain.PositionEvent
	Close()
}

type Hub struct {
	mu      sync.RWMutex
	subs    map[string]map[string]*subscription
	buffer  int
	metrics *metrics.Collector
}

// NewHub sizes each subscription's delivery channel to buffer. Events beyond
// that wait in an unbounded per-subscription queue.
func NewHub(buffer int, m *metrics.Collector) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		subs:    make(map[string]map[string]*subscription),
		buffer:  buffer,
		metrics: m,
	}
}

func (h *Hub) Subscribe(carrierID string) Subscription {
	s := &subscription{
		id:        uuid.NewString(),
		carrierID: carrierID,
		events:    make(chan domain.PositionEvent, h.buffer),
		wake:      make(chan struct{}, 1),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		hub:       h,
	}
	go s.pump()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[carrierID] == nil {
		h.subs[carrierID] = make(map[string]*subscription)
	}
	h.subs[carrierID][s.id] = s
	return s
}

// Dispatch queues evt for every subscription of its carrier without
// blocking. Each subscription sees events in dispatch order.
func (h *Hub) Dispatch(evt domain.PositionEvent) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, s := range h.subs[evt.Position.CarrierID] {
		s.enqueue(evt)
		h.metrics.Dispatched()
	}
	return len(h.subs[evt.Position.CarrierID])
}

// Resync queues a resync marker for every live subscription. It is called
// when the upstream feed may have lost events, so viewers re-read the store.
func (h *Hub) Resync() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for carrierID, subs := range h.subs {
		evt := domain.PositionEvent{
			Kind:     domain.PositionResync,
			Position: domain.CarrierPosition{CarrierID: carrierID},
		}
		for _, s := range subs {
			s.enqueue(evt)
			n++
		}
	}
	h.metrics.Resync()
	return n
}

// PublishPosition lets the hub stand in for a broker when ingest and viewers
// share a process.
func (h *Hub) PublishPosition(_ context.Context, evt *domain.PositionEvent) error {
	h.Dispatch(*evt)
	return nil
}

func (h *Hub) Subscribers(carrierID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[carrierID])
}

func (h *Hub) remove(s *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.subs[s.carrierID]; ok {
		delete(subs, s.id)
		if len(subs) == 0 {
			delete(h.subs, s.carrierID)
		}
	}
}

type subscription struct {
	id        string
	carrierID string
	events    chan domain.PositionEvent
	hub       *Hub
	once      sync.Once

	mu      sync.Mutex
	pending []domain.PositionEvent
	warned  bool
	wake    chan struct{}
	quit    chan struct{}
	done    chan struct{}
}

func (s *subscription) ID() string                          { return s.id }
func (s *subscription) CarrierID() string                   { return s.carrierID }
func (s *subscription) Events() <-chan domain.PositionEvent { return s.events }

// Close unsubscribes, stops the pump and closes Events. Queued events that
// were not yet delivered are discarded.
func (s *subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
		close(s.quit)
		<-s.done
	})
}

func (s *subscription) enqueue(evt domain.PositionEvent) {
	s.mu.Lock()
	s.pending = append(s.pending, evt)
	backlog := len(s.pending)
	warn := backlog >= backlogWarn && !s.warned
	if warn {
		s.warned = true
	}
	s.mu.Unlock()

	if warn {
		log.WithFields(log.Fields{
			"carrier_id":      s.carrierID,
			"subscription_id": s.id,
			"backlog":         backlog,
		}).Warn("subscriber falling behind")
	}

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// pump moves queued events into the delivery channel in order.
func (s *subscription) pump() {
	defer close(s.done)
	defer close(s.events)

	for {
		s.mu.Lock()
		batch := s.pending
		s.pending = nil
		s.warned = false
		s.mu.Unlock()

		for _, evt := range batch {
			select {
			case s.events <- evt:
			case <-s.quit:
				return
			}
		}

		select {
		case <-s.wake:
		case <-s.quit:
			return
		}
	}
}
