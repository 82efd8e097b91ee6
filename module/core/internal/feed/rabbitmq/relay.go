package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"

	"github.com/nandanugg/carrier-geo/module/core/domain"
	"github.com/nandanugg/carrier-geo/module/core/internal/metrics"
	pub "github.com/nandanugg/carrier-geo/module/core/internal/repository/publisher/rabbitmq"
)

// AllCarriers binds the relay to every carrier's events.
const AllCarriers = "carrier.#"

type dispatcher interface {
	Dispatch(evt domain.PositionEvent) int
	Resync() int
}

type RelayConfig struct {
	URL        string
	BindingKey string
	// Reconnect backoff bounds.
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Relay consumes position events from the broker into a local dispatcher and
// reconnects with exponential backoff whenever the connection drops. The
// queue does not outlive a connection, so every new binding asks the
// dispatcher to resync its viewers.
type Relay struct {
	cfg       RelayConfig
	hub       dispatcher
	metrics   *metrics.Collector
	dial      func(url string) (*amqp.Connection, error)
	boundCh   chan struct{}
	boundOnce sync.Once
}

func NewRelay(cfg RelayConfig, hub dispatcher, m *metrics.Collector) *Relay {
	if cfg.BindingKey == "" {
		cfg.BindingKey = AllCarriers
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 30 * time.Second
	}
	return &Relay{cfg: cfg, hub: hub, metrics: m, dial: amqp.Dial, boundCh: make(chan struct{})}
}

// Bound is closed once the first queue binding is consuming.
func (r *Relay) Bound() <-chan struct{} {
	return r.boundCh
}

func (r *Relay) bound() {
	r.boundOnce.Do(func() { close(r.boundCh) })
	n := r.hub.Resync()
	log.WithFields(log.Fields{
		"binding_key":   r.cfg.BindingKey,
		"subscriptions": n,
	}).Info("change feed connected")
}

// Run blocks until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.InitialInterval
	b.MaxInterval = r.cfg.MaxInterval

	for {
		connected, err := r.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			b.Reset()
		}

		wait := b.NextBackOff()
		r.metrics.Reconnect()
		log.WithFields(log.Fields{
			"binding_key": r.cfg.BindingKey,
			"retry_in":    wait,
		}).WithError(err).Warn("change feed disconnected")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (r *Relay) session(ctx context.Context) (bool, error) {
	conn, err := r.dial(r.cfg.URL)
	if err != nil {
		return false, fmt.Errorf("rabbitmq connect: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return false, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := pub.DeclareExchange(ch); err != nil {
		return false, fmt.Errorf("declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return false, fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, r.cfg.BindingKey, pub.ExchangeName, false, nil); err != nil {
		return false, fmt.Errorf("bind queue: %w", err)
	}

	msgs, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return false, fmt.Errorf("consume: %w", err)
	}

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	r.bound()

	for {
		select {
		case <-ctx.Done():
			return true, nil
		case amqpErr := <-closed:
			if amqpErr == nil {
				return true, errors.New("connection closed")
			}
			return true, amqpErr
		case msg, ok := <-msgs:
			if !ok {
				return true, errors.New("delivery channel closed")
			}
			r.handle(msg.Body)
		}
	}
}

func (r *Relay) handle(body []byte) {
	var msg pub.PositionMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		log.WithError(err).Warn("invalid position event")
		return
	}
	if msg.CarrierID == "" {
		log.Warn("position event without carrier_id")
		return
	}
	r.hub.Dispatch(msg.Event())
}
