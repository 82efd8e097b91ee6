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
	"github.com/nandanugg/carrier-geo/module/core/internal/repository/publisher"
)

var _ publisher.PositionPublisher = (*PositionPublisher)(nil)

const ExchangeName = "fleet.positions"

// RoutingKey scopes a position event to a single carrier.
func RoutingKey(carrierID string) string {
	return "carrier." + carrierID
}

// DeclareExchange is shared by the publisher and the change-feed relay.
func DeclareExchange(ch *amqp.Channel) error {
	return ch.ExchangeDeclare(ExchangeName, "topic", true, false, false, false, nil)
}

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// PositionPublisher publishes on a lazily opened channel. A failed publish
// drops the channel, and the retry reopens it, redialling the broker when the
// connection itself is gone.
type PositionPublisher struct {
	mu   sync.Mutex
	ch   channel
	open func() (channel, error)

	connMu sync.Mutex
	conn   *amqp.Connection
	dial   func() (*amqp.Connection, error)

	retryInterval time.Duration
}

// NewPositionPublisher opens its first channel on conn. dial is used to
// replace conn once the broker has closed it.
func NewPositionPublisher(conn *amqp.Connection, dial func() (*amqp.Connection, error)) (*PositionPublisher, error) {
	p := &PositionPublisher{conn: conn, dial: dial, retryInterval: 200 * time.Millisecond}
	p.open = p.openChannel

	if _, err := p.channel(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *PositionPublisher) openChannel() (channel, error) {
	p.connMu.Lock()
	defer p.connMu.Unlock()

	if p.conn == nil || p.conn.IsClosed() {
		if p.dial == nil {
			return nil, errors.New("rabbitmq connection closed")
		}
		conn, err := p.dial()
		if err != nil {
			return nil, fmt.Errorf("rabbitmq redial: %w", err)
		}
		p.conn = conn
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if err := DeclareExchange(ch); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	closed := ch.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		if amqpErr, ok := <-closed; ok && amqpErr != nil {
			log.WithError(amqpErr).Warn("position channel closed")
		}
		p.invalidate(ch)
	}()
	return ch, nil
}

func (p *PositionPublisher) channel() (channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil {
		ch, err := p.open()
		if err != nil {
			return nil, err
		}
		p.ch = ch
	}
	return p.ch, nil
}

func (p *PositionPublisher) invalidate(ch channel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == ch {
		p.ch = nil
	}
}

// IsClosed reports whether the current broker connection is down.
func (p *PositionPublisher) IsClosed() bool {
	p.connMu.Lock()
	defer p.connMu.Unlock()
	return p.conn == nil || p.conn.IsClosed()
}

func (p *PositionPublisher) Close() error {
	p.connMu.Lock()
	defer p.connMu.Unlock()
	if p.conn == nil || p.conn.IsClosed() {
		return nil
	}
	return p.conn.Close()
}

// PositionMessage is the wire form of a change event: the full updated record.
type PositionMessage struct {
	Kind      domain.PositionEventKind `json:"kind"`
	CarrierID string                   `json:"carrier_id"`
	Latitude  float64                  `json:"latitude"`
	Longitude float64                  `json:"longitude"`
	Speed     float64                  `json:"speed"`
	Heading   float64                  `json:"heading"`
	UpdatedAt int64                    `json:"updated_at"`
}

func EncodeEvent(evt *domain.PositionEvent) PositionMessage {
	p := evt.Position
	return PositionMessage{
		Kind:      evt.Kind,
		CarrierID: p.CarrierID,
		Latitude:  p.Location.Lat,
		Longitude: p.Location.Lng,
		Speed:     p.Speed,
		Heading:   p.Heading,
		UpdatedAt: p.UpdatedAt.UnixMilli(),
	}
}

func (m PositionMessage) Event() domain.PositionEvent {
	return domain.PositionEvent{
		Kind: m.Kind,
		Position: domain.CarrierPosition{
			CarrierID: m.CarrierID,
			Location:  domain.Coordinate{Lat: m.Latitude, Lng: m.Longitude},
			Speed:     m.Speed,
			Heading:   m.Heading,
			UpdatedAt: time.UnixMilli(m.UpdatedAt),
		},
	}
}

func (p *PositionPublisher) PublishPosition(ctx context.Context, evt *domain.PositionEvent) error {
	body, err := json.Marshal(EncodeEvent(evt))
	if err != nil {
		return fmt.Errorf("marshal position: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		Body:         body,
	}
	key := RoutingKey(evt.Position.CarrierID)

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		ch, err := p.channel()
		if err != nil {
			return struct{}{}, err
		}
		if err := ch.PublishWithContext(ctx, ExchangeName, key, false, false, msg); err != nil {
			p.invalidate(ch)
			return struct{}{}, err
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(p.retryInterval)),
		backoff.WithMaxTries(2),
	)
	if err != nil {
		return fmt.Errorf("publish position: %w", err)
	}
	return nil
}
