package core

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gin-gonic/gin"
	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/nandanugg/carrier-geo/module/core/internal/feed"
	feedrabbit "github.com/nandanugg/carrier-geo/module/core/internal/feed/rabbitmq"
	"github.com/nandanugg/carrier-geo/module/core/internal/geocoder"
	georedis "github.com/nandanugg/carrier-geo/module/core/internal/geocoder/redis"
	handler "github.com/nandanugg/carrier-geo/module/core/internal/handler/http"
	"github.com/nandanugg/carrier-geo/module/core/internal/handler/subscriber"
	"github.com/nandanugg/carrier-geo/module/core/internal/metrics"
	"github.com/nandanugg/carrier-geo/module/core/internal/repository/database/postgres"
	"github.com/nandanugg/carrier-geo/module/core/internal/repository/publisher/rabbitmq"
	"github.com/nandanugg/carrier-geo/module/core/service"
)

type Options struct {
	RabbitMQURL string
	// RabbitMQDial replaces the publishing connection after the broker drops
	// it. Nil leaves the publisher on the connection passed to Build.
	RabbitMQDial func() (*amqp.Connection, error)

	// GeocoderURL empty disables the geocoder; ranking then falls back to
	// the built-in city table.
	GeocoderURL     string
	GeocoderToken   string
	GeocoderTimeout time.Duration

	RosterLimit     int
	SnapshotTimeout time.Duration

	// Registerer defaults to the global prometheus registry.
	Registerer prometheus.Registerer
}

type Module struct {
	TelemetrySvc *service.TelemetryService
	RankingSvc   *service.RankingService
	TrackingSvc  *service.TrackingService
	RouteSvc     *service.RouteService

	publisher  *rabbitmq.PositionPublisher
	relay      *feedrabbit.Relay
	handlers   []routeRegistrar
	subscriber *subscriber.TelemetrySubscriber
}

type routeRegistrar interface {
	Register(r *gin.RouterGroup)
}

// Build wires the module. rdb may be nil, in which case geocoder results
// are not cached.
func Build(db *sql.DB, amqpConn *amqp.Connection, mqttClient mqtt.Client, rdb *goredis.Client, opts Options) (*Module, error) {
	m, err := metrics.New(opts.Registerer)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	positionRepo := postgres.NewPositionRepo(db)
	rosterRepo := postgres.NewRosterRepo(db)

	positionPub, err := rabbitmq.NewPositionPublisher(amqpConn, opts.RabbitMQDial)
	if err != nil {
		return nil, fmt.Errorf("position publisher: %w", err)
	}

	hub := feed.NewHub(feed.DefaultBuffer, m)
	relay := feedrabbit.NewRelay(feedrabbit.RelayConfig{URL: opts.RabbitMQURL}, hub, m)

	resolver := newResolver(opts, rdb)

	telemetrySvc := service.NewTelemetryService(positionRepo, positionPub, m)
	rankingSvc := service.NewRankingService(rosterRepo, resolver, opts.RosterLimit, m)
	trackingSvc := service.NewTrackingService(positionRepo, hub, opts.SnapshotTimeout, m)
	routeSvc := service.NewRouteService(resolver)

	return &Module{
		TelemetrySvc: telemetrySvc,
		RankingSvc:   rankingSvc,
		TrackingSvc:  trackingSvc,
		RouteSvc:     routeSvc,
		publisher:    positionPub,
		relay:        relay,
		handlers: []routeRegistrar{
			handler.NewCarrierHandler(telemetrySvc),
			handler.NewSearchHandler(rankingSvc, routeSvc),
			handler.NewTrackHandler(trackingSvc),
		},
		subscriber: subscriber.NewTelemetrySubscriber(mqttClient, telemetrySvc),
	}, nil
}

func newResolver(opts Options, rdb *goredis.Client) geocoder.Resolver {
	if opts.GeocoderURL == "" {
		return nil
	}
	var r geocoder.Resolver = geocoder.NewClient(geocoder.Config{
		BaseURL: opts.GeocoderURL,
		Token:   opts.GeocoderToken,
		Timeout: opts.GeocoderTimeout,
	})
	if rdb != nil {
		r = georedis.NewCache(r, rdb, 0, 0)
	}
	return r
}

func (m *Module) RegisterRoutes(r *gin.RouterGroup) {
	for _, h := range m.handlers {
		h.Register(r)
	}
}

// Broker reports the state of the publishing connection, which may have
// been redialled since Build.
func (m *Module) Broker() interface{ IsClosed() bool } {
	return m.publisher
}

func (m *Module) StartSubscribers() error {
	return m.subscriber.Start()
}

// Close releases the publishing connection, including one redialled after
// Build.
func (m *Module) Close() error {
	return m.publisher.Close()
}

// RunFeed relays broker change events to live trackers until ctx is done.
func (m *Module) RunFeed(ctx context.Context) error {
	return m.relay.Run(ctx)
}
