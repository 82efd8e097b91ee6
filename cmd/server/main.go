package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/nandanugg/carrier-geo/config"
	"github.com/nandanugg/carrier-geo/module/core"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := config.ConfigureLogging(cfg); err != nil {
		log.Fatalf("logging: %v", err)
	}

	if err := config.ApplyMigrations(cfg); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	db, err := config.NewPostgres(cfg)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer func() { _ = db.Close() }()

	amqpConn, err := config.NewRabbitMQ(cfg)
	if err != nil {
		log.Fatalf("rabbitmq: %v", err)
	}
	defer func() { _ = amqpConn.Close() }()

	rdb, err := config.NewRedis(cfg)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	// coreModule is assigned before the first connect, so the handler
	// always sees it.
	var coreModule *core.Module
	mqttClient := config.NewMQTT(cfg, func(mqtt.Client) {
		if err := coreModule.StartSubscribers(); err != nil {
			log.WithError(err).Error("subscribe telemetry")
		}
	})

	coreModule, err = core.Build(db, amqpConn, mqttClient, rdb, core.Options{
		RabbitMQURL: cfg.RabbitMQURL,
		RabbitMQDial: func() (*amqp.Connection, error) {
			return config.NewRabbitMQ(cfg)
		},
		GeocoderURL:     cfg.GeocoderURL,
		GeocoderToken:   cfg.GeocoderToken,
		GeocoderTimeout: cfg.GeocoderTimeout,
		RosterLimit:     cfg.RosterLimit,
		SnapshotTimeout: cfg.SnapshotTimeout,
	})
	if err != nil {
		log.Fatalf("core module: %v", err)
	}
	defer func() { _ = coreModule.Close() }()

	if err := config.ConnectMQTT(mqttClient); err != nil {
		log.Fatalf("mqtt: %v", err)
	}
	defer mqttClient.Disconnect(250)

	r := gin.New()
	r.Use(gin.Recovery())

	health := config.NewHealthChecker(db, coreModule.Broker(), mqttClient, rdb)
	health.Register(r)

	coreModule.RegisterRoutes(&r.RouterGroup)

	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: r}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return coreModule.RunFeed(ctx)
	})
	g.Go(func() error {
		log.Infof("listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Errorf("server: %v", err)
	}
	log.Info("shutting down")
}
