package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/nandanugg/carrier-geo/config"
	"github.com/nandanugg/carrier-geo/module/core"
	"github.com/nandanugg/carrier-geo/module/core/domain"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <carrier_id>\n", os.Args[0])
		os.Exit(1)
	}
	carrierID := os.Args[1]
	if !domain.ValidCarrierID(carrierID) {
		fmt.Fprintf(os.Stderr, "invalid carrier_id %q: use letters, digits, '-' or '_'\n", carrierID)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := config.ConfigureLogging(cfg); err != nil {
		log.Fatalf("logging: %v", err)
	}

	db, err := config.NewPostgres(cfg)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer func() { _ = db.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.WithField("carrier_id", carrierID).Info("watching trail")

	w, err := core.BuildWatcher(db, cfg.RabbitMQURL, carrierID, cfg.SnapshotTimeout)
	if err != nil {
		log.Fatalf("watcher: %v", err)
	}
	err = w.Run(ctx, func(snap domain.TrackingSnapshot) {
		out, _ := json.Marshal(snap)
		fmt.Printf("[%s] %d points %s\n", snap.State, len(snap.Trail), out)
	})
	if err != nil {
		log.Fatalf("watch: %v", err)
	}

	log.Info("shutting down")
}
