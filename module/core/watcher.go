package core

import (
	"context"
	"database/sql"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nandanugg/carrier-geo/module/core/domain"
	"github.com/nandanugg/carrier-geo/module/core/internal/feed"
	feedrabbit "github.com/nandanugg/carrier-geo/module/core/internal/feed/rabbitmq"
	"github.com/nandanugg/carrier-geo/module/core/internal/repository/database/postgres"
	"github.com/nandanugg/carrier-geo/module/core/internal/repository/publisher/rabbitmq"
	"github.com/nandanugg/carrier-geo/module/core/service"
)

// Watcher follows a single carrier's live trail from outside the server,
// binding its own broker queue to that carrier's routing key.
type Watcher struct {
	carrierID string
	relay     *feedrabbit.Relay
	tracking  *service.TrackingService
}

// BuildWatcher rejects ids that would widen the binding key beyond one
// carrier.
func BuildWatcher(db *sql.DB, rabbitURL, carrierID string, snapshotTimeout time.Duration) (*Watcher, error) {
	if !domain.ValidCarrierID(carrierID) {
		return nil, &domain.ValidationError{Fields: []string{"carrier_id"}}
	}
	hub := feed.NewHub(feed.DefaultBuffer, nil)
	return &Watcher{
		carrierID: carrierID,
		relay: feedrabbit.NewRelay(feedrabbit.RelayConfig{
			URL:        rabbitURL,
			BindingKey: rabbitmq.RoutingKey(carrierID),
		}, hub, nil),
		tracking: service.NewTrackingService(postgres.NewPositionRepo(db), hub, snapshotTimeout, nil),
	}, nil
}

// Run calls onSnapshot after every trail change until ctx is cancelled. The
// snapshot is read only once the broker queue is bound, so reports committed
// while connecting reach the trail either way.
func (w *Watcher) Run(ctx context.Context, onSnapshot func(domain.TrackingSnapshot)) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.relay.Run(ctx)
	})
	g.Go(func() error {
		select {
		case <-ctx.Done():
			return nil
		case <-w.relay.Bound():
		}

		tracker, err := w.tracking.Attach(ctx, w.carrierID)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		defer tracker.Close()
		for {
			select {
			case <-ctx.Done():
				return nil
			case _, ok := <-tracker.Changed():
				if !ok {
					return nil
				}
				onSnapshot(tracker.Snapshot())
			}
		}
	})
	return g.Wait()
}
