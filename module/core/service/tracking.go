package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	log "github.com/sirupsen/logrus"

	"github.com/nandanugg/carrier-geo/module/core/domain"
	"github.com/nandanugg/carrier-geo/module/core/internal/feed"
	"github.com/nandanugg/carrier-geo/module/core/internal/metrics"
)

const DefaultSnapshotTimeout = 3 * time.Second

var ErrCarrierIDRequired = errors.New("carrier id required")

type positionReader interface {
	GetLatest(ctx context.Context, carrierID string) (*domain.CarrierPosition, error)
}

type positionFeed interface {
	Subscribe(carrierID string) feed.Subscription
	Subscribers(carrierID string) int
}

type TrackingService struct {
	positions       positionReader
	feed            positionFeed
	snapshotTimeout time.Duration
	metrics         *metrics.Collector
}

func NewTrackingService(positions positionReader, f positionFeed, snapshotTimeout time.Duration, m *metrics.Collector) *TrackingService {
	if snapshotTimeout <= 0 {
		snapshotTimeout = DefaultSnapshotTimeout
	}
	return &TrackingService{positions: positions, feed: f, snapshotTimeout: snapshotTimeout, metrics: m}
}

// Attach subscribes to the carrier's change feed before reading the snapshot
// so no update the feed delivers after the read is missed. Gaps upstream of
// the feed arrive as resync markers, on which the tracker re-reads the
// store. A snapshot that cannot be read leaves the tracker awaiting data
// rather than failing the attach.
func (s *TrackingService) Attach(ctx context.Context, carrierID string) (*Tracker, error) {
	if carrierID == "" {
		return nil, ErrCarrierIDRequired
	}

	t := newTracker(carrierID)
	t.sub = s.feed.Subscribe(carrierID)

	pos, err := s.fetchSnapshot(ctx, carrierID)
	switch {
	case err == nil:
		t.seed(pos)
	case errors.Is(err, domain.ErrPositionNotFound):
		t.seed(nil)
	case ctx.Err() != nil:
		t.cancel()
		t.sub.Close()
		return nil, ctx.Err()
	default:
		log.WithField("carrier_id", carrierID).WithError(err).Warn("snapshot unavailable, awaiting live data")
		t.seed(nil)
	}

	t.refresh = func(ctx context.Context) (*domain.CarrierPosition, error) {
		return s.fetchSnapshot(ctx, carrierID)
	}

	s.metrics.TrackerAttached()
	t.onClose = s.metrics.TrackerDetached
	log.WithFields(log.Fields{
		"carrier_id": carrierID,
		"state":      t.State(),
		"viewers":    s.feed.Subscribers(carrierID),
	}).Debug("tracker attached")
	go t.run()
	return t, nil
}

func (s *TrackingService) fetchSnapshot(ctx context.Context, carrierID string) (*domain.CarrierPosition, error) {
	return backoff.Retry(ctx, func() (*domain.CarrierPosition, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, s.snapshotTimeout)
		defer cancel()

		pos, err := s.positions.GetLatest(attemptCtx, carrierID)
		if errors.Is(err, domain.ErrPositionNotFound) {
			return nil, backoff.Permanent(err)
		}
		return pos, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(100*time.Millisecond)),
		backoff.WithMaxTries(2),
	)
}
