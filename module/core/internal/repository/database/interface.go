package database

import (
	"context"

	"github.com/nandanugg/carrier-geo/module/core/domain"
)

type PositionRepository interface {
	// Upsert overwrites the carrier's record and reports whether it was newly created.
	Upsert(ctx context.Context, pos *domain.CarrierPosition) (inserted bool, err error)
	GetLatest(ctx context.Context, carrierID string) (*domain.CarrierPosition, error)
}

type RosterRepository interface {
	ListRoster(ctx context.Context, limit int) ([]domain.CarrierRosterEntry, error)
}
