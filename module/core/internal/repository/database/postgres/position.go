package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/nandanugg/carrier-geo/module/core/domain"
	"github.com/nandanugg/carrier-geo/module/core/internal/repository/database"
)

var _ database.PositionRepository = (*PositionRepo)(nil)

type PositionRepo struct {
	db *sql.DB
}

func NewPositionRepo(db *sql.DB) *PositionRepo {
	return &PositionRepo{db: db}
}

// xmax is zero only for a row created by this statement.
const upsertPosition = `INSERT INTO carrier_positions (carrier_id, latitude, longitude, speed, heading, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (carrier_id) DO UPDATE SET
	latitude = EXCLUDED.latitude,
	longitude = EXCLUDED.longitude,
	speed = EXCLUDED.speed,
	heading = EXCLUDED.heading,
	updated_at = EXCLUDED.updated_at
RETURNING (xmax = 0) AS inserted`

func (r *PositionRepo) Upsert(ctx context.Context, pos *domain.CarrierPosition) (bool, error) {
	var inserted bool
	err := r.db.QueryRowContext(ctx, upsertPosition,
		pos.CarrierID, pos.Location.Lat, pos.Location.Lng, pos.Speed, pos.Heading, pos.UpdatedAt,
	).Scan(&inserted)
	return inserted, err
}

func (r *PositionRepo) GetLatest(ctx context.Context, carrierID string) (*domain.CarrierPosition, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT carrier_id, latitude, longitude, speed, heading, updated_at FROM carrier_positions WHERE carrier_id = $1`,
		carrierID,
	)

	var p domain.CarrierPosition
	err := row.Scan(&p.CarrierID, &p.Location.Lat, &p.Location.Lng, &p.Speed, &p.Heading, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPositionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
