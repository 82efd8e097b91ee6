package postgres

import (
	"context"
	"database/sql"

	"github.com/nandanugg/carrier-geo/module/core/domain"
	"github.com/nandanugg/carrier-geo/module/core/internal/repository/database"
)

var _ database.RosterRepository = (*RosterRepo)(nil)

type RosterRepo struct {
	db *sql.DB
}

func NewRosterRepo(db *sql.DB) *RosterRepo {
	return &RosterRepo{db: db}
}

func (r *RosterRepo) ListRoster(ctx context.Context, limit int) ([]domain.CarrierRosterEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.base_location, c.reliability, c.capacity, p.latitude, p.longitude
FROM carriers c LEFT JOIN carrier_positions p ON p.carrier_id = c.id
ORDER BY c.reliability DESC, c.id LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []domain.CarrierRosterEntry
	for rows.Next() {
		var (
			e        domain.CarrierRosterEntry
			lat, lng sql.NullFloat64
		)
		if err := rows.Scan(&e.CarrierID, &e.BaseLocation, &e.Reliability, &e.Capacity, &lat, &lng); err != nil {
			return nil, err
		}
		if lat.Valid && lng.Valid {
			e.Location = &domain.Coordinate{Lat: lat.Float64, Lng: lng.Float64}
		}
		results = append(results, e)
	}
	return results, rows.Err()
}
