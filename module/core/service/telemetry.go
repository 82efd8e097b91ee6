package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/nandanugg/carrier-geo/module/core/domain"
	"github.com/nandanugg/carrier-geo/module/core/internal/metrics"
	"github.com/nandanugg/carrier-geo/module/core/internal/repository/database"
	"github.com/nandanugg/carrier-geo/module/core/internal/repository/publisher"
)

type reportRules struct {
	CarrierID string  `json:"carrier_id" validate:"required,max=64,carrierid"`
	Lat       float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng       float64 `json:"lng" validate:"gte=-180,lte=180"`
	Speed     float64 `json:"speed" validate:"gte=0"`
	Heading   float64 `json:"heading" validate:"gte=0,lt=360"`
}

var reportValidator = newReportValidator()

func newReportValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("carrierid", func(fl validator.FieldLevel) bool {
		return domain.ValidCarrierID(fl.Field().String())
	})
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})
	return v
}

// ValidateReport rejects out-of-range telemetry instead of clamping it.
func ValidateReport(r *domain.TelemetryReport) error {
	err := reportValidator.Struct(reportRules{
		CarrierID: r.CarrierID,
		Lat:       r.Lat,
		Lng:       r.Lng,
		Speed:     r.Speed,
		Heading:   r.Heading,
	})
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	ve := &domain.ValidationError{}
	for _, fe := range verrs {
		ve.Fields = append(ve.Fields, fe.Field())
	}
	return ve
}

type TelemetryService struct {
	repo      database.PositionRepository
	publisher publisher.PositionPublisher
	metrics   *metrics.Collector
	now       func() time.Time
}

func NewTelemetryService(repo database.PositionRepository, pub publisher.PositionPublisher, m *metrics.Collector) *TelemetryService {
	return &TelemetryService{repo: repo, publisher: pub, metrics: m, now: time.Now}
}

// Report overwrites the carrier's position and publishes the change. A
// publish failure is returned but the stored position stands.
func (s *TelemetryService) Report(ctx context.Context, r *domain.TelemetryReport) error {
	if err := ValidateReport(r); err != nil {
		s.metrics.Report(metrics.ResultInvalid)
		return err
	}

	pos := r.Position()
	if pos.UpdatedAt.IsZero() {
		pos.UpdatedAt = s.now()
	}

	inserted, err := s.repo.Upsert(ctx, pos)
	if err != nil {
		s.metrics.Report(metrics.ResultFailed)
		return fmt.Errorf("upsert position: %w", err)
	}

	evt := &domain.PositionEvent{Kind: domain.PositionUpdated, Position: *pos}
	if inserted {
		evt.Kind = domain.PositionInserted
	}

	if err := s.publisher.PublishPosition(ctx, evt); err != nil {
		s.metrics.Report(metrics.ResultFailed)
		return fmt.Errorf("publish position: %w", err)
	}

	s.metrics.Report(metrics.ResultAccepted)
	s.metrics.Published(string(evt.Kind))
	return nil
}

func (s *TelemetryService) Latest(ctx context.Context, carrierID string) (*domain.CarrierPosition, error) {
	return s.repo.GetLatest(ctx, carrierID)
}
