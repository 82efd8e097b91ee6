package subscriber

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/nandanugg/carrier-geo/module/core/domain"
)

const (
	TopicPattern = "/fleet/carrier/+/position"

	reportTimeout = 5 * time.Second
)

type telemetryService interface {
	Report(ctx context.Context, r *domain.TelemetryReport) error
}

type telemetryMessage struct {
	CarrierID string   `json:"carrier_id"`
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
	Speed     *float64 `json:"speed"`
	Heading   *float64 `json:"heading"`
	Timestamp int64    `json:"timestamp"`
}

// TelemetrySubscriber feeds MQTT position reports into the ingest service.
type TelemetrySubscriber struct {
	client       mqtt.Client
	telemetrySvc telemetryService
}

func NewTelemetrySubscriber(client mqtt.Client, telemetrySvc telemetryService) *TelemetrySubscriber {
	return &TelemetrySubscriber{
		client:       client,
		telemetrySvc: telemetrySvc,
	}
}

func (s *TelemetrySubscriber) Start() error {
	token := s.client.Subscribe(TopicPattern, 1, s.handleMessage)
	token.Wait()
	return token.Error()
}

func (s *TelemetrySubscriber) Stop() error {
	token := s.client.Unsubscribe(TopicPattern)
	token.Wait()
	return token.Error()
}

func (s *TelemetrySubscriber) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	logger := log.WithField("topic", msg.Topic())

	var raw telemetryMessage
	if err := json.Unmarshal(msg.Payload(), &raw); err != nil {
		logger.WithError(err).Warn("invalid telemetry message")
		return
	}

	report, err := toReport(msg.Topic(), &raw)
	if err != nil {
		logger.WithError(err).Warn("telemetry rejected")
		return
	}
	logger = logger.WithField("carrier_id", report.CarrierID)

	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()

	err = s.telemetrySvc.Report(ctx, report)
	var verr *domain.ValidationError
	switch {
	case err == nil:
	case errors.As(err, &verr):
		logger.WithField("fields", verr.Fields).Warn("telemetry rejected")
	default:
		logger.WithError(err).Error("report position")
	}
}

// carrierFromTopic extracts <id> from /fleet/carrier/<id>/position.
func carrierFromTopic(topic string) string {
	parts := strings.Split(strings.Trim(topic, "/"), "/")
	if len(parts) != 4 || parts[0] != "fleet" || parts[1] != "carrier" || parts[3] != "position" {
		return ""
	}
	return parts[2]
}

func toReport(topic string, msg *telemetryMessage) (*domain.TelemetryReport, error) {
	carrierID := msg.CarrierID
	topicID := carrierFromTopic(topic)
	switch {
	case carrierID == "":
		carrierID = topicID
	case topicID != "" && topicID != carrierID:
		return nil, fmt.Errorf("carrier_id %q does not match topic %q", carrierID, topic)
	}

	var missing []string
	if carrierID == "" {
		missing = append(missing, "carrier_id")
	}
	if msg.Lat == nil {
		missing = append(missing, "lat")
	}
	if msg.Lng == nil {
		missing = append(missing, "lng")
	}
	if msg.Speed == nil {
		missing = append(missing, "speed")
	}
	if msg.Heading == nil {
		missing = append(missing, "heading")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing %s", strings.Join(missing, ", "))
	}

	r := &domain.TelemetryReport{
		CarrierID: carrierID,
		Lat:       *msg.Lat,
		Lng:       *msg.Lng,
		Speed:     *msg.Speed,
		Heading:   *msg.Heading,
	}
	if msg.Timestamp > 0 {
		r.Timestamp = time.Unix(msg.Timestamp, 0)
	}
	return r, nil
}
