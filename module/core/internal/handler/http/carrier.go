package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/nandanugg/carrier-geo/module/core/domain"
)

type telemetryService interface {
	Report(ctx context.Context, r *domain.TelemetryReport) error
	Latest(ctx context.Context, carrierID string) (*domain.CarrierPosition, error)
}

// Pointer fields so a missing value is distinguishable from zero.
type positionRequest struct {
	Lat       *float64 `json:"lat" binding:"required"`
	Lng       *float64 `json:"lng" binding:"required"`
	Speed     *float64 `json:"speed" binding:"required"`
	Heading   *float64 `json:"heading" binding:"required"`
	Timestamp int64    `json:"timestamp"`
}

type positionResponse struct {
	CarrierID string  `json:"carrier_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Speed     float64 `json:"speed"`
	Heading   float64 `json:"heading"`
	Timestamp int64   `json:"timestamp"`
}

type CarrierHandler struct {
	telemetrySvc telemetryService
}

func NewCarrierHandler(telemetrySvc telemetryService) *CarrierHandler {
	return &CarrierHandler{telemetrySvc: telemetrySvc}
}

func (h *CarrierHandler) Register(r *gin.RouterGroup) {
	r.POST("/carriers/:carrier_id/position", h.ReportPosition)
	r.GET("/carriers/:carrier_id/position", h.GetPosition)
}

func (h *CarrierHandler) ReportPosition(c *gin.Context) {
	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid position payload"})
		return
	}

	report := &domain.TelemetryReport{
		CarrierID: c.Param("carrier_id"),
		Lat:       *req.Lat,
		Lng:       *req.Lng,
		Speed:     *req.Speed,
		Heading:   *req.Heading,
	}
	if req.Timestamp > 0 {
		report.Timestamp = time.Unix(req.Timestamp, 0)
	}

	err := h.telemetrySvc.Report(c.Request.Context(), report)
	var verr *domain.ValidationError
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "fields": verr.Fields})
	default:
		log.WithField("carrier_id", report.CarrierID).WithError(err).Error("report position")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record position"})
	}
}

func (h *CarrierHandler) GetPosition(c *gin.Context) {
	carrierID := c.Param("carrier_id")

	pos, err := h.telemetrySvc.Latest(c.Request.Context(), carrierID)
	if errors.Is(err, domain.ErrPositionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"status": string(domain.StateAwaitingData)})
		return
	}
	if err != nil {
		log.WithField("carrier_id", carrierID).WithError(err).Error("fetch position")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch position"})
		return
	}

	c.JSON(http.StatusOK, toPositionResponse(pos))
}

func toPositionResponse(p *domain.CarrierPosition) positionResponse {
	return positionResponse{
		CarrierID: p.CarrierID,
		Latitude:  p.Location.Lat,
		Longitude: p.Location.Lng,
		Speed:     p.Speed,
		Heading:   p.Heading,
		Timestamp: p.UpdatedAt.Unix(),
	}
}
