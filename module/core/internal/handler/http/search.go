package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/nandanugg/carrier-geo/module/core/domain"
)

type rankingService interface {
	Search(ctx context.Context, source string) ([]domain.RankedCarrier, error)
}

type routeService interface {
	Resolve(ctx context.Context, source, destination string) domain.ShipmentRouteEndpoints
}

type searchRequest struct {
	Source string `json:"source"`
}

type rankedCarrierResponse struct {
	ID          string  `json:"id"`
	Location    string  `json:"location"`
	Distance    string  `json:"distance"`
	Time        string  `json:"time"`
	Reliability float64 `json:"reliability"`
	Capacity    float64 `json:"capacity"`
	Located     bool    `json:"located"`
}

type searchResponse struct {
	Carriers []rankedCarrierResponse `json:"carriers"`
}

// SearchHandler serves the shipment-facing lookups: carrier ranking for a
// pickup point and map endpoints for a route.
//
// A carrier parked on a city's table coordinate ranks at 0.0 km for that
// city only while the built-in city table resolves the source. With a
// geocoder configured, its result is the reference point and the same
// carrier shows whatever offset separates the two coordinates.
type SearchHandler struct {
	rankingSvc rankingService
	routeSvc   routeService
}

func NewSearchHandler(rankingSvc rankingService, routeSvc routeService) *SearchHandler {
	return &SearchHandler{rankingSvc: rankingSvc, routeSvc: routeSvc}
}

func (h *SearchHandler) Register(r *gin.RouterGroup) {
	r.POST("/search", h.Search)
	r.GET("/route", h.Route)
}

func (h *SearchHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid search payload"})
		return
	}

	ranked, err := h.rankingSvc.Search(c.Request.Context(), req.Source)
	if err != nil {
		log.WithField("source", req.Source).WithError(err).Error("search carriers")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to rank carriers"})
		return
	}

	resp := searchResponse{Carriers: make([]rankedCarrierResponse, len(ranked))}
	for i, rc := range ranked {
		resp.Carriers[i] = toRankedCarrierResponse(rc)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SearchHandler) Route(c *gin.Context) {
	ep := h.routeSvc.Resolve(c.Request.Context(), c.Query("source"), c.Query("destination"))
	c.JSON(http.StatusOK, ep)
}

func toRankedCarrierResponse(rc domain.RankedCarrier) rankedCarrierResponse {
	return rankedCarrierResponse{
		ID:          rc.CarrierID,
		Location:    rc.BaseLocation,
		Distance:    strconv.FormatFloat(rc.DistanceKm, 'f', 1, 64),
		Time:        rc.Travel,
		Reliability: rc.Reliability,
		Capacity:    rc.Capacity,
		Located:     rc.Located,
	}
}
