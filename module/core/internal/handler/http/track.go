package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/nandanugg/carrier-geo/module/core/service"
)

const writeWait = 10 * time.Second

type trackingService interface {
	Attach(ctx context.Context, carrierID string) (*service.Tracker, error)
}

// TrackHandler streams a carrier's live trail to a WebSocket viewer. Each
// connection owns one tracker; closing the socket detaches it.
type TrackHandler struct {
	trackingSvc trackingService
	upgrader    websocket.Upgrader
}

func NewTrackHandler(trackingSvc trackingService) *TrackHandler {
	return &TrackHandler{
		trackingSvc: trackingSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(*http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

func (h *TrackHandler) Register(r *gin.RouterGroup) {
	r.GET("/carriers/:carrier_id/track", h.Track)
}

func (h *TrackHandler) Track(c *gin.Context) {
	carrierID := c.Param("carrier_id")
	logger := log.WithFields(log.Fields{"carrier_id": carrierID, "viewer_id": uuid.NewString()})

	tracker, err := h.trackingSvc.Attach(c.Request.Context(), carrierID)
	if err != nil {
		logger.WithError(err).Error("attach tracker")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to attach tracker"})
		return
	}
	defer tracker.Close()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.WithError(err).Warn("websocket upgrade")
		return
	}
	defer func() { _ = conn.Close() }()

	logger.Info("viewer attached")
	defer logger.Info("viewer detached")

	// Inbound frames are ignored; the read loop only detects disconnects.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case _, ok := <-tracker.Changed():
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(tracker.Snapshot()); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.WithError(err).Warn("write snapshot")
				}
				return
			}
		}
	}
}
