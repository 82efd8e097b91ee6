package config

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Broker is satisfied by *amqp.Connection and by the reconnecting position
// publisher.
type Broker interface {
	IsClosed() bool
}

type HealthChecker struct {
	db     *sql.DB
	broker Broker
	mqtt   mqtt.Client
	redis  *redis.Client
}

// NewHealthChecker accepts a nil redis client when the geocode cache is off.
func NewHealthChecker(db *sql.DB, broker Broker, mqttClient mqtt.Client, rdb *redis.Client) *HealthChecker {
	return &HealthChecker{db: db, broker: broker, mqtt: mqttClient, redis: rdb}
}

func (h *HealthChecker) Register(r *gin.Engine) {
	r.GET("/healthz", h.Handle)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (h *HealthChecker) Handle(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := gin.H{}

	if err := h.db.PingContext(ctx); err != nil {
		deps["postgres"] = gin.H{"status": "down", "error": err.Error()}
		status = http.StatusServiceUnavailable
	} else {
		deps["postgres"] = gin.H{"status": "up"}
	}

	if h.broker.IsClosed() {
		deps["rabbitmq"] = gin.H{"status": "down", "error": "connection closed"}
		status = http.StatusServiceUnavailable
	} else {
		deps["rabbitmq"] = gin.H{"status": "up"}
	}

	if !h.mqtt.IsConnected() {
		deps["mqtt"] = gin.H{"status": "down", "error": "not connected"}
		status = http.StatusServiceUnavailable
	} else {
		deps["mqtt"] = gin.H{"status": "up"}
	}

	// The cache is optional, so an outage degrades geocoding but does not
	// mark the service unhealthy.
	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			deps["redis"] = gin.H{"status": "down", "error": err.Error()}
		} else {
			deps["redis"] = gin.H{"status": "up"}
		}
	}

	overall := "healthy"
	if status != http.StatusOK {
		overall = "unhealthy"
	}

	c.JSON(status, gin.H{
		"status":       overall,
		"dependencies": deps,
	})
}
