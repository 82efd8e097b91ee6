package config

import (
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// NewRabbitMQ opens the publishing connection. The change-feed relay dials
// its own connection so a consumer stall cannot block publishes.
func NewRabbitMQ(cfg *Config) (*amqp.Connection, error) {
	props := amqp.NewConnectionProperties()
	props.SetClientConnectionName(cfg.MQTTClientID + "-publisher")

	conn, err := amqp.DialConfig(cfg.RabbitMQURL, amqp.Config{
		Heartbeat:  10 * time.Second,
		Properties: props,
	})
	if err != nil {
		return nil, fmt.Errorf("rabbitmq connect: %w", err)
	}
	return conn, nil
}
