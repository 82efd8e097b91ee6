package config

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// NewMQTT returns an unconnected client with auto-reconnect enabled.
// onConnect runs after every successful (re)connect so subscriptions survive
// broker restarts.
func NewMQTT(cfg *Config, onConnect func(mqtt.Client)) mqtt.Client {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientID).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(30 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.WithError(err).Warn("mqtt connection lost")
		})
	if onConnect != nil {
		opts.SetOnConnectHandler(onConnect)
	}
	return mqtt.NewClient(opts)
}

func ConnectMQTT(client mqtt.Client) error {
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return nil
}
