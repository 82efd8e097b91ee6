package main

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

type telemetryMessage struct {
	CarrierID string  `json:"carrier_id"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Speed     float64 `json:"speed"`
	Heading   float64 `json:"heading"`
	Timestamp int64   `json:"timestamp"`
}

// carrier drifts along its heading; speed and heading wander a little on
// every tick.
type carrier struct {
	id      string
	lat     float64
	lng     float64
	speed   float64
	heading float64
}

var depots = []struct {
	prefix   string
	lat, lng float64
}{
	{"TN", 13.0827, 80.2707},
	{"MH", 19.0760, 72.8777},
	{"DL", 28.7041, 77.1025},
	{"KA", 12.9716, 77.5946},
	{"WB", 22.5726, 88.3639},
}

func newCarrier(i int) *carrier {
	d := depots[i%len(depots)]
	return &carrier{
		id:      fmt.Sprintf("%s%02d%c%c%04d", d.prefix, rand.Intn(100), 'A'+rand.Intn(26), 'A'+rand.Intn(26), rand.Intn(10000)),
		lat:     d.lat + (rand.Float64()-0.5)*0.05,
		lng:     d.lng + (rand.Float64()-0.5)*0.05,
		speed:   10 + rand.Float64()*50,
		heading: rand.Float64() * 360,
	}
}

func (c *carrier) step(elapsed time.Duration) {
	c.speed = math.Max(0, math.Min(90, c.speed+(rand.Float64()-0.5)*10))
	c.heading = math.Mod(c.heading+(rand.Float64()-0.5)*30+360, 360)

	km := c.speed * elapsed.Hours()
	rad := c.heading * math.Pi / 180
	c.lat += km / 111.0 * math.Cos(rad)
	c.lng += km / (111.0 * math.Cos(c.lat*math.Pi/180)) * math.Sin(rad)
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <interval_seconds> [carriers]\n", os.Args[0])
		os.Exit(1)
	}

	intervalSec, err := strconv.Atoi(os.Args[1])
	if err != nil || intervalSec <= 0 {
		fmt.Fprintf(os.Stderr, "error: interval must be a positive integer\n")
		os.Exit(1)
	}

	fleetSize := 5
	if len(os.Args) > 2 {
		if fleetSize, err = strconv.Atoi(os.Args[2]); err != nil || fleetSize <= 0 {
			fmt.Fprintf(os.Stderr, "error: carriers must be a positive integer\n")
			os.Exit(1)
		}
	}

	broker := "tcp://localhost:1883"
	if v := os.Getenv("MQTT_BROKER"); v != "" {
		broker = v
	}

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID("carrier-telemetry-simulator")

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalf("mqtt connect: %v", token.Error())
	}
	defer client.Disconnect(250)

	fleet := make([]*carrier, fleetSize)
	ids := make([]string, fleetSize)
	for i := range fleet {
		fleet[i] = newCarrier(i)
		ids[i] = fleet[i].id
	}

	log.Infof("connected to %s, publishing every %ds", broker, intervalSec)
	log.Infof("fleet: %v", ids)

	interval := time.Duration(intervalSec) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		c := fleet[rand.Intn(len(fleet))]
		// a parked carrier repeats its last fix
		if rand.Float64() >= 0.2 {
			c.step(interval)
		}

		msg := telemetryMessage{
			CarrierID: c.id,
			Lat:       c.lat,
			Lng:       c.lng,
			Speed:     c.speed,
			Heading:   c.heading,
			Timestamp: time.Now().Unix(),
		}

		payload, _ := json.Marshal(msg)
		topic := fmt.Sprintf("/fleet/carrier/%s/position", c.id)

		token := client.Publish(topic, 1, false, payload)
		token.Wait()

		log.WithField("topic", topic).Debugf("published %s", payload)
	}
}
