// Package metrics holds the Prometheus instruments for ingest, the change
// feed, tracking, and search. A nil *Collector is valid and records nothing.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "carrier_geo"

const (
	ResultAccepted = "accepted"
	ResultInvalid  = "invalid"
	ResultFailed   = "failed"
)

type Collector struct {
	Reports          *prometheus.CounterVec
	EventsPublished  *prometheus.CounterVec
	EventsDispatched prometheus.Counter
	FeedResyncs      prometheus.Counter
	ActiveTrackers   prometheus.Gauge
	RelayReconnects  prometheus.Counter
	SearchDuration   prometheus.Histogram
}

// New registers the collectors against reg, defaulting to the global registry.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		Reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_reports_total",
			Help:      "Telemetry reports received, by result.",
		}, []string{"result"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "position_events_published_total",
			Help:      "Position change events handed to the publisher, by kind.",
		}, []string{"kind"}),
		EventsDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_events_dispatched_total",
			Help:      "Position events delivered to local subscriptions.",
		}),
		FeedResyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_resyncs_total",
			Help:      "Times live viewers were told to re-read the position store.",
		}),
		ActiveTrackers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_trackers",
			Help:      "Trail reconstructors currently attached.",
		}),
		RelayReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_relay_reconnects_total",
			Help:      "Reconnect attempts made by the change-feed relay.",
		}),
		SearchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "proximity_search_duration_seconds",
			Help:      "Latency of proximity searches including roster load.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	for _, col := range []prometheus.Collector{
		c.Reports, c.EventsPublished, c.EventsDispatched, c.FeedResyncs,
		c.ActiveTrackers, c.RelayReconnects, c.SearchDuration,
	} {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}
	return c, nil
}

func (c *Collector) Report(result string) {
	if c == nil {
		return
	}
	c.Reports.WithLabelValues(result).Inc()
}

func (c *Collector) Published(kind string) {
	if c == nil {
		return
	}
	c.EventsPublished.WithLabelValues(kind).Inc()
}

func (c *Collector) Dispatched() {
	if c == nil {
		return
	}
	c.EventsDispatched.Inc()
}

func (c *Collector) Resync() {
	if c == nil {
		return
	}
	c.FeedResyncs.Inc()
}

func (c *Collector) TrackerAttached() {
	if c == nil {
		return
	}
	c.ActiveTrackers.Inc()
}

func (c *Collector) TrackerDetached() {
	if c == nil {
		return
	}
	c.ActiveTrackers.Dec()
}

func (c *Collector) Reconnect() {
	if c == nil {
		return
	}
	c.RelayReconnects.Inc()
}

func (c *Collector) ObserveSearch(start time.Time) {
	if c == nil {
		return
	}
	c.SearchDuration.Observe(time.Since(start).Seconds())
}
