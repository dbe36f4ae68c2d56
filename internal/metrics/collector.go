package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// JobStats provides the collector access to live service state.
type JobStats interface {
	InFlight() int64
}

// ConnState reports whether the event publisher is connected.
type ConnState interface {
	IsConnected() bool
}

// Collector implements prometheus.Collector to read live gauges at scrape time.
type Collector struct {
	jobs JobStats
	mqtt ConnState

	inFlight      *prometheus.Desc
	mqttConnected *prometheus.Desc
}

// NewCollector creates a collector that reads live state at scrape time.
// Either argument may be nil (metrics will report 0).
func NewCollector(jobs JobStats, mqtt ConnState) *Collector {
	return &Collector{
		jobs: jobs,
		mqtt: mqtt,
		inFlight: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "jobs_in_flight"),
			"Transcription requests currently running.",
			nil, nil,
		),
		mqttConnected: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "mqtt", "connected"),
			"1 if the event publisher is connected to its broker.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.inFlight
	ch <- c.mqttConnected
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	var inFlight, connected float64
	if c.jobs != nil {
		inFlight = float64(c.jobs.InFlight())
	}
	if c.mqtt != nil && c.mqtt.IsConnected() {
		connected = 1
	}
	ch <- prometheus.MustNewConstMetric(c.inFlight, prometheus.GaugeValue, inFlight)
	ch <- prometheus.MustNewConstMetric(c.mqttConnected, prometheus.GaugeValue, connected)
}
