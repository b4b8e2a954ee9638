package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "switcherd"

// Exporter adapts a Collector to the Prometheus collector interface.
// Values are read from the atomic counters at scrape time, so the hot
// paths never touch the Prometheus client.
type Exporter struct {
	c *Collector

	sessionsActive *prometheus.Desc
	sessionsTotal  *prometheus.Desc
	bytesIn        *prometheus.Desc
	bytesOut       *prometheus.Desc
	commands       *prometheus.Desc
	parseErrors    *prometheus.Desc
	broadcasts     *prometheus.Desc
	evictions      *prometheus.Desc
	timeouts       *prometheus.Desc
	restarts       *prometheus.Desc
	deviceReady    *prometheus.Desc
	errors         *prometheus.Desc
	uptime         *prometheus.Desc
}

// NewExporter wraps c.
func NewExporter(c *Collector) *Exporter {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, nil)
	}
	return &Exporter{
		c:              c,
		sessionsActive: desc("sessions_active", "Client sessions currently open."),
		sessionsTotal:  desc("sessions_total", "Client sessions accepted since start."),
		bytesIn:        desc("received_bytes_total", "Bytes read from clients."),
		bytesOut:       desc("sent_bytes_total", "Bytes written to clients."),
		commands:       desc("commands_total", "Commands dispatched to the device."),
		parseErrors:    desc("parse_errors_total", "Command lines rejected as malformed."),
		broadcasts:     desc("broadcasts_total", "Device events fanned out to clients."),
		evictions:      desc("evictions_total", "Sessions dropped because a push failed."),
		timeouts:       desc("idle_timeouts_total", "Sessions closed for inactivity."),
		restarts:       desc("bridge_restarts_total", "Bridge restarts after device loss."),
		deviceReady:    desc("device_ready", "1 while the device connection is up."),
		errors:         desc("errors_total", "Errors recorded."),
		uptime:         desc("uptime_seconds", "Seconds since the process started."),
	}
}

// Describe implements prometheus.Collector.
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		e.sessionsActive, e.sessionsTotal, e.bytesIn, e.bytesOut,
		e.commands, e.parseErrors, e.broadcasts, e.evictions,
		e.timeouts, e.restarts, e.deviceReady, e.errors, e.uptime,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	s := e.c.Snapshot()
	gauge := func(d *prometheus.Desc, v int64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, float64(v))
	}
	counter := func(d *prometheus.Desc, v int64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}

	gauge(e.sessionsActive, s.SessionsActive)
	counter(e.sessionsTotal, s.SessionsTotal)
	counter(e.bytesIn, s.BytesIn)
	counter(e.bytesOut, s.BytesOut)
	counter(e.commands, s.Commands)
	counter(e.parseErrors, s.ParseErrors)
	counter(e.broadcasts, s.Broadcasts)
	counter(e.evictions, s.Evictions)
	counter(e.timeouts, s.Timeouts)
	counter(e.restarts, s.Restarts)
	ready := int64(0)
	if s.DeviceReady {
		ready = 1
	}
	gauge(e.deviceReady, ready)
	counter(e.errors, s.ErrorsTotal)
	gauge(e.uptime, s.UptimeSeconds)
}

// Registry returns a fresh Prometheus registry holding only e.
func (e *Exporter) Registry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(e)
	return reg
}
