// Package metrics provides lightweight, lock-free counters and gauges
// for tracking runtime statistics of the switcher bridge.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics for one switcherd process.  It
// survives bridge restarts, so totals cover the whole process lifetime.
// A nil Collector is safe to use; all methods become no-ops.
type Collector struct {
	sessionsActive atomic.Int64
	sessionsTotal  atomic.Int64
	bytesIn        atomic.Int64
	bytesOut       atomic.Int64
	commands       atomic.Int64
	parseErrors    atomic.Int64
	broadcasts     atomic.Int64
	evictions      atomic.Int64
	timeouts       atomic.Int64
	restarts       atomic.Int64
	deviceReady    atomic.Bool
	errorsTotal    atomic.Int64

	mu              sync.RWMutex
	startTime       time.Time
	lastHealthCheck time.Time
	lastError       time.Time
	lastErrorMsg    string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Session metrics ──────────────────────────────────────────────────

// SessionOpened increments both the active and total counters.
func (c *Collector) SessionOpened() {
	if c == nil {
		return
	}
	c.sessionsActive.Add(1)
	c.sessionsTotal.Add(1)
}

// SessionClosed decrements the active session counter.
func (c *Collector) SessionClosed() {
	if c == nil {
		return
	}
	c.sessionsActive.Add(-1)
}

// SessionTimedOut records an idle-timeout close.
func (c *Collector) SessionTimedOut() {
	if c == nil {
		return
	}
	c.timeouts.Add(1)
}

// ActiveSessions returns the current number of open client sessions.
func (c *Collector) ActiveSessions() int64 {
	if c == nil {
		return 0
	}
	return c.sessionsActive.Load()
}

// TotalSessions returns the lifetime session count.
func (c *Collector) TotalSessions() int64 {
	if c == nil {
		return 0
	}
	return c.sessionsTotal.Load()
}

// ── I/O metrics ──────────────────────────────────────────────────────

// BytesReceived records n bytes read from clients.
func (c *Collector) BytesReceived(n int64) {
	if c == nil {
		return
	}
	c.bytesIn.Add(n)
}

// BytesSent records n bytes written to clients.
func (c *Collector) BytesSent(n int64) {
	if c == nil {
		return
	}
	c.bytesOut.Add(n)
}

// TotalBytesIn returns total bytes received.
func (c *Collector) TotalBytesIn() int64 {
	if c == nil {
		return 0
	}
	return c.bytesIn.Load()
}

// TotalBytesOut returns total bytes sent.
func (c *Collector) TotalBytesOut() int64 {
	if c == nil {
		return 0
	}
	return c.bytesOut.Load()
}

// ── Dispatch metrics ─────────────────────────────────────────────────

// CommandDispatched records one recognised command.
func (c *Collector) CommandDispatched() {
	if c == nil {
		return
	}
	c.commands.Add(1)
}

// ParseFailed records one rejected command line.
func (c *Collector) ParseFailed() {
	if c == nil {
		return
	}
	c.parseErrors.Add(1)
}

// Commands returns the number of dispatched commands.
func (c *Collector) Commands() int64 {
	if c == nil {
		return 0
	}
	return c.commands.Load()
}

// ParseErrors returns the number of rejected command lines.
func (c *Collector) ParseErrors() int64 {
	if c == nil {
		return 0
	}
	return c.parseErrors.Load()
}

// ── Broadcast metrics ────────────────────────────────────────────────

// Broadcast records one fan-out of a device event.
func (c *Collector) Broadcast() {
	if c == nil {
		return
	}
	c.broadcasts.Add(1)
}

// SessionEvicted records a session dropped because a push failed.
func (c *Collector) SessionEvicted() {
	if c == nil {
		return
	}
	c.evictions.Add(1)
}

// Evictions returns the number of sessions dropped during broadcast.
func (c *Collector) Evictions() int64 {
	if c == nil {
		return 0
	}
	return c.evictions.Load()
}

// ── Device metrics ───────────────────────────────────────────────────

// DeviceReady flips the device-connected gauge.
func (c *Collector) DeviceReady(ready bool) {
	if c == nil {
		return
	}
	c.deviceReady.Store(ready)
}

// BridgeRestarted records a supervised restart after device loss.
func (c *Collector) BridgeRestarted() {
	if c == nil {
		return
	}
	c.restarts.Add(1)
}

// Restarts returns the total bridge restart count.
func (c *Collector) Restarts() int64 {
	if c == nil {
		return 0
	}
	return c.restarts.Load()
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Health ───────────────────────────────────────────────────────────

// RecordHealthCheck updates the last health check timestamp.
func (c *Collector) RecordHealthCheck() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.lastHealthCheck = time.Now()
	c.mu.Unlock()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime           string `json:"uptime"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
	DeviceReady      bool   `json:"device_ready"`
	SessionsActive   int64  `json:"sessions_active"`
	SessionsTotal    int64  `json:"sessions_total"`
	BytesIn          int64  `json:"bytes_in"`
	BytesOut         int64  `json:"bytes_out"`
	Commands         int64  `json:"commands"`
	ParseErrors      int64  `json:"parse_errors"`
	Broadcasts       int64  `json:"broadcasts"`
	Evictions        int64  `json:"evictions"`
	Timeouts         int64  `json:"timeouts"`
	Restarts         int64  `json:"restarts"`
	ErrorsTotal      int64  `json:"errors_total"`
	LastHealthCheck  string `json:"last_health_check,omitempty"`
	LastError        string `json:"last_error,omitempty"`
	LastErrorMessage string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	up := time.Since(c.startTime)
	s := Snapshot{
		Uptime:         up.Truncate(time.Second).String(),
		UptimeSeconds:  int64(up / time.Second),
		DeviceReady:    c.deviceReady.Load(),
		SessionsActive: c.sessionsActive.Load(),
		SessionsTotal:  c.sessionsTotal.Load(),
		BytesIn:        c.bytesIn.Load(),
		BytesOut:       c.bytesOut.Load(),
		Commands:       c.commands.Load(),
		ParseErrors:    c.parseErrors.Load(),
		Broadcasts:     c.broadcasts.Load(),
		Evictions:      c.evictions.Load(),
		Timeouts:       c.timeouts.Load(),
		Restarts:       c.restarts.Load(),
		ErrorsTotal:    c.errorsTotal.Load(),
	}
	if !c.lastHealthCheck.IsZero() {
		s.LastHealthCheck = c.lastHealthCheck.Format(time.RFC3339)
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
