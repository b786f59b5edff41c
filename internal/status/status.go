// Package status provides a thread-safe status tracker for the crate controller.
// It is written by the control loop and read by HTTP handlers and MQTT system events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/crate-controller/internal/crate"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Variant       string
	PollMs        int64
	DebounceMs    int64
	MoveTimeoutMs int64
	HeartbeatMs   int64
	Broker        string
	HTTPPort      string
	WSBroker      string // Websocket broker URL for browser MQTT (empty = disabled)
}

// Crate is the control loop's view of the prop after a pass.
type Crate struct {
	State           crate.State
	Relays          crate.Relays
	Locked          bool
	OverridePressed bool
	ResetPressed    bool
	Ready           bool      // inputs have established a baseline
	Deadline        time.Time // zero when no move is tracked
	Counts          crate.Counts
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and stays valid after the lock is released.
type Snapshot struct {
	Crate
	LastEvent     *crate.Event
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// DeadlineRemaining returns how long the tracked move has left, or zero.
func (s Snapshot) DeadlineRemaining() time.Duration {
	if s.Deadline.IsZero() || !s.Now.Before(s.Deadline) {
		return 0
	}
	return s.Deadline.Sub(s.Now)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets the crate state.
// Called from runLoop after every tick and command.
func (t *Tracker) Update(c Crate) {
	t.mu.Lock()
	t.snap.Crate = c
	t.mu.Unlock()
}

// RecordEvent remembers the most recent controller event.
func (t *Tracker) RecordEvent(e crate.Event) {
	t.mu.Lock()
	t.snap.LastEvent = &e
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	if s.LastEvent != nil {
		e := *s.LastEvent
		s.LastEvent = &e
	}
	s.Now = time.Now()
	return s
}
