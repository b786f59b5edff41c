package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event           string       `json:"event,omitempty"`
	Reason          string       `json:"reason,omitempty"`
	Variant         string       `json:"variant"`
	State           string       `json:"state"`
	Ready           bool         `json:"ready"`
	MoveRemainingMs int64        `json:"move_remaining_ms"`
	Relays          RelaysJSON   `json:"relays"`
	Sensors         SensorsJSON  `json:"sensors"`
	LastEvent       *EventJSON   `json:"last_event,omitempty"`
	UptimeSeconds   int64        `json:"uptime_seconds"`
	StartTime       string       `json:"start_time"`
	Timestamp       string       `json:"timestamp"`
	MQTT            MQTTStatus   `json:"mqtt"`
	Counts          CountsJSON   `json:"event_counts"`
	Network         *NetworkJSON `json:"network,omitempty"`
	Config          ConfigJSON   `json:"config"`
}

// RelaysJSON reports relay levels.
type RelaysJSON struct {
	Forward    bool `json:"forward"`
	Reverse    bool `json:"reverse"`
	DrawerLock bool `json:"drawer_lock"`
	Spare      bool `json:"spare"`
}

// SensorsJSON reports debounced input states.
type SensorsJSON struct {
	Locked          bool `json:"locked"`
	OverridePressed bool `json:"override_pressed"`
	ResetPressed    bool `json:"reset_pressed"`
}

// EventJSON is the JSON representation of the last controller event.
type EventJSON struct {
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Source    string `json:"source"`
	Reason    string `json:"reason,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Opens    int `json:"opens"`
	Closes   int `json:"closes"`
	Stops    int `json:"stops"`
	Denials  int `json:"denials"`
	Timeouts int `json:"timeouts"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Variant       string `json:"variant"`
	PollMs        int64  `json:"poll_ms"`
	DebounceMs    int64  `json:"debounce_ms"`
	MoveTimeoutMs int64  `json:"move_timeout_ms"`
	HeartbeatMs   int64  `json:"heartbeat_ms"`
	Broker        string `json:"broker"`
	HTTPPort      string `json:"http_port"`
	WSBroker      string `json:"ws_broker,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	state := string(snap.State)
	if state == "" {
		state = "UNKNOWN"
	}

	inner := StatusInner{
		Variant:         snap.Config.Variant,
		State:           state,
		Ready:           snap.Ready,
		MoveRemainingMs: snap.DeadlineRemaining().Milliseconds(),
		Relays: RelaysJSON{
			Forward:    snap.Relays.Forward,
			Reverse:    snap.Relays.Reverse,
			DrawerLock: snap.Relays.DrawerLock,
			Spare:      snap.Relays.Spare,
		},
		Sensors: SensorsJSON{
			Locked:          snap.Locked,
			OverridePressed: snap.OverridePressed,
			ResetPressed:    snap.ResetPressed,
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Opens:    snap.Counts.Opens,
			Closes:   snap.Counts.Closes,
			Stops:    snap.Counts.Stops,
			Denials:  snap.Counts.Denials,
			Timeouts: snap.Counts.Timeouts,
		},
		Config: ConfigJSON{
			Variant:       snap.Config.Variant,
			PollMs:        snap.Config.PollMs,
			DebounceMs:    snap.Config.DebounceMs,
			MoveTimeoutMs: snap.Config.MoveTimeoutMs,
			HeartbeatMs:   snap.Config.HeartbeatMs,
			Broker:        snap.Config.Broker,
			HTTPPort:      snap.Config.HTTPPort,
			WSBroker:      snap.Config.WSBroker,
		},
	}

	if e := snap.LastEvent; e != nil {
		inner.LastEvent = &EventJSON{
			Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
			Type:      string(e.Type),
			Source:    string(e.Source),
			Reason:    e.Reason,
		}
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
