// Package mqtt provides MQTT publishing and command intake with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/sweeney/crate-controller/internal/crate"
)

// Topic is the MQTT topic for crate controller events.
const Topic = "escape/crate/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "escape/crate/system"

// TopicCommand carries command paths from the game master console.
const TopicCommand = "escape/crate/command"

// TopicReply carries the outcome of each command received on TopicCommand.
const TopicReply = "escape/crate/reply"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a crate event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event crate.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// CommandFunc runs a command path and returns the response body.
type CommandFunc func(path string) (string, error)

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Crate CratePayload `json:"crate"`
}

// CratePayload contains the controller event details.
type CratePayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	State     string `json:"state"`
	Source    string `json:"source"`
	Reason    string `json:"reason,omitempty"`
}

// FormatPayload creates the JSON payload for a crate event.
func FormatPayload(event crate.Event) ([]byte, error) {
	payload := Payload{
		Crate: CratePayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(event.Type),
			State:     string(event.State),
			Source:    string(event.Source),
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// ReplyPayload is published on TopicReply after a command has been handled.
type ReplyPayload struct {
	Reply ReplyInner `json:"reply"`
}

// ReplyInner contains the command outcome. Body is the HTTP body with the
// trailing blank line removed.
type ReplyInner struct {
	Timestamp string `json:"timestamp"`
	Path      string `json:"path"`
	OK        bool   `json:"ok"`
	Body      string `json:"body,omitempty"`
	Error     string `json:"error,omitempty"`
}

// FormatReply creates the JSON payload for a command reply.
func FormatReply(now time.Time, path, body string, err error) ([]byte, error) {
	inner := ReplyInner{
		Timestamp: now.UTC().Format(time.RFC3339),
		Path:      path,
		OK:        err == nil,
		Body:      strings.TrimRight(body, "\r\n"),
	}
	if err != nil {
		inner.Error = err.Error()
	}
	return json.Marshal(ReplyPayload{Reply: inner})
}

// ParseCommand extracts the command path from a TopicCommand payload.
// Surrounding whitespace is ignored; an empty payload yields "".
func ParseCommand(payload []byte) string {
	return strings.TrimSpace(string(payload))
}
