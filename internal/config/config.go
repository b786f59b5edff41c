// Package config loads crate controller settings from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/crate-controller/internal/crate"
	"github.com/sweeney/crate-controller/internal/gpio"
)

// ErrInvalid is wrapped by every error Validate returns.
var ErrInvalid = errors.New("invalid config")

// MDNS controls the service advertisement.
type MDNS struct {
	Enabled  bool   `yaml:"enabled"`
	Instance string `yaml:"instance"`
}

// Config is the full daemon configuration. Durations are Go duration strings
// ("20ms", "15s").
type Config struct {
	Variant     string        `yaml:"variant"`
	Chip        string        `yaml:"chip"`
	Pins        gpio.Pins     `yaml:"pins"`
	Poll        time.Duration `yaml:"poll"`
	Debounce    time.Duration `yaml:"debounce"`
	MoveTimeout time.Duration `yaml:"move_timeout"`
	Broker      string        `yaml:"broker"`
	Heartbeat   time.Duration `yaml:"heartbeat"`
	HTTP        string        `yaml:"http"`
	MDNS        MDNS          `yaml:"mdns"`
	Journal     string        `yaml:"journal"` // empty disables the journal
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Variant:     string(crate.VariantStop),
		Chip:        "gpiochip0",
		Pins:        gpio.DefaultPins(),
		Poll:        20 * time.Millisecond,
		Debounce:    50 * time.Millisecond,
		MoveTimeout: crate.DefaultMoveTimeout,
		Broker:      "tcp://localhost:1883",
		Heartbeat:   15 * time.Minute,
		HTTP:        ":80",
		MDNS:        MDNS{Enabled: true, Instance: "crate-controller"},
	}
}

// Load reads path over the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration is usable.
func (c Config) Validate() error {
	if _, err := crate.ParseVariant(c.Variant); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.Poll <= 0 {
		return fmt.Errorf("%w: poll must be positive, got %v", ErrInvalid, c.Poll)
	}
	if c.Debounce < 0 {
		return fmt.Errorf("%w: debounce must not be negative, got %v", ErrInvalid, c.Debounce)
	}
	if c.MoveTimeout <= 0 {
		return fmt.Errorf("%w: move_timeout must be positive, got %v", ErrInvalid, c.MoveTimeout)
	}
	if c.Heartbeat < 0 {
		return fmt.Errorf("%w: heartbeat must not be negative, got %v", ErrInvalid, c.Heartbeat)
	}
	if c.Chip == "" {
		return fmt.Errorf("%w: chip is required", ErrInvalid)
	}
	if c.HTTP == "" {
		return fmt.Errorf("%w: http address is required", ErrInvalid)
	}
	if c.MDNS.Enabled && c.MDNS.Instance == "" {
		return fmt.Errorf("%w: mdns.instance is required when mdns is enabled", ErrInvalid)
	}

	seen := make(map[int]string)
	for _, pin := range []struct {
		name string
		n    int
	}{
		{"forward", c.Pins.Forward},
		{"reverse", c.Pins.Reverse},
		{"drawer_lock", c.Pins.DrawerLock},
		{"spare", c.Pins.Spare},
		{"lock", c.Pins.Lock},
		{"override", c.Pins.Override},
		{"reset", c.Pins.Reset},
	} {
		if pin.n < 0 {
			return fmt.Errorf("%w: pins.%s must not be negative", ErrInvalid, pin.name)
		}
		if other, ok := seen[pin.n]; ok {
			return fmt.Errorf("%w: pins.%s and pins.%s share line %d", ErrInvalid, other, pin.name, pin.n)
		}
		seen[pin.n] = pin.name
	}
	return nil
}
