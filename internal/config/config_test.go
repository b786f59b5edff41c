package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/crate-controller/internal/crate"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "stop", cfg.Variant)
	assert.Equal(t, crate.DefaultMoveTimeout, cfg.MoveTimeout)
	assert.Equal(t, 15*time.Second, cfg.MoveTimeout)
	assert.Empty(t, cfg.Journal)
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
variant: toggle
poll: 10ms
move_timeout: 20s
pins:
  forward: 23
  drawer_lock: 24
mdns:
  instance: crate-room-2
journal: /var/lib/crate/journal.cbor
`))
	require.NoError(t, err)

	assert.Equal(t, "toggle", cfg.Variant)
	assert.Equal(t, 10*time.Millisecond, cfg.Poll)
	assert.Equal(t, 20*time.Second, cfg.MoveTimeout)
	assert.Equal(t, 23, cfg.Pins.Forward)
	assert.Equal(t, 24, cfg.Pins.DrawerLock)
	assert.Equal(t, "crate-room-2", cfg.MDNS.Instance)
	assert.Equal(t, "/var/lib/crate/journal.cbor", cfg.Journal)

	// Untouched keys keep their defaults
	def := Default()
	assert.Equal(t, def.Pins.Reverse, cfg.Pins.Reverse)
	assert.Equal(t, def.Debounce, cfg.Debounce)
	assert.Equal(t, def.Broker, cfg.Broker)
	assert.True(t, cfg.MDNS.Enabled)
}

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("variant: stop\nspeed: fast\n"))
	assert.Error(t, err)
}

func TestParseRejectsBadDuration(t *testing.T) {
	_, err := Parse([]byte("poll: quickly\n"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crate.yaml")
	require.NoError(t, os.WriteFile(path, []byte("variant: toggle\nhttp: \":8080\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "toggle", cfg.Variant)
	assert.Equal(t, ":8080", cfg.HTTP)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown variant", func(c *Config) { c.Variant = "slide" }},
		{"zero poll", func(c *Config) { c.Poll = 0 }},
		{"negative debounce", func(c *Config) { c.Debounce = -time.Millisecond }},
		{"zero move timeout", func(c *Config) { c.MoveTimeout = 0 }},
		{"negative heartbeat", func(c *Config) { c.Heartbeat = -time.Second }},
		{"no chip", func(c *Config) { c.Chip = "" }},
		{"no http", func(c *Config) { c.HTTP = "" }},
		{"mdns without instance", func(c *Config) { c.MDNS.Instance = "" }},
		{"negative pin", func(c *Config) { c.Pins.Spare = -1 }},
		{"shared pin", func(c *Config) { c.Pins.Reverse = c.Pins.Forward }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestValidateAllowsDisabledFeatures(t *testing.T) {
	cfg := Default()
	cfg.Debounce = 0
	cfg.Heartbeat = 0
	cfg.MDNS = MDNS{}

	assert.NoError(t, cfg.Validate())
}
