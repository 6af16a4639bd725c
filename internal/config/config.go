// Package config loads the client's runtime settings from environment
// variables, with sensible defaults for a local setup.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"snesclient/internal/snes"
)

// Config is the full runtime configuration.
type Config struct {
	// GameTitle selects the registered game adapter.
	GameTitle string `env:"SNESCLIENT_GAME" envDefault:"A Link to the Past"`

	// ServerAddress is the multiworld room to join at startup. Empty
	// leaves the client idle until /connect is typed.
	ServerAddress string `env:"SNESCLIENT_SERVER"`
	SlotName      string `env:"SNESCLIENT_SLOT"`
	Password      string `env:"SNESCLIENT_PASSWORD"`

	DeviceServerAddress string `env:"SNESCLIENT_DEVICE_SERVER" envDefault:"localhost:23074"`
	// DeviceURI pins a specific device when the server lists several.
	DeviceURI    string `env:"SNESCLIENT_DEVICE"`
	AddressSpace string `env:"SNESCLIENT_ADDRESS_SPACE" envDefault:"fxpakpro"`
	MemoryMap    string `env:"SNESCLIENT_MEMORY_MAP" envDefault:"lorom"`

	PollInterval         time.Duration `env:"SNESCLIENT_POLL_INTERVAL" envDefault:"500ms"`
	BounceInterval       time.Duration `env:"SNESCLIENT_BOUNCE_INTERVAL" envDefault:"5m"`
	ReconnectDelay       time.Duration `env:"SNESCLIENT_RECONNECT_DELAY" envDefault:"5s"`
	MaxReconnectAttempts int           `env:"SNESCLIENT_RECONNECT_ATTEMPTS" envDefault:"10"`
	RelinkDelay          time.Duration `env:"SNESCLIENT_RELINK_DELAY" envDefault:"5s"`
	DeathCooldown        time.Duration `env:"SNESCLIENT_DEATH_COOLDOWN" envDefault:"10s"`

	StorePath string `env:"SNESCLIENT_STORE" envDefault:"snesclient.db"`

	LogSeverity string `env:"SNESCLIENT_LOG_LEVEL" envDefault:"info"`
	LogFile     string `env:"SNESCLIENT_LOG_FILE"`
	// LogMute silences whole event categories (network, device, sync,
	// system) without raising the severity floor.
	LogMute []string `env:"SNESCLIENT_LOG_MUTE" envSeparator:","`
}

// Load parses the environment and validates the enum-valued settings.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the rest of the client cannot act on.
func (c *Config) Validate() error {
	if c.GameTitle == "" {
		return fmt.Errorf("game title must not be empty")
	}
	if c.DeviceServerAddress == "" {
		return fmt.Errorf("device server address must not be empty")
	}
	if _, err := snes.ParseAddressSpace(c.AddressSpace); err != nil {
		return err
	}
	if _, err := snes.ParseMemoryMap(c.MemoryMap); err != nil {
		return err
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	if c.MaxReconnectAttempts <= 0 {
		return fmt.Errorf("reconnect attempts must be positive, got %d", c.MaxReconnectAttempts)
	}
	return nil
}

// Space returns the parsed address space. Call Validate first.
func (c *Config) Space() snes.AddressSpace {
	space, _ := snes.ParseAddressSpace(c.AddressSpace)
	return space
}

// Mapping returns the parsed memory map. Call Validate first.
func (c *Config) Mapping() snes.MemoryMap {
	mapping, _ := snes.ParseMemoryMap(c.MemoryMap)
	return mapping
}
