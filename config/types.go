package config

import (
	"fmt"
	"time"
)

// Duration wraps time.Duration so it can be written as "30s" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText parses Go duration strings.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText renders the duration as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Log controls the structured logger and its optional rotating file sink.
type Log struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// RPC configures the read-only query API.
type RPC struct {
	ListenAddress      string   `toml:"ListenAddress"`
	ReadTimeout        Duration `toml:"ReadTimeout"`
	WriteTimeout       Duration `toml:"WriteTimeout"`
	RateLimitPerSecond float64  `toml:"RateLimitPerSecond"`
	RateLimitBurst     int      `toml:"RateLimitBurst"`
	TrustProxyHeaders  bool     `toml:"TrustProxyHeaders"`
}

// Crank configures the background settler.
type Crank struct {
	Enabled bool `toml:"Enabled"`
	// Operator is the fx1 or 0x identity recorded as settler and used as
	// creator for rollover pools.
	Operator                string   `toml:"Operator"`
	Interval                Duration `toml:"Interval"`
	MaxSettlementsPerSecond float64  `toml:"MaxSettlementsPerSecond"`
	Rollover                bool     `toml:"Rollover"`
}

// Lottery selects the entropy source used for draws.
type Lottery struct {
	// SeedSource is either "slot" or "beacon".
	SeedSource string `toml:"SeedSource"`
	// BeaconKey is the hex encoded secret mixed into beacon seeds.
	BeaconKey string `toml:"BeaconKey"`
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Endpoint string            `toml:"Endpoint"`
	Insecure bool              `toml:"Insecure"`
	Metrics  bool              `toml:"Metrics"`
	Traces   bool              `toml:"Traces"`
	Headers  map[string]string `toml:"Headers"`
}

// Archive configures the SQL draw archive.
type Archive struct {
	Enabled bool   `toml:"Enabled"`
	DSN     string `toml:"DSN"`
}
