package config

import (
	"encoding/hex"
	"fmt"
	"strings"

	"fortunex/crypto"
)

// Validate checks the configuration ranges.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir required")
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log: unknown level %q", c.Log.Level)
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		return fmt.Errorf("log: rotation limits must not be negative")
	}
	if strings.TrimSpace(c.RPC.ListenAddress) != "" {
		if c.RPC.RateLimitPerSecond < 0 || c.RPC.RateLimitBurst < 0 {
			return fmt.Errorf("rpc: rate limits must not be negative")
		}
		if c.RPC.RateLimitPerSecond > 0 && c.RPC.RateLimitBurst == 0 {
			return fmt.Errorf("rpc: RateLimitBurst must be positive when rate limiting is enabled")
		}
	}
	if c.Crank.Enabled {
		if c.Crank.Interval.Duration <= 0 {
			return fmt.Errorf("crank: Interval must be positive")
		}
		if c.Crank.MaxSettlementsPerSecond < 0 {
			return fmt.Errorf("crank: MaxSettlementsPerSecond must not be negative")
		}
		if strings.TrimSpace(c.Crank.Operator) != "" {
			if _, err := crypto.ParseAddress(c.Crank.Operator); err != nil {
				return fmt.Errorf("crank: operator: %w", err)
			}
		} else if c.Crank.Rollover {
			return fmt.Errorf("crank: Rollover requires an Operator")
		}
	}
	switch c.Lottery.SeedSource {
	case "slot":
	case "beacon":
		key, err := hex.DecodeString(strings.TrimPrefix(c.Lottery.BeaconKey, "0x"))
		if err != nil || len(key) < 16 {
			return fmt.Errorf("lottery: BeaconKey must be at least 16 hex encoded bytes")
		}
	default:
		return fmt.Errorf("lottery: unknown SeedSource %q", c.Lottery.SeedSource)
	}
	if c.Archive.Enabled && strings.TrimSpace(c.Archive.DSN) == "" {
		return fmt.Errorf("archive: DSN required when enabled")
	}
	return nil
}

// OperatorAddress parses the crank operator identity.
func (c *Config) OperatorAddress() ([20]byte, error) {
	return crypto.ParseAddress(c.Crank.Operator)
}

// BeaconKeyBytes decodes the beacon key.
func (c *Config) BeaconKeyBytes() ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(c.Lottery.BeaconKey, "0x"))
}
