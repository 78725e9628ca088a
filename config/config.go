package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	DataDir     string    `toml:"DataDir"`
	GenesisFile string    `toml:"GenesisFile"`
	Environment string    `toml:"Environment"`
	Log         Log       `toml:"Log"`
	RPC         RPC       `toml:"RPC"`
	Crank       Crank     `toml:"Crank"`
	Lottery     Lottery   `toml:"Lottery"`
	Telemetry   Telemetry `toml:"Telemetry"`
	Archive     Archive   `toml:"Archive"`
}

// Default returns the configuration written for a fresh node.
func Default() *Config {
	return &Config{
		DataDir:     "./fortunex-data",
		GenesisFile: "genesis.yaml",
		Environment: "dev",
		Log: Log{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		RPC: RPC{
			ListenAddress:      ":8547",
			ReadTimeout:        Duration{10 * time.Second},
			WriteTimeout:       Duration{10 * time.Second},
			RateLimitPerSecond: 20,
			RateLimitBurst:     40,
		},
		Crank: Crank{
			Enabled:                 true,
			Interval:                Duration{30 * time.Second},
			MaxSettlementsPerSecond: 5,
		},
		Lottery: Lottery{SeedSource: "slot"},
		Telemetry: Telemetry{
			Insecure: true,
			Metrics:  true,
			Traces:   true,
			Headers:  map[string]string{},
		},
		Archive: Archive{
			Enabled: true,
			DSN:     "fortunex-archive.db",
		},
	}
}

// Load loads the configuration from the given path. A missing file is
// created with defaults.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.normalize(path)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize(path string) {
	c.Environment = strings.ToLower(strings.TrimSpace(c.Environment))
	if c.Environment == "" {
		c.Environment = "dev"
	}
	c.Lottery.SeedSource = strings.ToLower(strings.TrimSpace(c.Lottery.SeedSource))
	if c.Lottery.SeedSource == "" {
		c.Lottery.SeedSource = "slot"
	}
	if c.Telemetry.Headers == nil {
		c.Telemetry.Headers = map[string]string{}
	}
	// Relative genesis paths are resolved next to the config file.
	if c.GenesisFile != "" && !filepath.IsAbs(c.GenesisFile) {
		c.GenesisFile = filepath.Join(filepath.Dir(path), c.GenesisFile)
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	cfg.normalize(path)
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// ArchiveDSN resolves the archive DSN. Bare file names live in DataDir.
func (c *Config) ArchiveDSN() string {
	dsn := strings.TrimSpace(c.Archive.DSN)
	if dsn == "" || strings.HasPrefix(dsn, "file:") || filepath.IsAbs(dsn) || strings.Contains(dsn, "?") {
		return dsn
	}
	return filepath.Join(c.DataDir, dsn)
}
