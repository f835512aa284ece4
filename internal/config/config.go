// Package config loads the NetRush configuration surface (§6 of the
// spec): defaults, an optional TOML file, .env overrides, and (via the
// cmd/ entry points) command-line flag overrides on top of all of it.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config holds every recognized configuration option and its default.
type Config struct {
	ServerHost            string        `toml:"server_host"`
	ServerPort            int           `toml:"server_port"`
	GridSide              int32         `toml:"grid_side"`
	UpdateRateHz          int           `toml:"update_rate_hz"`
	FullEvery             uint32        `toml:"full_every"`
	RedundancyK           int           `toml:"redundancy_k"`
	MaxClients            int           `toml:"max_clients"`
	RDTTimeout            time.Duration `toml:"-"`
	RDTTimeoutMs          int           `toml:"rdt_timeout_ms"`
	MaxRetries            int           `toml:"max_retries"`
	ClientTimeout         time.Duration `toml:"-"`
	ClientTimeoutSec      int           `toml:"client_timeout_sec"`
	CompressionThreshold  int           `toml:"compression_threshold_bytes"`
	MaxDatagram           int           `toml:"max_datagram_bytes"`
	RenderDelayMs         int           `toml:"render_delay_ms"`
}

// Default returns the configuration surface's documented defaults.
func Default() Config {
	c := Config{
		ServerHost:           "0.0.0.0",
		ServerPort:           5000,
		GridSide:             20,
		UpdateRateHz:         20,
		FullEvery:            10,
		RedundancyK:          2,
		MaxClients:           4,
		RDTTimeoutMs:         500,
		MaxRetries:           3,
		ClientTimeoutSec:     15,
		CompressionThreshold: 1000,
		MaxDatagram:          1200,
		RenderDelayMs:        100,
	}
	c.deriveDurations()
	return c
}

func (c *Config) deriveDurations() {
	c.RDTTimeout = time.Duration(c.RDTTimeoutMs) * time.Millisecond
	c.ClientTimeout = time.Duration(c.ClientTimeoutSec) * time.Second
}

// SnapshotPeriod is the fixed-cadence scheduler tick period derived from
// UpdateRateHz.
func (c Config) SnapshotPeriod() time.Duration {
	return time.Second / time.Duration(c.UpdateRateHz)
}

// Load builds a Config starting from Default(), applying an optional TOML
// file (if path is non-empty and exists) and then .env overrides found in
// the current directory. Command-line flags in cmd/ are applied on top of
// whatever this returns.
func Load(tomlPath string) (Config, error) {
	cfg := Default()

	if tomlPath != "" {
		if _, err := os.Stat(tomlPath); err == nil {
			if _, err := toml.DecodeFile(tomlPath, &cfg); err != nil {
				return Config{}, err
			}
		}
	}

	// godotenv.Load is a no-op (returns an error we ignore) when no .env
	// file is present; present values populate the process environment
	// for ApplyEnv to read.
	_ = godotenv.Load()
	cfg.ApplyEnv()
	cfg.deriveDurations()

	return cfg, nil
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// ApplyEnv overlays NETRUSH_* environment variables onto the config,
// matching the keep-alive overloading texture of the teacher's own
// use of godotenv (task-3) for simple scalar overrides.
func (c *Config) ApplyEnv() {
	envString("NETRUSH_SERVER_HOST", &c.ServerHost)
	envInt("NETRUSH_SERVER_PORT", &c.ServerPort)
	envInt("NETRUSH_MAX_CLIENTS", &c.MaxClients)
	envInt("NETRUSH_RDT_TIMEOUT_MS", &c.RDTTimeoutMs)
	envInt("NETRUSH_MAX_RETRIES", &c.MaxRetries)
	envInt("NETRUSH_CLIENT_TIMEOUT_SEC", &c.ClientTimeoutSec)
}
