package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds all remind configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Delivery DeliveryConfig `toml:"delivery"`
}

type ServerConfig struct {
	Bind string `toml:"bind"`
	Port int    `toml:"port"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type DeliveryConfig struct {
	// PollCron is the cron schedule the serve command uses to run a
	// delivery pass over due reminders.
	PollCron string `toml:"poll_cron"`
	// SendTimeoutSecs bounds a single notification channel call.
	SendTimeoutSecs int `toml:"send_timeout_secs"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 38080,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Delivery: DeliveryConfig{
			PollCron:        "* * * * *",
			SendTimeoutSecs: 10,
		},
	}
}

// Load reads a TOML config file over the defaults. A missing file is not an
// error — the defaults stand.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
