package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`

	Rooms RoomsConfig `mapstructure:"rooms" yaml:"rooms"`
	Run   RunConfig   `mapstructure:"run" yaml:"run"`
	Exec  ExecConfig  `mapstructure:"exec" yaml:"exec"`
}

// RoomsConfig bounds room membership and controls room retirement.
type RoomsConfig struct {
	Limit         int           `mapstructure:"limit" yaml:"limit"`
	RetireAfter   time.Duration `mapstructure:"retire_after" yaml:"retire_after"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`
}

// RunConfig throttles the shared run feature.
type RunConfig struct {
	Cooldown time.Duration `mapstructure:"cooldown" yaml:"cooldown"`
}

// ExecConfig points at the remote execution backend.
type ExecConfig struct {
	URL          string        `mapstructure:"url" yaml:"url"`
	ClientID     string        `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret string        `mapstructure:"client_secret" yaml:"client_secret"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		DatabasePath:      "codepad.db",
		Rooms: RoomsConfig{
			Limit:         5,
			RetireAfter:   10 * time.Minute,
			SweepInterval: time.Minute,
		},
		Run: RunConfig{
			Cooldown: 30 * time.Second,
		},
		Exec: ExecConfig{
			Timeout: 30 * time.Second,
		},
	}
}
