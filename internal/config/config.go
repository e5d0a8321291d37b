// Package config provides Viper-based configuration loading for the Mordecai server.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// TelnetConfig holds the Telnet listener settings.
type TelnetConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// ReadTimeout bounds how long a session may sit idle before the server
	// drops it. Zero disables the idle timeout.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout bounds each write to a client.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the listen address in host:port form.
func (t TelnetConfig) Addr() string {
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// HistoryConfig holds message history buffer settings.
type HistoryConfig struct {
	// Capacity is the maximum number of messages retained before FIFO eviction.
	Capacity int `mapstructure:"capacity"`
	// ReplayCount is how many recent messages a newly connected player receives.
	ReplayCount int `mapstructure:"replay_count"`
}

// AtmosphereConfig holds ambient message scheduler settings.
type AtmosphereConfig struct {
	// BaseInterval is the base wait between ambient messages.
	BaseInterval time.Duration `mapstructure:"base_interval"`
	// Jitter is the maximum uniform variation applied to BaseInterval in either direction.
	Jitter time.Duration `mapstructure:"jitter"`
	// FirstInterval optionally shortens only the first wait (dev convenience).
	// Zero means use the normal jittered interval from the start.
	FirstInterval time.Duration `mapstructure:"first_interval"`
	// FailureBackoff is the fixed wait after a failed generation cycle.
	FailureBackoff time.Duration `mapstructure:"failure_backoff"`
}

// PresenceConfig holds connection registry settings.
type PresenceConfig struct {
	// NotifySuperseded controls whether a connection replaced by a newer login
	// under the same name receives an explicit disconnect notice before its
	// delivery path is dropped. False means last-login-wins silently.
	NotifySuperseded bool `mapstructure:"notify_superseded"`
	// OutboxBuffer is the per-connection delivery queue depth.
	OutboxBuffer int `mapstructure:"outbox_buffer"`
}

// GameConfig groups the runtime game-core settings.
type GameConfig struct {
	// StartRoom is the room ID where new players are placed.
	StartRoom  string           `mapstructure:"start_room"`
	History    HistoryConfig    `mapstructure:"history"`
	Atmosphere AtmosphereConfig `mapstructure:"atmosphere"`
	Presence   PresenceConfig   `mapstructure:"presence"`
}

// Config is the top-level application configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Telnet   TelnetConfig   `mapstructure:"telnet"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Game     GameConfig     `mapstructure:"game"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateDatabase(c.Database); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateTelnet(c.Telnet); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateGame(c.Game); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateTelnet(t TelnetConfig) error {
	var errs []string
	if t.Port < 1 || t.Port > 65535 {
		errs = append(errs, fmt.Sprintf("telnet.port must be 1-65535, got %d", t.Port))
	}
	if t.ReadTimeout < 0 {
		errs = append(errs, "telnet.read_timeout must not be negative")
	}
	if t.WriteTimeout <= 0 {
		errs = append(errs, "telnet.write_timeout must be > 0")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateGame(g GameConfig) error {
	var errs []string
	if g.StartRoom == "" {
		errs = append(errs, "game.start_room must not be empty")
	}
	if g.History.Capacity < 1 {
		errs = append(errs, fmt.Sprintf("game.history.capacity must be >= 1, got %d", g.History.Capacity))
	}
	if g.History.ReplayCount < 0 {
		errs = append(errs, fmt.Sprintf("game.history.replay_count must be >= 0, got %d", g.History.ReplayCount))
	}
	if g.History.ReplayCount > g.History.Capacity {
		errs = append(errs, "game.history.replay_count must not exceed game.history.capacity")
	}
	if g.Atmosphere.BaseInterval <= 0 {
		errs = append(errs, "game.atmosphere.base_interval must be > 0")
	}
	if g.Atmosphere.Jitter < 0 {
		errs = append(errs, "game.atmosphere.jitter must not be negative")
	}
	if g.Atmosphere.Jitter >= g.Atmosphere.BaseInterval {
		errs = append(errs, "game.atmosphere.jitter must be less than game.atmosphere.base_interval")
	}
	if g.Atmosphere.FirstInterval < 0 {
		errs = append(errs, "game.atmosphere.first_interval must not be negative")
	}
	if g.Atmosphere.FailureBackoff <= 0 {
		errs = append(errs, "game.atmosphere.failure_backoff must be > 0")
	}
	if g.Presence.OutboxBuffer < 1 {
		errs = append(errs, fmt.Sprintf("game.presence.outbox_buffer must be >= 1, got %d", g.Presence.OutboxBuffer))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with MORDECAI_ prefix
	v.SetEnvPrefix("MORDECAI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "mordecai")
	v.SetDefault("database.password", "mordecai")
	v.SetDefault("database.name", "mordecai")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("telnet.host", "0.0.0.0")
	v.SetDefault("telnet.port", 4000)
	v.SetDefault("telnet.read_timeout", "0")
	v.SetDefault("telnet.write_timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("game.start_room", "town_square")
	v.SetDefault("game.history.capacity", 1000)
	v.SetDefault("game.history.replay_count", 50)
	v.SetDefault("game.atmosphere.base_interval", "15m")
	v.SetDefault("game.atmosphere.jitter", "5m")
	v.SetDefault("game.atmosphere.first_interval", "0")
	v.SetDefault("game.atmosphere.failure_backoff", "1m")
	v.SetDefault("game.presence.notify_superseded", false)
	v.SetDefault("game.presence.outbox_buffer", 64)
}
