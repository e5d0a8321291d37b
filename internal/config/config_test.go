package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfigFile(t, "logging:\n  level: info\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "0.0.0.0:4000", cfg.Telnet.Addr())
	assert.Equal(t, 10*time.Second, cfg.Telnet.WriteTimeout)
	assert.Equal(t, "town_square", cfg.Game.StartRoom)
	assert.Equal(t, 1000, cfg.Game.History.Capacity)
	assert.Equal(t, 50, cfg.Game.History.ReplayCount)
	assert.Equal(t, 15*time.Minute, cfg.Game.Atmosphere.BaseInterval)
	assert.Equal(t, 5*time.Minute, cfg.Game.Atmosphere.Jitter)
	assert.Equal(t, time.Duration(0), cfg.Game.Atmosphere.FirstInterval)
	assert.Equal(t, time.Minute, cfg.Game.Atmosphere.FailureBackoff)
	assert.False(t, cfg.Game.Presence.NotifySuperseded)
	assert.Equal(t, 64, cfg.Game.Presence.OutboxBuffer)
}

func TestLoad_Overrides(t *testing.T) {
	path := writeConfigFile(t, `
database:
  host: db.internal
  port: 6543
logging:
  level: debug
  format: console
game:
  start_room: inn_common_room
  atmosphere:
    first_interval: 2m
  presence:
    notify_superseded: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, "inn_common_room", cfg.Game.StartRoom)
	assert.Equal(t, 2*time.Minute, cfg.Game.Atmosphere.FirstInterval)
	assert.True(t, cfg.Game.Presence.NotifySuperseded)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestValidate_InvalidLogging(t *testing.T) {
	path := writeConfigFile(t, "logging:\n  level: loud\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")
}

func TestValidate_ReplayExceedsCapacity(t *testing.T) {
	path := writeConfigFile(t, `
game:
  history:
    capacity: 10
    replay_count: 20
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replay_count")
}

func TestValidate_JitterNotBelowBase(t *testing.T) {
	path := writeConfigFile(t, `
game:
  atmosphere:
    base_interval: 1m
    jitter: 5m
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jitter")
}

func TestValidate_InvalidTelnetPort(t *testing.T) {
	path := writeConfigFile(t, "telnet:\n  port: 0\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telnet.port")
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{
		Host: "localhost", Port: 5432, User: "u", Password: "p", Name: "mordecai", SSLMode: "disable",
	}
	assert.Equal(t, "postgres://u:p@localhost:5432/mordecai?sslmode=disable", d.DSN())
}

func TestLoadFromViper(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("logging.level", "warn")

	cfg, err := LoadFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
}
