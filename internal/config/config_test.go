package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: sqlite
  sqlite:
    path: test.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "08:00", cfg.Scheduler.Time)
	assert.Equal(t, "09:00", cfg.Scheduler.OverdueTime)
	assert.Equal(t, 30*time.Minute, cfg.Scheduler.LockTTL)
	assert.Equal(t, 10*time.Second, cfg.Notifications.SendTimeout)
	assert.Equal(t, "email", cfg.Notifications.Channel)
	assert.Equal(t, "local", cfg.Documents.Storage)
}

func TestLoad_RejectsInvalidScheduleTime(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: sqlite
scheduler:
  time: "25:00"
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: sqlite
scheduler:
  time: "08:00"
`)
	t.Setenv("SCHEDULER_TIME", "07:45")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "07:45", cfg.Scheduler.Time)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Database:      DatabaseConfig{Driver: "sqlite", SQLite: SQLiteConfig{Path: "x.db"}},
			Scheduler:     SchedulerConfig{Enabled: true, Time: "08:00", OverdueTime: "09:30", Timezone: "UTC"},
			Notifications: NotificationsConfig{Channel: "none"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "oracle" }, wantErr: true},
		{name: "postgres without host", mutate: func(c *Config) { c.Database.Driver = "postgres" }, wantErr: true},
		{name: "unknown channel", mutate: func(c *Config) { c.Notifications.Channel = "sms" }, wantErr: true},
		{name: "email without host", mutate: func(c *Config) { c.Notifications.Email.Enabled = true }, wantErr: true},
		{name: "webhook without url", mutate: func(c *Config) { c.Notifications.Webhook.Enabled = true }, wantErr: true},
		{name: "bad timezone", mutate: func(c *Config) { c.Scheduler.Timezone = "Mars/Base" }, wantErr: true},
		{name: "disabled scheduler ignores bad time", mutate: func(c *Config) {
			c.Scheduler.Enabled = false
			c.Scheduler.Time = "nope"
		}},
		{name: "production needs jwt secret", mutate: func(c *Config) { c.Server.Environment = "production" }, wantErr: true},
		{name: "s3 needs bucket", mutate: func(c *Config) {
			c.Documents.Enabled = true
			c.Documents.Storage = "s3"
		}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in        string
		hour, min int
		wantErr   bool
	}{
		{in: "09:00", hour: 9, min: 0},
		{in: "14:30", hour: 14, min: 30},
		{in: "0900", wantErr: true},
		{in: "25:00", wantErr: true},
		{in: "09:60", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			h, m, err := ParseClock(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseClock(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && (h != tt.hour || m != tt.min) {
				t.Errorf("ParseClock(%q) = %d:%d, want %d:%d", tt.in, h, m, tt.hour, tt.min)
			}
		})
	}
}
