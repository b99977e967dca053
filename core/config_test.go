package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("ENV", "")

		conf := NewConfig()
		assert.Equal(t, "DEV", conf.Env)
		assert.Equal(t, "Somo", conf.AppName)
		assert.True(t, conf.Debug)
		assert.False(t, conf.TestMode)
		assert.Equal(t, ":8000", conf.Server.Address())
		assert.Equal(t, 5*time.Second, conf.Server.ShutdownTimeout)
		assert.Equal(t, "sqlx", conf.Database.Backend)
		assert.Equal(t, "local", conf.Events.Backend)
		assert.False(t, conf.Tracing.Enabled)
		assert.Equal(t, "noreply@localhost", conf.DefaultFromEmail().Address)
	})

	t.Run("env overrides", func(t *testing.T) {
		t.Setenv("ENV", "test")
		t.Setenv("TEST_SERVER_PORT", "8001")
		t.Setenv("TEST_SERVER_DEBUGHOST", "0.0.0.0:4001")
		t.Setenv("TEST_SERVER_READTIMEOUT", "10s")
		t.Setenv("TEST_DATABASE_BACKEND", "inmem")
		t.Setenv("TEST_EVENTS_BACKEND", "redis")
		t.Setenv("TEST_TRACING_ENABLED", "true")
		t.Setenv("DEV_SERVER_HOST", "ignored")

		conf := NewConfig()
		assert.Equal(t, "TEST", conf.Env)
		assert.True(t, conf.TestMode)
		assert.Equal(t, ":8001", conf.Server.Address())
		assert.Equal(t, "0.0.0.0:4001", conf.Server.DebugHost)
		assert.Equal(t, 10*time.Second, conf.Server.ReadTimeout)
		assert.Equal(t, "inmem", conf.Database.Backend)
		assert.Equal(t, "redis", conf.Events.Backend)
		assert.True(t, conf.Tracing.Enabled)
	})
}
