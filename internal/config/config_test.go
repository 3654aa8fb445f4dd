package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/login-gate/internal/users"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, key := range []string{"PORT", "GIN_MODE", "SESSION_SECRET", "SESSION_BACKEND", "LOGIN_DB_DRIVER", "SESSION_TTL_MINUTES"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, DriverSQLite, cfg.DB.Driver)
	assert.Equal(t, SessionBackendMemory, cfg.SessionBackend)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL())
	assert.Equal(t, 1800, cfg.SessionTTLSeconds())
	assert.True(t, cfg.Seed.Enabled())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LOGIN_DB_DRIVER", DriverPostgres)
	t.Setenv("LOGIN_DB_NAME", "gestion_usuarios")
	t.Setenv("SESSION_BACKEND", SessionBackendRedis)
	t.Setenv("SESSION_TTL_MINUTES", "5")
	t.Setenv("LOGIN_SEED_ROLE", "alumno")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.DB.Driver)
	assert.Equal(t, "gestion_usuarios", cfg.DB.Name)
	assert.Equal(t, SessionBackendRedis, cfg.SessionBackend)
	assert.Equal(t, 5*time.Minute, cfg.SessionTTL())
}

func TestLoadEmptySeedPasswordDisablesSeed(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GIN_MODE", "release")
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("LOGIN_SEED_PASSWORD", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.Seed.Enabled())
}

func TestLoadReleaseRejectsDemoSeedPassword(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GIN_MODE", "release")
	t.Setenv("SESSION_SECRET", "s3cret")
	// 未設定の状態を作る。t.Setenv で終了時に元へ戻す
	t.Setenv("LOGIN_SEED_PASSWORD", "")
	require.NoError(t, os.Unsetenv("LOGIN_SEED_PASSWORD"))

	_, err := Load()
	assert.ErrorContains(t, err, "LOGIN_SEED_PASSWORD")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			GinMode:           "debug",
			SessionBackend:    SessionBackendMemory,
			SessionTTLMinutes: 30,
			DB:                DatabaseConfig{Driver: DriverSQLite, Path: "data/login.sqlite"},
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"unknown driver", func(c *Config) { c.DB.Driver = "mysql" }, false},
		{"postgres without host", func(c *Config) { c.DB = DatabaseConfig{Driver: DriverPostgres, Name: "x"} }, false},
		{"unknown session backend", func(c *Config) { c.SessionBackend = "memcached" }, false},
		{"redis without url", func(c *Config) { c.SessionBackend = SessionBackendRedis }, false},
		{"non positive ttl", func(c *Config) { c.SessionTTLMinutes = 0 }, false},
		{"release without secret", func(c *Config) { c.GinMode = "release" }, false},
		{"release with secret", func(c *Config) { c.GinMode = "release"; c.SessionSecret = "s3cret" }, true},
		{"release with demo seed password", func(c *Config) {
			c.GinMode, c.SessionSecret = "release", "s3cret"
			c.Seed = users.Seed{Username: "fcytuader", Password: DemoSeedPassword, Role: users.RoleInstructor, Subject: "Programacion Avanzada"}
		}, false},
		{"release with custom seed password", func(c *Config) {
			c.GinMode, c.SessionSecret = "release", "s3cret"
			c.Seed = users.Seed{Username: "fcytuader", Password: "otra-clave", Role: users.RoleInstructor, Subject: "Programacion Avanzada"}
		}, true},
		{"release with seed disabled", func(c *Config) {
			c.GinMode, c.SessionSecret = "release", "s3cret"
			c.Seed = users.Seed{Username: "fcytuader", Role: users.RoleInstructor, Subject: "Programacion Avanzada"}
		}, true},
		{"invalid seed role", func(c *Config) {
			c.Seed.Username, c.Seed.Password, c.Seed.Role, c.Seed.Subject = "u", "p", "admin", "Bases de Datos"
		}, false},
		{"invalid seed subject", func(c *Config) {
			c.Seed.Username, c.Seed.Password, c.Seed.Role, c.Seed.Subject = "u", "p", "alumno", "Quimica"
		}, false},
		{"disabled seed is not checked", func(c *Config) { c.Seed.Role = "admin" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
