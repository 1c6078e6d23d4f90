package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Port      int           `env:"TEST_CFG_PORT" envDefault:"8080"`
	BaseURL   string        `env:"TEST_CFG_BASE_URL" envDefault:"http://localhost:9000"`
	PageSize  int           `env:"TEST_CFG_PAGE_SIZE" envDefault:"16"`
	Timeout   time.Duration `env:"TEST_CFG_TIMEOUT" envDefault:"5s"`
	Origins   []string      `env:"TEST_CFG_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	CacheOn   bool          `env:"TEST_CFG_CACHE" envDefault:"false"`
	Mandatory string        `env:"TEST_CFG_MANDATORY"`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg testConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "http://localhost:9000", cfg.BaseURL)
	assert.Equal(t, 16, cfg.PageSize)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Origins)
	assert.False(t, cfg.CacheOn)
	assert.Empty(t, cfg.Mandatory)
}

func TestLoad_FromEnvVars(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "9090")
	t.Setenv("TEST_CFG_TIMEOUT", "250ms")
	t.Setenv("TEST_CFG_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("TEST_CFG_CACHE", "true")

	var cfg testConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Timeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Origins)
	assert.True(t, cfg.CacheOn)
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "not-a-number")

	var cfg testConfig
	err := Load(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}
