package config_test

import (
	"os"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ioc "github.com/toutaio/toutago-ioc"
	"github.com/toutaio/toutago-ioc/config"
)

type unregistered struct{}

func TestLoad_Defaults(t *testing.T) {
	cfg := config.Load("testdata/empty.env")

	assert.True(t, cfg.AutoResolveConcrete)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
}

func TestLoad_EnvFile(t *testing.T) {
	// godotenv writes into the process environment.
	for _, key := range []string{"IOC_AUTO_RESOLVE_CONCRETE", "IOC_LOG_LEVEL", "IOC_LOG_FORMAT", "HTTP_ADDR"} {
		key := key
		t.Cleanup(func() { os.Unsetenv(key) })
	}

	cfg := config.Load("testdata/strict.env")

	assert.False(t, cfg.AutoResolveConcrete)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "127.0.0.1:9090", cfg.HTTPAddr)
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("IOC_LOG_LEVEL", "warn")
	t.Setenv("HTTP_ADDR", ":9000")

	cfg := config.Load("testdata/empty.env")

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, ":9000", cfg.HTTPAddr)
}

func TestLoad_InvalidBoolFallsBack(t *testing.T) {
	t.Setenv("IOC_AUTO_RESOLVE_CONCRETE", "sometimes")

	cfg := config.Load("testdata/empty.env")

	assert.True(t, cfg.AutoResolveConcrete)
}

func TestOptions_ApplyToContainer(t *testing.T) {
	cfg := &config.Config{AutoResolveConcrete: false, LogLevel: "error", LogFormat: "text"}

	c := ioc.New(cfg.Options()...)

	_, err := c.Resolve(reflect.TypeOf(&unregistered{}), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ioc.ErrTypeNotRegistered)
}
