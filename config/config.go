// Package config loads container settings from .env files and the environment.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"

	ioc "github.com/toutaio/toutago-ioc"
	"github.com/toutaio/toutago-ioc/logger"
)

// Config holds the container and demo server settings.
type Config struct {
	// AutoResolveConcrete builds unregistered concrete types on the fly.
	AutoResolveConcrete bool

	LogLevel  string // debug | info | warn | error
	LogFormat string // text | json

	HTTPAddr string
}

// Load reads the given .env files (".env" by default) and populates a Config
// from environment variables. Missing files are ignored and variables already
// set in the environment win over file values.
func Load(envFiles ...string) *Config {
	files := envFiles
	if len(files) == 0 {
		files = []string{".env"}
	}
	_ = godotenv.Load(files...)

	return &Config{
		AutoResolveConcrete: envBool("IOC_AUTO_RESOLVE_CONCRETE", true),
		LogLevel:            env("IOC_LOG_LEVEL", "info"),
		LogFormat:           env("IOC_LOG_FORMAT", "text"),
		HTTPAddr:            env("HTTP_ADDR", ":8080"),
	}
}

// Logger builds the logger described by the configuration, writing to stderr.
func (c *Config) Logger() logger.Logger {
	return logger.New(os.Stderr, c.LogFormat, c.LogLevel)
}

// Options turns the configuration into container options.
func (c *Config) Options() []ioc.Option {
	return []ioc.Option{
		ioc.WithLogger(c.Logger()),
		ioc.WithAutoResolveConcrete(c.AutoResolveConcrete),
	}
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
