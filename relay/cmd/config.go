package cmd

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/relayr/relayr/lib/tracing"
	"github.com/relayr/relayr/metrics"
	"github.com/relayr/relayr/relay/relayserver"
)

// Config defines relay configuration.
type Config struct {
	ZapLogging  zap.Config         `yaml:"zap"`
	Metrics     metrics.Config     `yaml:"metrics"`
	Tracing     tracing.Config     `yaml:"tracing"`
	RelayServer relayserver.Config `yaml:"relayserver"`
}

// applyDefaults fills in a zap config when the yaml provides none: debug
// level console output in development, info level otherwise.
func (c Config) applyDefaults(env string) Config {
	if c.ZapLogging.Encoding == "" {
		if env == "development" {
			c.ZapLogging = zap.NewDevelopmentConfig()
		} else {
			c.ZapLogging = zap.NewProductionConfig()
			c.ZapLogging.Encoding = "console"
			c.ZapLogging.DisableStacktrace = true
		}
		c.ZapLogging.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	return c
}
