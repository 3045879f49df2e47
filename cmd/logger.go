package cmd

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const loggerMetadataKeyName = "logger"

// AppLogger retrieves the application-wide logger instance from the cli.Context's Metadata.
// This function will return a discarding logger if SetAppLogger was not called before.
func AppLogger(c *cli.Context) logr.Logger {
	if log, ok := c.App.Metadata[loggerMetadataKeyName].(logr.Logger); ok {
		return log
	}
	return logr.Discard()
}

// SetAppLogger stores the application-wide logger instance to the cli.Context's Metadata,
// so that it can later be retrieved by AppLogger.
func SetAppLogger(c *cli.Context, logger logr.Logger) {
	c.App.Metadata[loggerMetadataKeyName] = logger
}

// Logger returns a named child of the application-wide logger.
func Logger(c *cli.Context, name string) logr.Logger {
	return AppLogger(c).WithName(name)
}

// NewLogger builds a zap backed logger. Debug switches to the development
// encoder and enables V(1) messages.
func NewLogger(debug bool) (logr.Logger, error) {
	conf := zap.NewProductionConfig()
	if debug {
		conf = zap.NewDevelopmentConfig()
		conf.Level = zap.NewAtomicLevelAt(zapcore.Level(-1))
	}
	conf.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zl, err := conf.Build()
	if err != nil {
		return logr.Discard(), err
	}
	return zapr.NewLogger(zl), nil
}
