// Package logger builds the application's zerolog logger from config.LogConfig.
package logger

import (
	"io"

	"github.com/aleister1102/filestatus/internal/common"
	"github.com/aleister1102/filestatus/internal/config"
	"github.com/rs/zerolog"
)

type Logger struct {
	zerolog zerolog.Logger
	opts    Options
	closers []io.Closer
}

func (l *Logger) Zerolog() zerolog.Logger {
	return l.zerolog
}

func (l *Logger) Options() Options {
	return l.opts
}

// Close flushes and releases log files.
func (l *Logger) Close() error {
	var ec common.ErrorCollector
	for _, c := range l.closers {
		ec.Add(c.Close())
	}
	l.closers = nil
	return ec.Error()
}

// New creates a logger from the log section of the global config.
func New(cfg config.LogConfig) (*Logger, error) {
	opts, err := OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return NewBuilder().WithOptions(opts).Build()
}
