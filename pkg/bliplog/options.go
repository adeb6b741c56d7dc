package bliplog

import "go.uber.org/zap/zapcore"

// Options configures the process-wide loggers built by Configure.
type Options struct {
	Level    zapcore.Level
	LogDir   string // empty disables the rolling file sinks
	LineNum  bool
	NoStdout bool
}

// NewOptions returns the stdout-only, info-level defaults.
func NewOptions() *Options {
	return &Options{
		Level: zapcore.InfoLevel,
	}
}
