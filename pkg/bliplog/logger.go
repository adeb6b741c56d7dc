// Package bliplog is a small structured-logging helper shared by the blip
// core and its transport/CLI adapters. It wraps zap the way an embedded
// application logger normally does: a single process-wide configuration,
// and per-component Log values that stamp a bracketed prefix on every line.
package bliplog

import (
	"os"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var logger *zap.Logger
var errorLogger *zap.Logger
var warnLogger *zap.Logger
var atom = zap.NewAtomicLevel()

var opts *Options

// Configure (re)builds the process-wide loggers from op. Safe to call
// before any Log value is used; if it is never called, the first log call
// configures with NewOptions() defaults (stdout only, info level).
func Configure(op *Options) {
	atom.SetLevel(op.Level)
	opts = op

	loggerOpts := make([]zap.Option, 0)
	if opts.LineNum {
		loggerOpts = append(loggerOpts, zap.AddCaller(), zap.AddCallerSkip(2))
	}

	writers := make([]zapcore.WriteSyncer, 0)
	if !opts.NoStdout {
		writers = append(writers, zapcore.AddSync(os.Stdout))
	}

	if opts.LogDir == "" {
		logger = zap.New(zapcore.NewCore(
			zapcore.NewJSONEncoder(newEncoderConfig()),
			zapcore.NewMultiWriteSyncer(writers...),
			atom,
		), loggerOpts...)
		errorLogger = logger
		warnLogger = logger
		return
	}

	infoWriter := zapcore.AddSync(&lumberjack.Logger{
		Filename:   path.Join(opts.LogDir, "blip.log"),
		MaxSize:    100, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	})
	logger = zap.New(zapcore.NewCore(
		zapcore.NewJSONEncoder(newEncoderConfig()),
		zapcore.NewMultiWriteSyncer(append(writers, infoWriter)...),
		atom,
	), loggerOpts...)

	errorWriter := zapcore.AddSync(&lumberjack.Logger{
		Filename:   path.Join(opts.LogDir, "blip-error.log"),
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
	})
	errorLogger = zap.New(zapcore.NewCore(
		zapcore.NewJSONEncoder(newEncoderConfig()),
		zapcore.NewMultiWriteSyncer(append(writers, errorWriter)...),
		zap.ErrorLevel,
	), loggerOpts...)

	warnWriter := zapcore.AddSync(&lumberjack.Logger{
		Filename:   path.Join(opts.LogDir, "blip-warn.log"),
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
	})
	warnLogger = zap.New(zapcore.NewCore(
		zapcore.NewJSONEncoder(newEncoderConfig()),
		zapcore.NewMultiWriteSyncer(append(writers, warnWriter)...),
		zap.WarnLevel,
	), loggerOpts...)
}

func newEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:      "time",
		LevelKey:     "level",
		NameKey:      "logger",
		CallerKey:    "caller",
		MessageKey:   "msg",
		LineEnding:   zapcore.DefaultLineEnding,
		EncodeLevel:  zapcore.LowercaseLevelEncoder,
		EncodeCaller: zapcore.ShortCallerEncoder,
		EncodeTime: func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(t.Format("2006-01-02T15:04:05.000Z07:00"))
		},
		EncodeDuration: zapcore.MillisDurationEncoder,
	}
}

func ensureConfigured() {
	if logger == nil {
		Configure(NewOptions())
	}
}

// Log is a component-scoped logger: a bracketed prefix plus the zap
// structured field API.
type Log struct {
	prefix string
}

// New returns a Log that tags every line with [prefix].
func New(prefix string) *Log {
	return &Log{prefix: prefix}
}

func (l *Log) tag(msg string) string {
	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(l.prefix)
	b.WriteString("] ")
	b.WriteString(msg)
	return b.String()
}

func (l *Log) Debug(msg string, fields ...zap.Field) {
	ensureConfigured()
	logger.Debug(l.tag(msg), fields...)
}

func (l *Log) Info(msg string, fields ...zap.Field) {
	ensureConfigured()
	logger.Info(l.tag(msg), fields...)
}

func (l *Log) Warn(msg string, fields ...zap.Field) {
	ensureConfigured()
	warnLogger.Warn(l.tag(msg), fields...)
}

func (l *Log) Error(msg string, fields ...zap.Field) {
	ensureConfigured()
	errorLogger.Error(l.tag(msg), fields...)
}

// Sync flushes any buffered log entries. Call before process exit.
func Sync() error {
	if logger == nil {
		return nil
	}
	_ = logger.Sync()
	if errorLogger != nil {
		_ = errorLogger.Sync()
	}
	if warnLogger != nil {
		_ = warnLogger.Sync()
	}
	return nil
}
