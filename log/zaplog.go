package log

import (
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Field is a structured logging field, re-exported from zap so callers
// outside this package never import zap directly (spec.md's "logging
// formatting is not a core concern" — core packages only ever see this
// narrow Field/StructLogger surface, never zap's full API).
type Field = zap.Field

func String(key, val string) Field      { return zap.String(key, val) }
func Int(key string, val int) Field     { return zap.Int(key, val) }
func Uint64(key string, v uint64) Field { return zap.Uint64(key, v) }
func Bool(key string, v bool) Field     { return zap.Bool(key, v) }
func Err(err error) Field               { return zap.Error(err) }

// StructLogger is the structured-logging facade used by the core packages
// (scheduler, iomanager, hook) for programming-error-class
// diagnostics (spec.md section 7); unlike the legacy *Logger above it takes
// key/value Fields instead of a printf-style template.
type StructLogger struct {
	z *zap.Logger
}

func (s *StructLogger) Debug(msg string, fields ...Field) { s.z.Debug(msg, fields...) }
func (s *StructLogger) Info(msg string, fields ...Field)  { s.z.Info(msg, fields...) }
func (s *StructLogger) Warn(msg string, fields ...Field)  { s.z.Warn(msg, fields...) }
func (s *StructLogger) Error(msg string, fields ...Field) { s.z.Error(msg, fields...) }

// With returns a derived StructLogger carrying the given fields on every
// subsequent call; used to tag a fiber/session id once per logical unit of
// work instead of threading it through every log call.
func (s *StructLogger) With(fields ...Field) *StructLogger {
	return &StructLogger{z: s.z.With(fields...)}
}

var def = &StructLogger{z: buildDefaultZap()}

// L returns the process-wide structured logger.
func L() *StructLogger { return def }

// SetDefault replaces the process-wide structured logger, e.g. so the
// top-level facade can rebind it once ctx.AppConf resolves a log file path.
func SetDefault(z *zap.Logger) { def = &StructLogger{z: z} }

// SessionID mints a correlation id for tagging a fiber or connection's log
// lines across their lifetime (spec.md's coroutine ids are process-local
// uint64s unsuitable for cross-node log correlation).
func SessionID() string { return uuid.NewString() }

func buildDefaultZap() *zap.Logger {
	consoleEncoder := zap.NewDevelopmentEncoderConfig()
	fileEncoder := zap.NewProductionEncoderConfig()
	fileEncoder.TimeKey = "ts"
	fileEncoder.EncodeTime = zapcore.ISO8601TimeEncoder

	rotate := &lumberjack.Logger{
		Filename:   "logs/loom.log",
		MaxSize:    100, // megabytes
		MaxBackups: 7,
		MaxAge:     28, // days
		Compress:   true,
	}

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEncoder), zapcore.AddSync(os.Stdout), zapcore.InfoLevel),
		zapcore.NewCore(zapcore.NewJSONEncoder(fileEncoder), zapcore.AddSync(rotate), zapcore.DebugLevel),
	)
	return zap.New(core, zap.AddCaller())
}

func defaultStructLogger() *StructLogger { return def }
