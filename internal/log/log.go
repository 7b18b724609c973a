package log

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var (
	logger     *zap.SugaredLogger
	loggerOnce sync.Once
	atomLevel  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// initLogger builds the global zap logger writing to stderr. Development mode
// (console encoder, colored levels) is chosen with Init; the lazy default is
// the production JSON encoder.
func initLogger() {
	loggerOnce.Do(func() {
		logger = build(false)
	})
}

func build(development bool) *zap.SugaredLogger {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	}
	cfg.Level = atomLevel
	cfg.DisableStacktrace = true

	l, err := cfg.Build(zap.AddCallerSkip(2))
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return l.Sugar()
}

// Init replaces the global logger. Call once from main before any logging.
func Init(development bool, level string) {
	SetLevel(ParseLevel(level))
	lg := build(development)
	loggerOnce.Do(func() {})
	logger = lg
}

// ParseLevel maps a config string onto a Level, defaulting to INFO.
func ParseLevel(s string) Level {
	switch Level(strings.ToUpper(strings.TrimSpace(s))) {
	case LevelDebug:
		return LevelDebug
	case LevelWarn:
		return LevelWarn
	case LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

func SetLevel(l Level) {
	switch l {
	case LevelDebug:
		atomLevel.SetLevel(zapcore.DebugLevel)
	case LevelWarn:
		atomLevel.SetLevel(zapcore.WarnLevel)
	case LevelError:
		atomLevel.SetLevel(zapcore.ErrorLevel)
	default:
		atomLevel.SetLevel(zapcore.InfoLevel)
	}
}

func Debug(msg string, kv ...any) {
	logWithLevel(LevelDebug, msg, kv...)
}

func Info(msg string, kv ...any) {
	logWithLevel(LevelInfo, msg, kv...)
}

func Warn(msg string, kv ...any) {
	logWithLevel(LevelWarn, msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	logWithLevel(LevelError, msg, extended...)
}

// Sync flushes buffered entries; call before exit.
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}

func logWithLevel(level Level, msg string, kv ...any) {
	initLogger()
	kv = evenKVs(kv)

	switch level {
	case LevelDebug:
		logger.Debugw(msg, kv...)
	case LevelWarn:
		logger.Warnw(msg, kv...)
	case LevelError:
		logger.Errorw(msg, kv...)
	default:
		logger.Infow(msg, kv...)
	}
}

// evenKVs drops a trailing key without value and any non-string keys, keeping
// the facade's historical tolerance for sloppy call sites.
func evenKVs(kv []any) []any {
	out := make([]any, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		out = append(out, key, kv[i+1])
	}
	return out
}
