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
	mu         sync.RWMutex
	sugar      *zap.SugaredLogger
	atomicLvl  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	loggerOnce sync.Once
)

// initLogger builds the default console logger writing to stderr.
func initLogger() {
	loggerOnce.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		if sugar == nil {
			sugar = build("console").Sugar()
		}
	})
}

func build(format string) *zap.Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	encoding := "console"
	if strings.EqualFold(format, "json") {
		encoding = "json"
	}

	cfg := zap.Config{
		Level:            atomicLvl,
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	l, err := cfg.Build()
	if err != nil {
		// Only reachable with a broken output path; stderr always opens.
		return zap.NewNop()
	}
	return l
}

// Configure rebuilds the global logger with the given level and encoding
// ("console" or "json").
func Configure(level, format string) {
	initLogger()
	SetLevel(ParseLevel(level))

	mu.Lock()
	old := sugar
	sugar = build(format).Sugar()
	mu.Unlock()

	_ = old.Sync()
}

// SetLogger replaces the sink. Tests use it with zap.NewNop() or an observer.
func SetLogger(l *zap.Logger) {
	initLogger()
	mu.Lock()
	sugar = l.Sugar()
	mu.Unlock()
}

// ParseLevel maps a config string to a Level; unknown values mean INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

func SetLevel(l Level) {
	initLogger()
	switch l {
	case LevelDebug:
		atomicLvl.SetLevel(zapcore.DebugLevel)
	case LevelWarn:
		atomicLvl.SetLevel(zapcore.WarnLevel)
	case LevelError:
		atomicLvl.SetLevel(zapcore.ErrorLevel)
	default:
		atomicLvl.SetLevel(zapcore.InfoLevel)
	}
}

func Debug(msg string, kv ...any) {
	current().Debugw(msg, kv...)
}

func Info(msg string, kv ...any) {
	current().Infow(msg, kv...)
}

func Warn(msg string, kv ...any) {
	current().Warnw(msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	current().Errorw(msg, extended...)
}

// Sync flushes buffered entries; call before exit.
func Sync() {
	_ = current().Sync()
}

func current() *zap.SugaredLogger {
	initLogger()
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}
