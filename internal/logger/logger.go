package logger

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	once   sync.Once
	mu     sync.RWMutex
	logger *zap.Logger
	sugar  *zap.SugaredLogger
)

var (
	AppName = "secretsweep"
	Env     = "production"
	LogPath = "logs/secretsweep.log"
)

// Options configures Init. Zero values keep the defaults above.
type Options struct {
	Level   string // debug|info|warn|error
	LogPath string // empty disables the rotating file
	Env     string
}

// Init builds the process-wide logger: colored console output on stdout
// plus a rotating JSON file. Only the first call has an effect.
func Init(opts Options) error {
	var initErr error
	once.Do(func() {
		level, err := ParseLevel(opts.Level)
		if err != nil {
			initErr = err
			level = zapcore.InfoLevel
		}
		if opts.Env != "" {
			Env = opts.Env
		}

		encoderCfg := zap.NewProductionEncoderConfig()
		encoderCfg.TimeKey = "timestamp"
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoderCfg.CallerKey = "caller"
		encoderCfg.LevelKey = "level"
		encoderCfg.MessageKey = "message"

		consoleCfg := encoderCfg
		consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

		cores := []zapcore.Core{
			zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.AddSync(os.Stdout), level),
		}
		if opts.LogPath != "" {
			fileWriter := zapcore.AddSync(&lumberjack.Logger{
				Filename:   opts.LogPath,
				MaxSize:    50,
				MaxBackups: 7,
				MaxAge:     30,
				Compress:   true,
			})
			cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), fileWriter, level))
		}

		l := zap.New(zapcore.NewTee(cores...),
			zap.AddCaller(),
			zap.AddStacktrace(zapcore.ErrorLevel),
			zap.Fields(
				zap.String("app", AppName),
				zap.String("env", Env),
			),
		)
		set(l)
	})
	return initErr
}

// ParseLevel maps the configuration string onto a zap level.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("invalid log level %q", s)
}

func set(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
	sugar = l.Sugar()
}

// GetLogger returns the process logger, or a no-op logger before Init.
func GetLogger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func GetSugaredLogger() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	if sugar == nil {
		return zap.NewNop().Sugar()
	}
	return sugar
}

// OrDefault returns l, or the process logger when l is nil.
func OrDefault(l *zap.SugaredLogger) *zap.SugaredLogger {
	if l != nil {
		return l
	}
	return GetSugaredLogger()
}

func Sync() {
	_ = GetLogger().Sync()
}

func Trace(fn string, start time.Time) {
	GetSugaredLogger().Debugf("%s executed in %d ms", fn, time.Since(start).Milliseconds())
}

// TraceAuto logs entry and exit of the calling function:
//
//	defer logger.TraceAuto()()
func TraceAuto() func() {
	start := time.Now()
	name := "unknown"
	if pc, _, _, ok := runtime.Caller(1); ok {
		name = shortFuncName(runtime.FuncForPC(pc).Name())
	}
	s := GetSugaredLogger()
	s.Debugw("function start", "function", name)
	return func() {
		s.Debugw("function end", "function", name, "duration_ms", time.Since(start).Milliseconds())
	}
}

// shortFuncName drops the import path and package from a runtime name,
// e.g. "secretsweep/internal/services.(*Orchestrator).Run" becomes
// "(*Orchestrator).Run".
func shortFuncName(full string) string {
	_, name, _ := strings.Cut(full[strings.LastIndex(full, "/")+1:], ".")
	if name == "" {
		return full
	}
	return name
}

// MaskSecret keeps the first four characters of s and stars the rest.
func MaskSecret(s string) string {
	r := []rune(s)
	if len(r) <= 4 {
		return strings.Repeat("*", len(r))
	}
	return string(r[:4]) + strings.Repeat("*", len(r)-4)
}
