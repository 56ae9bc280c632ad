package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	loggerMu sync.RWMutex
	logger   = zerolog.New(os.Stdout).With().Timestamp().Logger()
)

// InitLogger configures the global logger to write JSON lines to stdout and,
// if file is set, to a size-rotated log file.
func InitLogger(file string, maxSizeMB, maxBackups, maxAgeDays int, compress bool, level string) {
	writers := []io.Writer{os.Stdout}
	if file != "" {
		if dir := filepath.Dir(file); dir != "." {
			_ = os.MkdirAll(dir, 0o755)
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
			Compress:   compress,
		})
	}

	l := zerolog.New(io.MultiWriter(writers...)).With().Timestamp().Logger().Level(parseLevel(level))

	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
}

// SetLogLevel changes the level of the global logger. Unknown levels fall
// back to info.
func SetLogLevel(level string) {
	loggerMu.Lock()
	logger = logger.Level(parseLevel(level))
	loggerMu.Unlock()
}

// SetLoggerForTest replaces the global logger.
func SetLoggerForTest(l zerolog.Logger) {
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
}

func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

func current() zerolog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// Debug logs msg with the given key/value pairs at debug level.
func Debug(msg string, kv ...interface{}) {
	l := current()
	withFields(l.Debug(), kv).Msg(msg)
}

// Info logs msg with the given key/value pairs at info level.
func Info(msg string, kv ...interface{}) {
	l := current()
	withFields(l.Info(), kv).Msg(msg)
}

// Warn logs msg with the given key/value pairs at warn level.
func Warn(msg string, kv ...interface{}) {
	l := current()
	withFields(l.Warn(), kv).Msg(msg)
}

// Error logs msg with the given key/value pairs at error level.
func Error(msg string, kv ...interface{}) {
	l := current()
	withFields(l.Error(), kv).Msg(msg)
}

// withFields attaches alternating key/value pairs. A trailing key without a
// value is dropped.
func withFields(e *zerolog.Event, kv []interface{}) *zerolog.Event {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		switch v := kv[i+1].(type) {
		case error:
			e = e.AnErr(key, v)
		default:
			e = e.Interface(key, v)
		}
	}
	return e
}
