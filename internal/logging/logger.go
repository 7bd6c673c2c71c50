package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

// Level represents the severity of a log message.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// Logger defines the minimal printf-style logging contract used across the
// engine. Components depend on this interface, never on the file logger.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Nop returns a logger that discards all output.
func Nop() Logger {
	return nopLogger{}
}

// OrNop returns logger when non-nil, otherwise a no-op logger.
func OrNop(logger Logger) Logger {
	if logger == nil {
		return Nop()
	}
	return logger
}

var (
	rootOnce sync.Once
	rootFile *os.File
	rootSink *log.Logger
	rootLvl  = InfoLevel
	rootMu   sync.Mutex
)

// fileLogger writes timestamped component-tagged lines to the shared
// taedam-debug.log sink.
type fileLogger struct {
	component string
}

// SetLevel sets the minimum level emitted by all component loggers.
func SetLevel(level Level) {
	rootMu.Lock()
	rootLvl = level
	rootMu.Unlock()
}

// ParseLevel maps a config string onto a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

func openRoot() {
	rootOnce.Do(func() {
		dir := os.Getenv("TAEDAM_LOG_DIR")
		if dir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return
			}
			dir = home
		}
		file, err := os.OpenFile(filepath.Join(dir, "taedam-debug.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.Printf("logging: open log file: %v", err)
			return
		}
		rootFile = file
		rootSink = log.New(file, "", 0)
	})
}

// NewComponentLogger returns a logger tagged with the given component name.
func NewComponentLogger(component string) Logger {
	openRoot()
	return &fileLogger{component: component}
}

func (l *fileLogger) write(level Level, format string, args ...any) {
	rootMu.Lock()
	min := rootLvl
	sink := rootSink
	rootMu.Unlock()
	if level < min || sink == nil {
		return
	}

	_, file, line, ok := runtime.Caller(2)
	if ok {
		file = filepath.Base(file)
	} else {
		file, line = "???", 0
	}

	// 2026-01-02 15:04:05 [INFO] [Dispatcher] dispatcher.go:42 - message
	rootMu.Lock()
	defer rootMu.Unlock()
	sink.Printf("%s [%s] [%s] %s:%d - %s",
		time.Now().Format("2006-01-02 15:04:05"),
		levelString(level), l.component, file, line,
		fmt.Sprintf(format, args...))
}

func (l *fileLogger) Debug(format string, args ...any) { l.write(DebugLevel, format, args...) }
func (l *fileLogger) Info(format string, args ...any)  { l.write(InfoLevel, format, args...) }
func (l *fileLogger) Warn(format string, args ...any)  { l.write(WarnLevel, format, args...) }
func (l *fileLogger) Error(format string, args ...any) { l.write(ErrorLevel, format, args...) }

func levelString(level Level) string {
	switch level {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	}
	return "?"
}

// Close flushes and closes the shared log file. Intended for process shutdown.
func Close() error {
	if rootFile != nil {
		return rootFile.Close()
	}
	return nil
}
