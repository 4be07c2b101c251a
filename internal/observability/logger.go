package observability

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
)

type Level int

const (
	LevelError Level = iota
	LevelNotice
	LevelInfo
	LevelDebug
)

// ParseLevel maps a config string to a Level, defaulting to error.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "notice":
		return LevelNotice
	default:
		return LevelError
	}
}

// Logger writes "[LEVEL] msg key=value ..." lines through the std log package.
type Logger struct {
	mu    sync.RWMutex
	level Level
	out   *log.Logger
}

func NewLogger(w io.Writer, level Level) *Logger {
	return &Logger{
		level: level,
		out:   log.New(w, "", log.Ldate|log.Ltime|log.Lmicroseconds|log.LUTC),
	}
}

func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Logger) enabled(level Level) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return level <= l.level
}

func (l *Logger) LogDebug(msg string, fields ...Field) {
	if l.enabled(LevelDebug) {
		l.write("DEBUG", msg, nil, fields)
	}
}

func (l *Logger) LogInfo(msg string, fields ...Field) {
	if l.enabled(LevelInfo) {
		l.write("INFO", msg, nil, fields)
	}
}

// LogNotice is for operator-relevant events that are not failures.
func (l *Logger) LogNotice(msg string, fields ...Field) {
	if l.enabled(LevelNotice) {
		l.write("NOTICE", msg, nil, fields)
	}
}

func (l *Logger) LogError(msg string, err error, fields ...Field) {
	l.write("ERROR", msg, err, fields)
}

func (l *Logger) LogCritical(msg string, err error, fields ...Field) {
	l.write("CRITICAL", msg, err, fields)
}

func (l *Logger) write(tag, msg string, err error, fields []Field) {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(tag)
	b.WriteString("] ")
	b.WriteString(msg)
	for _, f := range fields {
		fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
	}
	if err != nil {
		fmt.Fprintf(&b, " err=%q", err.Error())
	}
	l.out.Print(b.String())
}
