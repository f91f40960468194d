// Package logging is a small leveled wrapper around the standard logger.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

// Level represents severity.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[string]Level{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
}

var currentLevel atomic.Int32

var base atomic.Pointer[log.Logger]

func init() {
	currentLevel.Store(int32(LevelInfo))
	base.Store(log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lmicroseconds))
}

// SetLevel parses and sets the global level. Unknown names are ignored.
func SetLevel(s string) {
	l, ok := levelNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return
	}
	currentLevel.Store(int32(l))
}

// GetLevel returns the current global level.
func GetLevel() Level { return Level(currentLevel.Load()) }

// SetOutput redirects all log output. The TUI points this at a file so the
// terminal stays clean.
func SetOutput(w io.Writer) {
	base.Store(log.New(w, "", log.Ldate|log.Ltime|log.Lmicroseconds))
}

func logf(l Level, format string, args ...any) {
	if GetLevel() > l {
		return
	}
	prefix := "INFO"
	switch l {
	case LevelDebug:
		prefix = "DEBUG"
	case LevelWarn:
		prefix = "WARN"
	case LevelError:
		prefix = "ERROR"
	}
	// avoid fmt re-parsing '%' in pre-formatted messages
	if len(args) == 0 {
		base.Load().Printf("[%s] %s", prefix, format)
		return
	}
	base.Load().Printf("[%s] %s", prefix, fmt.Sprintf(format, args...))
}

func Debugf(format string, a ...any) { logf(LevelDebug, format, a...) }
func Infof(format string, a ...any)  { logf(LevelInfo, format, a...) }
func Warnf(format string, a ...any)  { logf(LevelWarn, format, a...) }
func Errorf(format string, a ...any) { logf(LevelError, format, a...) }
