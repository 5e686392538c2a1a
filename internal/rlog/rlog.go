// Package rlog is the gateway's logger: a thin wrapper over the stdlib
// log package, tagging each line with its originating component and
// colorizing the level prefix, in the style of every cmd/*/main.go in
// the teacher corpus (plain log.Printf/log.Fatalf, no structured logging
// framework). Grounded on original_source/utils/Logger.hpp's
// info/warning/error levels and optional second log-file destination.
package rlog

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/fatih/color"
)

var (
	infoColor    = color.New(color.FgCyan)
	warningColor = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
)

// Logger tags every line with a component name, as
// original_source/utils/Logger.hpp's Log-global does for the whole
// process, generalized to one instance per component.
type Logger struct {
	component string
	std       *log.Logger
}

// New builds a Logger writing to w (typically os.Stderr) with Go's
// standard date/time prefix, tagged with component.
func New(w io.Writer, component string) *Logger {
	return &Logger{component: component, std: log.New(w, "", log.LstdFlags)}
}

// UTC switches the logger's timestamps to UTC, mirroring
// LOGGER_FLAG_TIME_UTC.
func (l *Logger) UTC() *Logger {
	l.std.SetFlags(l.std.Flags() | log.LUTC)
	return l
}

func (l *Logger) prefix(levelColor *color.Color, level string) string {
	return fmt.Sprintf("[%s] %s", l.component, levelColor.Sprint(level))
}

// Info logs an informational line.
func (l *Logger) Info(format string, args ...interface{}) {
	l.std.Printf("%s %s", l.prefix(infoColor, "INFO"), fmt.Sprintf(format, args...))
}

// Warning logs a recoverable-condition line.
func (l *Logger) Warning(format string, args ...interface{}) {
	l.std.Printf("%s %s", l.prefix(warningColor, "WARN"), fmt.Sprintf(format, args...))
}

// Error logs a failure line.
func (l *Logger) Error(format string, args ...interface{}) {
	l.std.Printf("%s %s", l.prefix(errorColor, "ERROR"), fmt.Sprintf(format, args...))
}

// Fatal logs a failure line and exits the process, matching the
// teacher's log.Fatalf convention for unrecoverable startup errors.
func (l *Logger) Fatal(format string, args ...interface{}) {
	l.Error(format, args...)
	os.Exit(1)
}

// With returns a child Logger scoped to a sub-component, e.g.
// base.With("capture") for messages from the edge source.
func (l *Logger) With(sub string) *Logger {
	return &Logger{component: l.component + "." + sub, std: l.std}
}
