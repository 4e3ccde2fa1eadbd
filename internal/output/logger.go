// Package output provides colored CLI feedback.
package output

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// Logger provides colored output functions for CLI feedback.
type Logger struct {
	out     io.Writer
	errOut  io.Writer
	verbose bool
}

// DefaultLogger is the logger used when none is supplied.
var DefaultLogger = NewLogger()

// NewLogger creates a new Logger instance.
func NewLogger() *Logger {
	return &Logger{
		out:    os.Stdout,
		errOut: os.Stderr,
	}
}

// SetNoColor disables colored output.
func (l *Logger) SetNoColor(noColor bool) {
	color.NoColor = noColor
}

// SetVerbose enables verbose logging.
func (l *Logger) SetVerbose(verbose bool) {
	l.verbose = verbose
}

// SetOutput redirects both streams, for tests.
func (l *Logger) SetOutput(out, errOut io.Writer) {
	l.out = out
	l.errOut = errOut
}

// Info prints an informational message in default color.
func (l *Logger) Info(format string, args ...interface{}) {
	fmt.Fprintf(l.out, format+"\n", args...)
}

// Success prints a success message in green with a checkmark.
func (l *Logger) Success(format string, args ...interface{}) {
	color.New(color.FgGreen).Fprintf(l.out, "✓ "+format+"\n", args...)
}

// Warn prints a warning message in yellow.
func (l *Logger) Warn(format string, args ...interface{}) {
	color.New(color.FgYellow).Fprintf(l.errOut, "! "+format+"\n", args...)
}

// Error prints an error message in red.
func (l *Logger) Error(format string, args ...interface{}) {
	color.New(color.FgRed).Fprintf(l.errOut, "✗ "+format+"\n", args...)
}

// Debug prints a message only when verbose mode is enabled.
func (l *Logger) Debug(format string, args ...interface{}) {
	if !l.verbose {
		return
	}
	fmt.Fprintf(l.errOut, format+"\n", args...)
}
