// Package log provides structured logging for the orchestrator.
package log

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the root logger used by all components.
var Logger zerolog.Logger

func init() {
	Init(os.Getenv("ZOMBIE_LOG_LEVEL"))
}

// Init configures the root logger with the given level name.
// Unknown or empty names fall back to info.
func Init(levelName string) {
	var level zerolog.Level
	switch strings.ToLower(levelName) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}

	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	Logger = zerolog.New(output).Level(level).With().Timestamp().Logger()
}

// WithComponent returns a logger tagged with a component name.
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithNode returns a logger tagged with a node name.
func WithNode(component, node string) zerolog.Logger {
	return Logger.With().Str("component", component).Str("node", node).Logger()
}
