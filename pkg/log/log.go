package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var (
	// Logger is the global logger instance
	Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
)

// Level represents log level
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init initializes the global logger
func Init(cfg Config) {
	zerolog.SetGlobalLevel(cfg.Level.zerolog())

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case DebugLevel:
		return zerolog.DebugLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Valid reports whether l names a supported level
func (l Level) Valid() bool {
	switch l {
	case DebugLevel, InfoLevel, WarnLevel, ErrorLevel:
		return true
	}
	return false
}

// WithComponent creates a child logger with component field
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithUserID derives a logger from parent with a user_id field
func WithUserID(parent zerolog.Logger, userID string) zerolog.Logger {
	return parent.With().Str("user_id", userID).Logger()
}

// WithOrderID derives a logger from parent with an order_id field
func WithOrderID(parent zerolog.Logger, orderID string) zerolog.Logger {
	return parent.With().Str("order_id", orderID).Logger()
}

// Warn logs msg at warn level on the global Logger
func Warn(msg string) {
	Logger.Warn().Msg(msg)
}
