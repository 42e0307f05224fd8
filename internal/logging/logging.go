package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global zerolog logger. format is "console" or "json".
func Init(level, format string) {
	InitWriter(os.Stdout, level, format)
}

// InitWriter is Init with an explicit destination.
func InitWriter(out io.Writer, level, format string) {
	zerolog.SetGlobalLevel(ParseLevel(level))

	if format == "json" {
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
		return
	}
	w := zerolog.ConsoleWriter{Out: out}
	log.Logger = zerolog.New(w).With().Timestamp().Caller().Logger()
}

// ParseLevel accepts zerolog level names plus a few deployment aliases.
// Anything unrecognised is info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "dev", "development":
		return zerolog.DebugLevel
	case "prod", "production":
		return zerolog.InfoLevel
	case "warning":
		return zerolog.WarnLevel
	}
	l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return l
}
