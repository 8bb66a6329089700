package config

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the root logger from log_level and log_format.
func (c *Config) NewLogger(w io.Writer) zerolog.Logger {
	if strings.EqualFold(c.LogFormat, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	level := zerolog.InfoLevel
	if c.LogLevel != "" {
		if l, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err == nil {
			level = l
		}
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
