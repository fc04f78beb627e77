package main

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"luacrypt/store"
)

// setupLogger writes to the console and, when persistence is on, copies
// warn-and-above events into the server_events table.
func setupLogger(config *Config, out io.Writer, db *gorm.DB) zerolog.Logger {
	level, err := zerolog.ParseLevel(config.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	if out == nil {
		out = os.Stdout
	}

	consoleWriter := zerolog.ConsoleWriter{Out: out, TimeFormat: "2006-01-02 15:04:05"}

	var writer io.Writer = consoleWriter
	if config.Log.Persist && db != nil {
		writer = zerolog.MultiLevelWriter(consoleWriter, store.NewSqlWriter(db, zerolog.WarnLevel))
	}

	return zerolog.New(writer).Level(level).With().Timestamp().Caller().Logger()
}
