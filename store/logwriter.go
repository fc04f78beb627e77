package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// SqlWriter persists zerolog events at or above a minimum level into the
// server_events table.
type SqlWriter struct {
	db       *gorm.DB
	minLevel zerolog.Level
}

var _ zerolog.LevelWriter = (*SqlWriter)(nil)

func NewSqlWriter(db *gorm.DB, minLevel zerolog.Level) *SqlWriter {
	return &SqlWriter{db: db, minLevel: minLevel}
}

func (l *SqlWriter) WriteLevel(level zerolog.Level, p []byte) (n int, err error) {
	if level < l.minLevel {
		return len(p), nil
	}

	return l.Write(p)
}

func (l *SqlWriter) Write(p []byte) (n int, err error) {
	var evt map[string]interface{}
	d := json.NewDecoder(bytes.NewReader(p))
	d.UseNumber()
	err = d.Decode(&evt)
	if err != nil {
		return 0, fmt.Errorf("cannot decode event: %s", err)
	}

	level, _ := evt[zerolog.LevelFieldName].(string)
	message, _ := evt[zerolog.MessageFieldName].(string)
	caller, _ := evt[zerolog.CallerFieldName].(string)

	var timestamp int64
	switch ts := evt[zerolog.TimestampFieldName].(type) {
	case json.Number:
		timestamp, _ = ts.Int64()
	case string:
		if t, err := time.Parse(zerolog.TimeFieldFormat, ts); err == nil {
			timestamp = t.Unix()
		}
	}

	// Remaining fields are kept as a JSON object
	delete(evt, zerolog.LevelFieldName)
	delete(evt, zerolog.TimestampFieldName)
	delete(evt, zerolog.MessageFieldName)
	delete(evt, zerolog.CallerFieldName)

	var extraFields []byte
	if len(evt) > 0 {
		extraFields, err = json.Marshal(evt)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error marshaling extra fields:", err)
		}
	}

	var formattedCaller *string
	if caller != "" {
		formattedCaller = &caller
		if cwd, err := os.Getwd(); err == nil {
			if rel, err := filepath.Rel(cwd, caller); err == nil {
				formattedCaller = &rel
			}
		}
	}

	event := ServerEvent{
		Level:     level,
		Timestamp: timestamp,
		Caller:    formattedCaller,
		Message:   message,
		Fields:    string(extraFields),
	}

	// Errors go to stderr; logging them through zerolog would recurse.
	if err = l.db.Create(&event).Error; err != nil {
		fmt.Fprintln(os.Stderr, "Error inserting log into DB:", err)
	}

	return len(p), nil
}
