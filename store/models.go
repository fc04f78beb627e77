package store

import (
	"time"
)

// Script is a stored unit of Lua source.
type Script struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"type:text;not null" json:"name"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime;index" json:"createdAt"`
}

func (Script) TableName() string { return "scripts" }

// AccessLog records one fetch of a script through the loader endpoint.
// Rows are removed together with their script by ScriptStore.Delete.
type AccessLog struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ScriptID  int64     `gorm:"not null;index" json:"scriptId"`
	IP        *string   `gorm:"type:text" json:"ip"`
	UserAgent *string   `gorm:"type:text" json:"userAgent"`
	Timestamp time.Time `gorm:"not null;autoCreateTime;index" json:"timestamp"`
}

func (AccessLog) TableName() string { return "logs" }

// ServerEvent is a persisted zerolog event, written by SqlWriter.
type ServerEvent struct {
	ID        int64   `gorm:"primaryKey;autoIncrement" json:"id"`
	Level     string  `gorm:"index" json:"level"`
	Timestamp int64   `gorm:"index" json:"timestamp"`
	Caller    *string `json:"caller"`
	Message   string  `json:"message"`
	Fields    string  `gorm:"type:text" json:"fields"`
}

func (ServerEvent) TableName() string { return "server_events" }

// ScriptPatch carries the optional fields of a script update. Nil fields
// are left untouched.
type ScriptPatch struct {
	Name    *string `json:"name"`
	Content *string `json:"content"`
}

// Empty reports whether the patch changes nothing.
func (p ScriptPatch) Empty() bool {
	return p.Name == nil && p.Content == nil
}

type ScriptFilter struct {
	// Search is a case-insensitive substring of the script name.
	Search string
}

type AccessLogFilter struct {
	ScriptID *int64
	Limit    int
}

// Stats is the dashboard summary.
type Stats struct {
	Scripts  int64 `json:"scripts"`
	Accesses int64 `json:"accesses"`
}
