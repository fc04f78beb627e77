package store

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open connects to the configured backend and wraps the connection in gorm.
// SQLite is limited to one open connection so writers never race for the
// file lock.
func Open(driver, dsn string) (*gorm.DB, *sql.DB, error) {
	var (
		sqlDB     *sql.DB
		dialector gorm.Dialector
		err       error
	)

	switch driver {
	case DriverSQLite:
		sqlDB, err = sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite %q: %w", dsn, err)
		}
		sqlDB.SetMaxOpenConns(1)
		dialector = sqlite.New(sqlite.Config{Conn: sqlDB})
	case DriverPostgres:
		sqlDB, err = sql.Open("pgx", dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		dialector = postgres.New(postgres.Config{Conn: sqlDB})
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, nil, fmt.Errorf("open gorm: %w", err)
	}

	return gormDB, sqlDB, nil
}

// AutoMigrate creates or updates the scripts, logs and server_events tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Script{}, &AccessLog{}, &ServerEvent{})
}
