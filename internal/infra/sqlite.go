package infra

import (
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewSQLite opens a local SQLite database (pure Go driver, no cgo). The
// terminal uses it for its offline queue; tests use it with an in-memory DSN.
//
// SQLite allows a single writer, so the pool is capped at one connection and
// writers wait on the busy timeout instead of failing with SQLITE_BUSY.
func NewSQLite(path string) (*gorm.DB, error) {
	dsn := path
	if dsn == "" {
		return nil, fmt.Errorf("sqlite: ruta vacía")
	}
	if strings.Contains(dsn, "?") {
		dsn += "&"
	} else {
		dsn += "?"
	}
	dsn += "_pragma=busy_timeout(5000)"

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

