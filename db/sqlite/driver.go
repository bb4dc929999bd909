package sqlite

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Open creates a GORM *DB backed by SQLite.
func Open(path string, gc *gorm.Config) (*gorm.DB, error) {
	if gc.Logger == nil {
		gc.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(sqlite.Open(path), gc)
	if err != nil {
		return nil, err
	}

	// sqlite allows one writer, and every new connection to :memory: is a
	// fresh empty database. One connection serializes transactions instead
	// of failing them with SQLITE_BUSY.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}
