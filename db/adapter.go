package db

import (
	"fmt"

	"github.com/kasuganosora/questd/config"
	dbmysql "github.com/kasuganosora/questd/db/mysql"
	dbsqlite "github.com/kasuganosora/questd/db/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	ModeSQLite = "sqlite"
	ModeMySQL  = "mysql"
)

// Open returns a *gorm.DB for the configured database mode. Failed and
// slow queries are logged through logger; a nil logger keeps gorm silent.
func Open(cfg config.DatabaseConfig, logger *zap.Logger) (*gorm.DB, error) {
	gc := &gorm.Config{TranslateError: true}
	if logger != nil {
		gc.Logger = NewLogger(logger, cfg.SlowQuery)
	}
	switch cfg.Mode {
	case ModeSQLite:
		return dbsqlite.Open(cfg.SQLitePath, gc)
	case ModeMySQL:
		return dbmysql.Open(cfg.MySQLDSN, gc, dbmysql.Pool{
			MaxOpen: cfg.MySQLMaxOpen,
			MaxIdle: cfg.MySQLMaxIdle,
			MaxLife: cfg.MySQLMaxLife,
		})
	default:
		return nil, fmt.Errorf("db: unknown mode %q", cfg.Mode)
	}
}
