package testutil

import (
	"path/filepath"
	"testing"

	"github.com/kasuganosora/questd/cache"
	"github.com/kasuganosora/questd/config"
	dbadapter "github.com/kasuganosora/questd/db"
	dbsqlite "github.com/kasuganosora/questd/db/sqlite"
	"github.com/kasuganosora/questd/model"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// SetupTestDB creates an in-memory SQLite DB and runs AutoMigrate.
// Each call gets its own private database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return openTestDB(t, dbsqlite.MemoryPath)
}

// SetupFileTestDB creates a file-backed SQLite DB under t.TempDir(), for
// tests that need real transactions across goroutines.
func SetupFileTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return openTestDB(t, filepath.Join(t.TempDir(), "questd_test.db"))
}

func openTestDB(t *testing.T, path string) *gorm.DB {
	t.Helper()
	db, err := dbadapter.Open(config.DatabaseConfig{
		Mode:       dbadapter.ModeSQLite,
		SQLitePath: path,
	}, nil)
	require.NoError(t, err, "SetupTestDB: Open")
	require.NoError(t, model.AutoMigrate(db), "SetupTestDB: AutoMigrate")
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// SeedPlayers inserts players with the given display names and returns them.
func SeedPlayers(t *testing.T, db *gorm.DB, names ...string) []model.Player {
	t.Helper()
	players := make([]model.Player, len(names))
	for i, n := range names {
		players[i] = model.Player{DisplayName: n}
	}
	if len(players) > 0 {
		require.NoError(t, db.Create(&players).Error, "SeedPlayers")
	}
	return players
}

// SetupTestCache creates LocalCache and LocalPubSub (no Redis required).
func SetupTestCache(t *testing.T) (cache.Cache, cache.PubSub) {
	t.Helper()
	cfg := cache.CacheConfig{} // empty RedisAddr → LocalCache
	c, err := cache.NewCache(cfg)
	require.NoError(t, err, "SetupTestCache: NewCache")
	ps, err := cache.NewPubSub(cfg)
	require.NoError(t, err, "SetupTestCache: NewPubSub")
	return c, ps
}
