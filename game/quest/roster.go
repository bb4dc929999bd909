package quest

import (
	"context"

	"github.com/kasuganosora/questd/model"
	"gorm.io/gorm"
)

// Roster lists the player population the lifecycle jobs run over.
type Roster interface {
	ListPlayers(ctx context.Context) ([]model.Player, error)
}

// DBRoster reads the roster from the players table.
type DBRoster struct {
	db *gorm.DB
}

// NewDBRoster creates a DBRoster.
func NewDBRoster(db *gorm.DB) *DBRoster {
	return &DBRoster{db: db}
}

// ListPlayers returns every player's id and display name.
func (r *DBRoster) ListPlayers(ctx context.Context) ([]model.Player, error) {
	var players []model.Player
	err := r.db.WithContext(ctx).Select("id, display_name").Order("id").Find(&players).Error
	return players, err
}
