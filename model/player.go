package model

import "time"

// Player is a registered game player. Only the roster projection
// (id + display name) is used by the quest engine.
type Player struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	DisplayName string    `gorm:"size:64;not null" json:"display_name"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}
