// models/gorm_models.go
package models

import (
	"gorm.io/gorm"
)

// GormGameRecord 终局存档表
type GormGameRecord struct {
	gorm.Model
	GameID      string                 `gorm:"uniqueIndex;not null"`
	RoomID      string                 `gorm:"index;not null"`
	PlayerCount int                    `gorm:"not null"`
	Rounds      int                    `gorm:"not null"`
	Reason      string                 `gorm:"not null"`
	Outcome     map[string]interface{} `gorm:"type:jsonb"` // winner_ids / survivors
}

// GormDeathEntry 死亡日志表
type GormDeathEntry struct {
	gorm.Model
	GameID       string `gorm:"index;not null"`
	Round        int    `gorm:"not null"`
	PlayerID     string `gorm:"not null"`
	Cause        string `gorm:"not null"`
	KillerID     string
	DroppedCards int `gorm:"default:0"`
}

// GormVoteRound 投票历史表
type GormVoteRound struct {
	gorm.Model
	GameID       string                 `gorm:"index;not null"`
	Round        int                    `gorm:"not null"`
	Votes        map[string]interface{} `gorm:"type:jsonb"`
	ImprisonedID string
	IsTie        bool `gorm:"default:false"`
}
