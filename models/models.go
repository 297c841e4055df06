// models/models.go
package models

import (
	"time"
)

// GameRecord 终局存档
type GameRecord struct {
	GameID      string    `json:"game_id"`
	RoomID      string    `json:"room_id"`
	PlayerCount int       `json:"player_count"`
	Rounds      int       `json:"rounds"`
	Reason      string    `json:"reason"`
	WinnerIDs   []string  `json:"winner_ids"`
	Survivors   []string  `json:"survivors"`
	FinishedAt  time.Time `json:"finished_at"`
}

// DeathEntry 死亡日志存档条目
type DeathEntry struct {
	Round        int    `json:"round"`
	PlayerID     string `json:"player_id"`
	Cause        string `json:"cause"`
	KillerID     string `json:"killer_id,omitempty"`
	DroppedCards int    `json:"dropped_cards"`
}

// VoteRound 每回合投票存档
type VoteRound struct {
	Round        int            `json:"round"`
	VoteCounts   map[string]int `json:"vote_counts"`
	ImprisonedID string         `json:"imprisoned_id,omitempty"`
	IsTie        bool           `json:"is_tie"`
}

// GameSummary 管理端查询的聚合视图
type GameSummary struct {
	Record     GameRecord   `json:"record"`
	Deaths     []DeathEntry `json:"deaths"`
	VoteRounds []VoteRound  `json:"vote_rounds"`
}
