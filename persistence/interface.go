// persistence/interface.go
package persistence

import (
	"fmt"

	"github.com/wfunc/witchtrial/models"
)

// Database 终局存档接口。引擎结算绝不读库，落库只在游戏结束后。
type Database interface {
	SaveGameRecord(rec *models.GameRecord) error
	SaveDeathEntries(gameID string, entries []models.DeathEntry) error
	SaveVoteRounds(gameID string, rounds []models.VoteRound) error
	GetGameSummary(gameID string) (*models.GameSummary, error)
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = fmt.Errorf("record not found")
)
