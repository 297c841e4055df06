package services

import (
	"time"

	"github.com/wfunc/witchtrial/game"
	"github.com/wfunc/witchtrial/models"
	"github.com/wfunc/witchtrial/persistence"
)

// RecordService 把结束的对局落库并对外提供查询。
// 实现 room.Recorder。
type RecordService struct {
	db persistence.Database
}

func NewRecordService(db persistence.Database) *RecordService {
	return &RecordService{db: db}
}

// RecordFinishedGame 存档一局：终局记录、死亡日志与投票历史
func (s *RecordService) RecordFinishedGame(gs *game.GameState, result *game.GameResult) error {
	rec := &models.GameRecord{
		GameID:      gs.ID,
		RoomID:      gs.RoomID,
		PlayerCount: len(gs.PlayerOrder),
		Rounds:      result.Round,
		Reason:      result.Reason,
		WinnerIDs:   result.WinnerIDs,
		Survivors:   result.Survivors,
		FinishedAt:  time.Now(),
	}
	if err := s.db.SaveGameRecord(rec); err != nil {
		return err
	}

	deaths := make([]models.DeathEntry, 0, len(gs.DeathLog))
	for _, d := range gs.DeathLog {
		deaths = append(deaths, models.DeathEntry{
			Round:        d.Round,
			PlayerID:     d.PlayerID,
			Cause:        string(d.Cause),
			KillerID:     d.KillerID,
			DroppedCards: len(d.DroppedCards),
		})
	}
	if err := s.db.SaveDeathEntries(gs.ID, deaths); err != nil {
		return err
	}

	votes := make([]models.VoteRound, 0, len(gs.VoteHistory))
	for _, v := range gs.VoteHistory {
		votes = append(votes, models.VoteRound{
			Round:        v.Round,
			VoteCounts:   v.VoteCounts,
			ImprisonedID: v.ImprisonedID,
			IsTie:        v.IsTie,
		})
	}
	return s.db.SaveVoteRounds(gs.ID, votes)
}

// GetGameSummary 管理端查询
func (s *RecordService) GetGameSummary(gameID string) (*models.GameSummary, error) {
	return s.db.GetGameSummary(gameID)
}
