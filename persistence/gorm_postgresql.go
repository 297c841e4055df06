// persistence/gorm_postgresql.go
package persistence

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wfunc/witchtrial/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// 配置GORM日志
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	if err := autoMigrate(db); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

// autoMigrate 自动迁移表结构
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.GormGameRecord{},
		&models.GormDeathEntry{},
		&models.GormVoteRound{},
	)
}

// SaveGameRecord 保存终局存档
func (p *GormPostgreSQL) SaveGameRecord(rec *models.GameRecord) error {
	winners := make([]interface{}, 0, len(rec.WinnerIDs))
	for _, id := range rec.WinnerIDs {
		winners = append(winners, id)
	}
	survivors := make([]interface{}, 0, len(rec.Survivors))
	for _, id := range rec.Survivors {
		survivors = append(survivors, id)
	}

	record := models.GormGameRecord{
		GameID:      rec.GameID,
		RoomID:      rec.RoomID,
		PlayerCount: rec.PlayerCount,
		Rounds:      rec.Rounds,
		Reason:      rec.Reason,
		Outcome: map[string]interface{}{
			"winner_ids": winners,
			"survivors":  survivors,
		},
	}
	return p.db.Create(&record).Error
}

// SaveDeathEntries 保存死亡日志，同一事务内整批写入
func (p *GormPostgreSQL) SaveDeathEntries(gameID string, entries []models.DeathEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return p.db.Transaction(func(tx *gorm.DB) error {
		for _, e := range entries {
			row := models.GormDeathEntry{
				GameID:       gameID,
				Round:        e.Round,
				PlayerID:     e.PlayerID,
				Cause:        e.Cause,
				KillerID:     e.KillerID,
				DroppedCards: e.DroppedCards,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveVoteRounds 保存投票历史，同一事务内整批写入
func (p *GormPostgreSQL) SaveVoteRounds(gameID string, rounds []models.VoteRound) error {
	if len(rounds) == 0 {
		return nil
	}
	return p.db.Transaction(func(tx *gorm.DB) error {
		for _, v := range rounds {
			votes := make(map[string]interface{}, len(v.VoteCounts))
			for target, n := range v.VoteCounts {
				votes[target] = n
			}
			row := models.GormVoteRound{
				GameID:       gameID,
				Round:        v.Round,
				Votes:        votes,
				ImprisonedID: v.ImprisonedID,
				IsTie:        v.IsTie,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GetGameSummary 聚合查询一局的存档
func (p *GormPostgreSQL) GetGameSummary(gameID string) (*models.GameSummary, error) {
	var record models.GormGameRecord
	if err := p.db.Where("game_id = ?", gameID).First(&record).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	summary := &models.GameSummary{
		Record: models.GameRecord{
			GameID:      record.GameID,
			RoomID:      record.RoomID,
			PlayerCount: record.PlayerCount,
			Rounds:      record.Rounds,
			Reason:      record.Reason,
			WinnerIDs:   stringSlice(record.Outcome["winner_ids"]),
			Survivors:   stringSlice(record.Outcome["survivors"]),
			FinishedAt:  record.CreatedAt,
		},
	}

	var deaths []models.GormDeathEntry
	if err := p.db.Where("game_id = ?", gameID).Order("round, id").Find(&deaths).Error; err != nil {
		return nil, err
	}
	for _, d := range deaths {
		summary.Deaths = append(summary.Deaths, models.DeathEntry{
			Round:        d.Round,
			PlayerID:     d.PlayerID,
			Cause:        d.Cause,
			KillerID:     d.KillerID,
			DroppedCards: d.DroppedCards,
		})
	}

	var votes []models.GormVoteRound
	if err := p.db.Where("game_id = ?", gameID).Order("round").Find(&votes).Error; err != nil {
		return nil, err
	}
	for _, v := range votes {
		counts := make(map[string]int, len(v.Votes))
		for target, n := range v.Votes {
			if f, ok := n.(float64); ok {
				counts[target] = int(f)
			}
		}
		summary.VoteRounds = append(summary.VoteRounds, models.VoteRound{
			Round:        v.Round,
			VoteCounts:   counts,
			ImprisonedID: v.ImprisonedID,
			IsTie:        v.IsTie,
		})
	}
	return summary, nil
}

func stringSlice(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
