// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	// PostgreSQL 驱动
	_ "github.com/lib/pq"

	"github.com/wfunc/witchtrial/models"
)

// PostgreSQL 不经ORM的 database/sql 实现
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	// 初始化表结构
	if err := initTables(db); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

// initTables 初始化数据库表结构
func initTables(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS game_records (
            id SERIAL PRIMARY KEY,
            game_id VARCHAR(255) UNIQUE NOT NULL,
            room_id VARCHAR(255) NOT NULL,
            player_count INT NOT NULL,
            rounds INT NOT NULL,
            reason VARCHAR(100) NOT NULL,
            outcome JSONB NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS death_entries (
            id SERIAL PRIMARY KEY,
            game_id VARCHAR(255) NOT NULL,
            round INT NOT NULL,
            player_id VARCHAR(255) NOT NULL,
            cause VARCHAR(50) NOT NULL,
            killer_id VARCHAR(255),
            dropped_cards INT DEFAULT 0,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS vote_rounds (
            id SERIAL PRIMARY KEY,
            game_id VARCHAR(255) NOT NULL,
            round INT NOT NULL,
            votes JSONB NOT NULL,
            imprisoned_id VARCHAR(255),
            is_tie BOOLEAN DEFAULT FALSE,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE INDEX IF NOT EXISTS idx_game_records_game_id ON game_records(game_id);
        CREATE INDEX IF NOT EXISTS idx_game_records_room_id ON game_records(room_id);
        CREATE INDEX IF NOT EXISTS idx_death_entries_game_id ON death_entries(game_id);
        CREATE INDEX IF NOT EXISTS idx_vote_rounds_game_id ON vote_rounds(game_id);
    `)

	return err
}

// SaveGameRecord 保存终局存档
func (p *PostgreSQL) SaveGameRecord(rec *models.GameRecord) error {
	outcome, err := json.Marshal(map[string]interface{}{
		"winner_ids": rec.WinnerIDs,
		"survivors":  rec.Survivors,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
        INSERT INTO game_records (game_id, room_id, player_count, rounds, reason, outcome)
        VALUES ($1, $2, $3, $4, $5, $6)
    `
	_, err = p.db.ExecContext(ctx, query,
		rec.GameID, rec.RoomID, rec.PlayerCount, rec.Rounds, rec.Reason, outcome)
	return err
}

// SaveDeathEntries 死亡日志整批落库，单事务
func (p *PostgreSQL) SaveDeathEntries(gameID string, entries []models.DeathEntry) error {
	if len(entries) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	query := `
        INSERT INTO death_entries (game_id, round, player_id, cause, killer_id, dropped_cards)
        VALUES ($1, $2, $3, $4, $5, $6)
    `
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, query,
			gameID, e.Round, e.PlayerID, e.Cause, e.KillerID, e.DroppedCards); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// SaveVoteRounds 投票历史整批落库，单事务
func (p *PostgreSQL) SaveVoteRounds(gameID string, rounds []models.VoteRound) error {
	if len(rounds) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	query := `
        INSERT INTO vote_rounds (game_id, round, votes, imprisoned_id, is_tie)
        VALUES ($1, $2, $3, $4, $5)
    `
	for _, v := range rounds {
		votes, err := json.Marshal(v.VoteCounts)
		if err != nil {
			tx.Rollback()
			return err
		}
		if _, err := tx.ExecContext(ctx, query,
			gameID, v.Round, votes, v.ImprisonedID, v.IsTie); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// GetGameSummary 聚合查询一局的存档
func (p *PostgreSQL) GetGameSummary(gameID string) (*models.GameSummary, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	summary := &models.GameSummary{}
	var outcome []byte
	err := p.db.QueryRowContext(ctx, `
        SELECT game_id, room_id, player_count, rounds, reason, outcome, created_at
        FROM game_records WHERE game_id = $1`, gameID).
		Scan(&summary.Record.GameID, &summary.Record.RoomID, &summary.Record.PlayerCount,
			&summary.Record.Rounds, &summary.Record.Reason, &outcome, &summary.Record.FinishedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	var out struct {
		WinnerIDs []string `json:"winner_ids"`
		Survivors []string `json:"survivors"`
	}
	if err := json.Unmarshal(outcome, &out); err != nil {
		return nil, err
	}
	summary.Record.WinnerIDs = out.WinnerIDs
	summary.Record.Survivors = out.Survivors

	rows, err := p.db.QueryContext(ctx, `
        SELECT round, player_id, cause, COALESCE(killer_id, ''), dropped_cards
        FROM death_entries WHERE game_id = $1 ORDER BY round, id`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var e models.DeathEntry
		if err := rows.Scan(&e.Round, &e.PlayerID, &e.Cause, &e.KillerID, &e.DroppedCards); err != nil {
			return nil, err
		}
		summary.Deaths = append(summary.Deaths, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	voteRows, err := p.db.QueryContext(ctx, `
        SELECT round, votes, COALESCE(imprisoned_id, ''), is_tie
        FROM vote_rounds WHERE game_id = $1 ORDER BY round`, gameID)
	if err != nil {
		return nil, err
	}
	defer voteRows.Close()
	for voteRows.Next() {
		var v models.VoteRound
		var votes []byte
		if err := voteRows.Scan(&v.Round, &votes, &v.ImprisonedID, &v.IsTie); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(votes, &v.VoteCounts); err != nil {
			return nil, err
		}
		summary.VoteRounds = append(summary.VoteRounds, v)
	}
	if err := voteRows.Err(); err != nil {
		return nil, err
	}

	return summary, nil
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
