package game

import (
	"time"

	"github.com/wfunc/witchtrial/card"
)

// ActionType 行动类型，目前只有用牌一种
type ActionType string

const ActionUseCard ActionType = "use_card"

// PlayerAction 玩家在夜晚阶段提交的行动。每个玩家每回合至多一条，后提交覆盖先提交。
type PlayerAction struct {
	PlayerID string          `json:"player_id"`
	Type     ActionType      `json:"type"`
	CardID   string          `json:"card_id"`
	CardType card.Type       `json:"card_type"`
	TargetID string          `json:"target_id,omitempty"`
	Round    int             `json:"round"`
	Seq      int             `json:"seq"` // 提交顺序，稳定排序的次级键
	At       time.Time       `json:"at"`
}

// Vote 投票记录。同一投票者后投覆盖先投。
type Vote struct {
	VoterID  string    `json:"voter_id"`
	TargetID string    `json:"target_id"`
	Round    int       `json:"round"`
	At       time.Time `json:"at"`
}

// Outcome 结算阶段每条行动的结构化结果。结算期的失效情况退化为
// 无副作用的结果记录，绝不是错误。
type Outcome string

const (
	OutcomeKilled   Outcome = "killed"
	OutcomeMissed   Outcome = "missed"   // 目标已死亡（含本回合早先被杀）
	OutcomeBlocked  Outcome = "blocked"  // 被结界挡下
	OutcomeDenied   Outcome = "denied"   // 攻击配额耗尽
	OutcomeRevealed Outcome = "revealed" // 侦测成功
	OutcomeChecked  Outcome = "checked"  // 查验成功
	OutcomeShielded Outcome = "shielded" // 结界生效
	OutcomeDropped  Outcome = "dropped"  // 行动者死亡或被监禁，行动作废
)

// ResolvedAction pairs a submitted action with its resolution outcome.
// Appended to the action history once per resolved round.
type ResolvedAction struct {
	Action  PlayerAction `json:"action"`
	Outcome Outcome      `json:"outcome"`
}

// VoteResult 每回合投票结算快照，写入历史后不再修改
type VoteResult struct {
	Round        int                 `json:"round"`
	Votes        map[string][]string `json:"votes"` // targetID -> voterIDs
	VoteCounts   map[string]int      `json:"vote_counts"`
	ImprisonedID string              `json:"imprisoned_id,omitempty"`
	IsTie        bool                `json:"is_tie"`
}

// DeathCause 死因
type DeathCause string

const (
	CauseWitchKiller DeathCause = "witch_killer"
	CauseKillMagic   DeathCause = "kill_magic"
	CauseWreck       DeathCause = "wreck"
)

// DeathRecord 权威死亡记录，每名玩家至多一条。对外只投影"已死亡"，
// 死因与掉牌去向不公开。
type DeathRecord struct {
	Round         int                    `json:"round"`
	PlayerID      string                 `json:"player_id"`
	Cause         DeathCause             `json:"cause"`
	KillerID      string                 `json:"killer_id,omitempty"`
	DroppedCards  []card.Card            `json:"dropped_cards"`
	CardReceivers map[string][]card.Card `json:"card_receivers"`
}
