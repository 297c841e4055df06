package game

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/witchtrial/card"
	"github.com/wfunc/witchtrial/config"
)

// Phase 游戏阶段
type Phase string

const (
	PhaseLobby      Phase = "lobby"
	PhaseMorning    Phase = "morning"
	PhaseDay        Phase = "day"
	PhaseVoting     Phase = "voting"
	PhaseNight      Phase = "night"
	PhaseResolution Phase = "resolution"
	PhaseEnded      Phase = "ended"
)

// AttackQuota 每夜攻击配额。女巫杀手每夜一次；杀戮魔法每夜 3 次，
// 女巫杀手出手后降为 2 次。
type AttackQuota struct {
	WitchKillerUsed bool `json:"witch_killer_used"`
	KillMagicUsed   int  `json:"kill_magic_used"`
}

// GameResult 终局结果
type GameResult struct {
	Reason    string   `json:"reason"`
	WinnerIDs []string `json:"winner_ids"`
	Survivors []string `json:"survivors"`
	Round     int      `json:"round"`
}

// GameState 聚合根。独占持有所有玩家、牌堆与历史；每局一个实例，
// 由单一结算器串行修改（上层 room 持锁）。
type GameState struct {
	ID     string `json:"id"`
	RoomID string `json:"room_id"`
	Status Phase  `json:"status"`
	Round  int    `json:"round"`

	Players     map[string]*Player `json:"players"`
	PlayerOrder []string           `json:"player_order"`
	Deck        *card.Deck         `json:"-"`

	// 每回合缓冲，结算时清空
	CurrentActions map[string]*PlayerAction `json:"current_actions"`
	CurrentVotes   []*Vote                  `json:"current_votes"`
	ImprisonedID   string                   `json:"imprisoned_id,omitempty"`
	Quota          AttackQuota              `json:"quota"`

	// 只追加的历史
	ActionHistory []ResolvedAction `json:"action_history"`
	VoteHistory   []*VoteResult    `json:"vote_history"`
	DeathLog      []*DeathRecord   `json:"death_log"`
	Events        []GameEvent      `json:"events"`

	Config         config.GameRules `json:"config"`
	PhaseStartTime time.Time        `json:"phase_start_time"`
	PhaseEndTime   time.Time        `json:"phase_end_time"`

	Result *GameResult `json:"result,omitempty"`

	actionSeq int
	rng       *rand.Rand
}

// NewGame 建局：按座位顺序创建玩家，构建并洗乱牌堆，发初始手牌。
// rng 为空时用当前时间作种子。
func NewGame(roomID string, playerIDs []string, rules config.GameRules, rng *rand.Rand) *GameState {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	gs := &GameState{
		ID:             uuid.New().String(),
		RoomID:         roomID,
		Status:         PhaseLobby,
		Players:        make(map[string]*Player, len(playerIDs)),
		PlayerOrder:    make([]string, 0, len(playerIDs)),
		CurrentActions: make(map[string]*PlayerAction),
		Config:         rules,
		rng:            rng,
	}
	gs.Deck = card.NewDeck(rules.CardPool, rng)

	for seat, id := range playerIDs {
		p := newPlayer(id, seat+1)
		for _, c := range gs.Deck.Draw(rules.InitialHandSize) {
			p.GiveCard(c)
		}
		gs.Players[id] = p
		gs.PlayerOrder = append(gs.PlayerOrder, id)
	}
	return gs
}

// Rng exposes the game's seeded random source to the resolver.
func (gs *GameState) Rng() *rand.Rand { return gs.rng }

// Player returns the player record for id, nil if unknown.
func (gs *GameState) Player(id string) *Player { return gs.Players[id] }

// AliveIDs 按座位顺序返回存活玩家，可排除指定 id
func (gs *GameState) AliveIDs(exclude ...string) []string {
	skip := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}
	var out []string
	for _, id := range gs.PlayerOrder {
		if skip[id] {
			continue
		}
		if p := gs.Players[id]; p != nil && p.IsAlive() {
			out = append(out, id)
		}
	}
	return out
}

// WitchCount returns the number of living witches.
func (gs *GameState) WitchCount() int {
	n := 0
	for _, id := range gs.PlayerOrder {
		if p := gs.Players[id]; p.IsAlive() && p.IsWitch {
			n++
		}
	}
	return n
}

// RandomAlive picks a uniformly random living player, excluding the given ids.
func (gs *GameState) RandomAlive(exclude ...string) *Player {
	ids := gs.AliveIDs(exclude...)
	if len(ids) == 0 {
		return nil
	}
	return gs.Players[ids[gs.rng.Intn(len(ids))]]
}

// SetPhase 切换阶段并按配置盖时间戳；无时长的阶段不设截止时间
func (gs *GameState) SetPhase(phase Phase) {
	gs.Status = phase
	gs.PhaseStartTime = time.Now()
	if d := gs.Config.PhaseDuration(string(phase)); d > 0 {
		gs.PhaseEndTime = gs.PhaseStartTime.Add(d)
	} else {
		gs.PhaseEndTime = time.Time{}
	}
	gs.Emit(GameEvent{
		Type:  EventPhaseChange,
		Round: gs.Round,
		Payload: map[string]interface{}{
			"phase":    string(phase),
			"ends_at":  gs.PhaseEndTime,
			"imprisoned": gs.ImprisonedID,
		},
	})
}

// NextRound 推进回合：清空每回合缓冲，重置配额与监禁
func (gs *GameState) NextRound() {
	gs.Round++
	gs.CurrentActions = make(map[string]*PlayerAction)
	gs.CurrentVotes = nil
	gs.ImprisonedID = ""
	gs.Quota = AttackQuota{}
}

// Emit appends an event to the ordered log.
func (gs *GameState) Emit(e GameEvent) {
	gs.Events = append(gs.Events, e)
}

// EventsSince returns the events appended at or after cursor.
func (gs *GameState) EventsSince(cursor int) []GameEvent {
	if cursor < 0 || cursor > len(gs.Events) {
		return nil
	}
	return gs.Events[cursor:]
}

// RecordAction 校验并记录一条夜晚行动。提交期的违规返回类型化错误且不
// 改动任何状态；被监禁玩家的提交被接受但会在结算时作废（规则使然，
// 不向其暴露监禁结果之外的信息）。同一玩家后提交覆盖先提交。
func (gs *GameState) RecordAction(playerID, cardID, targetID string) error {
	if gs.Status != PhaseNight {
		return newError(ErrInvalidPhase, "actions may only be submitted at night, current phase is %s", gs.Status)
	}
	actor := gs.Players[playerID]
	if actor == nil {
		return newError(ErrInvalidAction, "unknown player %s", playerID)
	}
	if !actor.IsAlive() {
		return newError(ErrPlayerAlreadyDead, "player %s is dead", playerID)
	}
	c, ok := actor.FindCard(cardID)
	if !ok {
		return newError(ErrCardNotFound, "card %s is not in the hand of %s", cardID, playerID)
	}
	if actor.WitchKillerHolder && c.Type != card.TypeWitchKiller {
		return newError(ErrWitchKillerOnly, "the witch killer holder may play no other card")
	}
	if c.Type == card.TypeWitchKiller && !actor.WitchKillerHolder {
		return newError(ErrNotWitchKillerHolder, "player %s does not hold the witch killer", playerID)
	}
	if err := gs.validateTarget(c.Type, playerID, targetID); err != nil {
		return err
	}
	if err := gs.checkBufferedQuota(playerID, c.Type); err != nil {
		return err
	}

	gs.actionSeq++
	gs.CurrentActions[playerID] = &PlayerAction{
		PlayerID: playerID,
		Type:     ActionUseCard,
		CardID:   cardID,
		CardType: c.Type,
		TargetID: targetID,
		Round:    gs.Round,
		Seq:      gs.actionSeq,
		At:       time.Now(),
	}
	return nil
}

func (gs *GameState) validateTarget(t card.Type, actorID, targetID string) error {
	switch t {
	case card.TypeWitchKiller, card.TypeKill, card.TypeDetect:
		target := gs.Players[targetID]
		if target == nil {
			return newError(ErrInvalidTarget, "unknown target %s", targetID)
		}
		if targetID == actorID {
			return newError(ErrInvalidTarget, "cannot target yourself")
		}
		if !target.IsAlive() {
			return newError(ErrInvalidTarget, "target %s is already dead", targetID)
		}
	case card.TypeCheck:
		target := gs.Players[targetID]
		if target == nil {
			return newError(ErrInvalidTarget, "unknown target %s", targetID)
		}
		if target.IsAlive() {
			return newError(ErrInvalidTarget, "check only works on dead players")
		}
	case card.TypeBarrier:
		// self-targeted, target ignored
	}
	return nil
}

// checkBufferedQuota rejects attack submissions that could never fit the
// nightly quota, counting the attack actions already buffered this round.
// The resolution pass re-checks the authoritative quota and degrades
// mid-pass exhaustion to a denied outcome instead.
func (gs *GameState) checkBufferedQuota(playerID string, t card.Type) error {
	switch t {
	case card.TypeWitchKiller:
		for id, a := range gs.CurrentActions {
			if id != playerID && a.CardType == card.TypeWitchKiller {
				return newError(ErrAttackQuotaFull, "the witch killer has already been committed tonight")
			}
		}
	case card.TypeKill:
		kills := 0
		for id, a := range gs.CurrentActions {
			if id != playerID && a.CardType == card.TypeKill {
				kills++
			}
		}
		if kills >= gs.Config.KillMagicPerNight {
			return newError(ErrAttackQuotaFull, "kill magic quota for tonight is exhausted")
		}
	}
	return nil
}

// RecordVote 记录一票。同一投票者后投覆盖先投（不算错误）。
func (gs *GameState) RecordVote(voterID, targetID string) error {
	if gs.Status != PhaseVoting {
		return newError(ErrInvalidPhase, "votes may only be cast during voting, current phase is %s", gs.Status)
	}
	voter := gs.Players[voterID]
	if voter == nil {
		return newError(ErrInvalidAction, "unknown voter %s", voterID)
	}
	if !voter.IsAlive() {
		return newError(ErrPlayerAlreadyDead, "voter %s is dead", voterID)
	}
	target := gs.Players[targetID]
	if target == nil || !target.IsAlive() {
		return newError(ErrInvalidTarget, "vote target %s is not a living player", targetID)
	}

	vote := &Vote{VoterID: voterID, TargetID: targetID, Round: gs.Round, At: time.Now()}
	replaced := false
	for i, v := range gs.CurrentVotes {
		if v.VoterID == voterID {
			gs.CurrentVotes[i] = vote
			replaced = true
			break
		}
	}
	if !replaced {
		gs.CurrentVotes = append(gs.CurrentVotes, vote)
	}
	gs.Emit(GameEvent{
		Type:  EventVoteCast,
		Round: gs.Round,
		Payload: map[string]interface{}{
			"voter_id": voterID,
		},
	})
	return nil
}

// CalculateVoteResult 纯函数：严格最多票者被监禁；并列最高（且票数大于
// 零）或零票时无人被监禁。
func (gs *GameState) CalculateVoteResult() *VoteResult {
	result := &VoteResult{
		Round:      gs.Round,
		Votes:      make(map[string][]string),
		VoteCounts: make(map[string]int),
	}
	for _, v := range gs.CurrentVotes {
		result.Votes[v.TargetID] = append(result.Votes[v.TargetID], v.VoterID)
		result.VoteCounts[v.TargetID]++
	}

	max, leaders := 0, 0
	var leader string
	for _, id := range gs.PlayerOrder {
		n := result.VoteCounts[id]
		if n > max {
			max, leaders, leader = n, 1, id
		} else if n == max && n > 0 {
			leaders++
		}
	}
	// 严格最多票才监禁；并列最高与零票同样视为无人被监禁
	if max > 0 && leaders == 1 {
		result.ImprisonedID = leader
	} else {
		result.IsTie = true
	}
	return result
}

// CloseVoting 结算本回合投票并写入历史，监禁结果在夜晚开始前公开
func (gs *GameState) CloseVoting() *VoteResult {
	result := gs.CalculateVoteResult()
	gs.VoteHistory = append(gs.VoteHistory, result)
	gs.ImprisonedID = result.ImprisonedID
	gs.Emit(GameEvent{
		Type:  EventVoteResult,
		Round: gs.Round,
		Payload: map[string]interface{}{
			"vote_counts":   result.VoteCounts,
			"imprisoned_id": result.ImprisonedID,
			"is_tie":        result.IsTie,
		},
	})
	return result
}

// EvaluateWin 终局判定：仅剩一人（或无人）、存活者全为女巫、或回合数
// 超过上限时结束。未结束返回 nil。
func (gs *GameState) EvaluateWin() *GameResult {
	alive := gs.AliveIDs()
	witches := gs.WitchCount()

	switch {
	case len(alive) == 0:
		return &GameResult{Reason: "annihilation", Round: gs.Round}
	case len(alive) == 1:
		return &GameResult{Reason: "sole_survivor", WinnerIDs: alive, Survivors: alive, Round: gs.Round}
	case witches == len(alive):
		return &GameResult{Reason: "witches_prevail", WinnerIDs: alive, Survivors: alive, Round: gs.Round}
	case gs.Round > gs.Config.MaxRounds:
		return &GameResult{Reason: "rounds_exhausted", WinnerIDs: alive, Survivors: alive, Round: gs.Round}
	}
	return nil
}
