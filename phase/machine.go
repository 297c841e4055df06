// phase 包实现阶段状态机与确定性结算
package phase

import (
	"errors"

	"github.com/wfunc/witchtrial/game"
	"github.com/wfunc/witchtrial/logger"
)

// ErrTransitionNotAllowed is returned when a phase transition is not allowed.
var ErrTransitionNotAllowed = errors.New("phase transition not allowed")

// ErrGameEnded is returned when advancing a finished game.
var ErrGameEnded = errors.New("game has ended")

// PhaseResult 一次推进的产出：阶段变化与期间产生的有序事件
type PhaseResult struct {
	From   game.Phase        `json:"from"`
	To     game.Phase        `json:"to"`
	Round  int               `json:"round"`
	Events []game.GameEvent  `json:"events"`
	Ended  bool              `json:"ended"`
	Result *game.GameResult  `json:"result,omitempty"`
}

// 规范的阶段顺序。结算与终局由 Advance 内部连跳，不单独停留。
var nextPhase = map[game.Phase]game.Phase{
	game.PhaseLobby:   game.PhaseMorning,
	game.PhaseMorning: game.PhaseDay,
	game.PhaseDay:     game.PhaseVoting,
	game.PhaseVoting:  game.PhaseNight,
	game.PhaseNight:   game.PhaseResolution,
}

// Machine 驱动单局游戏的阶段推进。不持锁：调用方（room）保证
// 同一时刻只有一个逻辑结算器在推进。
type Machine struct {
	gs *game.GameState
}

func NewMachine(gs *game.GameState) *Machine {
	return &Machine{gs: gs}
}

// State returns the aggregate the machine drives.
func (m *Machine) State() *game.GameState { return m.gs }

// Current returns the current phase.
func (m *Machine) Current() game.Phase { return m.gs.Status }

// Advance 执行一次阶段推进并返回期间产生的事件。夜晚推进会不可中断地
// 完成整个结算流程（结算、女巫衰变、补牌、终局判定），一直连跳到下一个
// 早晨或终局。
func (m *Machine) Advance() (*PhaseResult, error) {
	gs := m.gs
	from := gs.Status
	if from == game.PhaseEnded {
		return nil, ErrGameEnded
	}
	if _, ok := nextPhase[from]; !ok {
		return nil, ErrTransitionNotAllowed
	}
	cursor := len(gs.Events)

	switch from {
	case game.PhaseLobby:
		m.setup()
	case game.PhaseMorning:
		gs.SetPhase(game.PhaseDay)
	case game.PhaseDay:
		gs.SetPhase(game.PhaseVoting)
	case game.PhaseVoting:
		gs.CloseVoting()
		m.enterNight()
	case game.PhaseNight:
		gs.SetPhase(game.PhaseResolution)
		resolve(gs)
		if gs.Result != nil {
			m.end(gs.Result)
		} else {
			gs.NextRound()
			m.enterMorning()
		}
	}

	result := &PhaseResult{
		From:   from,
		To:     gs.Status,
		Round:  gs.Round,
		Events: gs.EventsSince(cursor),
		Ended:  gs.Status == game.PhaseEnded,
		Result: gs.Result,
	}
	logger.Log.Infow("phase advanced",
		"game_id", gs.ID, "from", from, "to", gs.Status, "round", gs.Round)
	return result, nil
}

// setup 开局：进入第一回合，起手持有女巫杀手的玩家直接成为女巫
func (m *Machine) setup() {
	gs := m.gs
	gs.NextRound()
	for _, id := range gs.PlayerOrder {
		p := gs.Players[id]
		if p.WitchKillerHolder {
			p.TransformToWitch()
			gs.Emit(game.GameEvent{
				Type:        game.EventWitchTransform,
				Round:       gs.Round,
				RecipientID: id,
				Payload:     map[string]interface{}{"reason": "witch_killer_holder"},
			})
		}
	}
	m.enterMorning()
}

// enterMorning 发布上一回合的死讯（只公开"死了"，不公开死因），
// 然后判定终局
func (m *Machine) enterMorning() {
	gs := m.gs
	gs.SetPhase(game.PhaseMorning)
	for _, rec := range gs.DeathLog {
		if rec.Round == gs.Round-1 {
			gs.Emit(game.GameEvent{
				Type:  game.EventPlayerDie,
				Round: gs.Round,
				Payload: map[string]interface{}{
					"player_id": rec.PlayerID,
				},
			})
		}
	}
	if result := gs.EvaluateWin(); result != nil {
		m.end(result)
	}
}

// enterNight 重置所有玩家的结界标记与攻击配额
func (m *Machine) enterNight() {
	gs := m.gs
	for _, p := range gs.Players {
		p.HasBarrier = false
		p.BarrierSource = ""
	}
	gs.Quota = game.AttackQuota{}
	gs.SetPhase(game.PhaseNight)
}

func (m *Machine) end(result *game.GameResult) {
	gs := m.gs
	gs.Result = result
	gs.SetPhase(game.PhaseEnded)
	gs.Emit(game.GameEvent{
		Type:  game.EventGameEnd,
		Round: gs.Round,
		Payload: map[string]interface{}{
			"reason":     result.Reason,
			"winner_ids": result.WinnerIDs,
			"survivors":  result.Survivors,
		},
	})
}
