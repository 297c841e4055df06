package phase

import (
	"sort"

	"github.com/wfunc/witchtrial/card"
	"github.com/wfunc/witchtrial/game"
	"github.com/wfunc/witchtrial/logger"
)

// resolve 结算核心：对本回合全部用牌行动做一次不可中断的确定性结算。
// 行动按卡牌优先级降序排序（同优先级保持提交顺序），逐条派发；随后
// 套用女巫衰变、补牌、终局判定。提交时合法但结算时失效的行动退化为
// 无副作用的结果记录，绝不报错——每条已提交的行动都必须走完。
func resolve(gs *game.GameState) {
	// 侦测固定读取回合开始前的手牌快照，与攻击的结算顺序无关
	snapshot := make(map[string][]card.Card, len(gs.Players))
	for id, p := range gs.Players {
		snapshot[id] = playerHand(p)
	}

	actions := make([]*game.PlayerAction, 0, len(gs.CurrentActions))
	for _, a := range gs.CurrentActions {
		actions = append(actions, a)
	}
	sort.SliceStable(actions, func(i, j int) bool {
		if actions[i].CardType != actions[j].CardType {
			return card.Priority(actions[i].CardType) > card.Priority(actions[j].CardType)
		}
		return actions[i].Seq < actions[j].Seq
	})

	killedThisRound := make(map[string]bool)

	for _, a := range actions {
		actor := gs.Players[a.PlayerID]
		if actor == nil {
			// 记录了不存在的玩家属于编程不变量被破坏，不是用户错误
			logger.Log.Errorw("recorded action without player", "game_id", gs.ID, "player_id", a.PlayerID)
			continue
		}
		if !actor.IsAlive() || a.PlayerID == gs.ImprisonedID {
			record(gs, a, game.OutcomeDropped, nil)
			continue
		}

		var outcome game.Outcome
		var reveal map[string]interface{}
		switch a.CardType {
		case card.TypeWitchKiller, card.TypeKill:
			outcome = resolveAttack(gs, a, actor, killedThisRound)
		case card.TypeDetect:
			outcome, reveal = resolveDetect(gs, a, actor, snapshot[a.TargetID])
		case card.TypeBarrier:
			outcome = resolveBarrier(gs, a, actor)
		case card.TypeCheck:
			outcome, reveal = resolveCheck(gs, a, actor)
		}
		record(gs, a, outcome, reveal)
	}

	applyWitchDecay(gs)
	replenishHands(gs)

	gs.Result = gs.EvaluateWin()
}

// record 写入行动历史并给行动者一个私密回执，reveal 并入回执载荷
func record(gs *game.GameState, a *game.PlayerAction, outcome game.Outcome, reveal map[string]interface{}) {
	gs.ActionHistory = append(gs.ActionHistory, game.ResolvedAction{Action: *a, Outcome: outcome})
	payload := map[string]interface{}{
		"card_type": a.CardType.String(),
		"target_id": a.TargetID,
		"outcome":   string(outcome),
	}
	for k, v := range reveal {
		payload[k] = v
	}
	gs.Emit(game.GameEvent{
		Type:        game.EventCardUsed,
		Round:       gs.Round,
		RecipientID: a.PlayerID,
		Payload:     payload,
	})
}

// resolveAttack 处理女巫杀手与杀戮魔法。先消配额，配额耗尽静默拒绝；
// 目标已死记为 missed；有结界记为 blocked 并消耗结界；否则击杀。
func resolveAttack(gs *game.GameState, a *game.PlayerAction, actor *game.Player, killed map[string]bool) game.Outcome {
	if a.CardType == card.TypeWitchKiller {
		if gs.Quota.WitchKillerUsed {
			return game.OutcomeDenied
		}
		gs.Quota.WitchKillerUsed = true
	} else {
		budget := gs.Config.KillMagicPerNight
		if gs.Quota.WitchKillerUsed {
			budget--
		}
		if gs.Quota.KillMagicUsed >= budget {
			return game.OutcomeDenied
		}
		gs.Quota.KillMagicUsed++
	}

	consumeCard(gs, actor, a.CardID)

	target := gs.Players[a.TargetID]
	if target == nil || !target.IsAlive() || killed[a.TargetID] {
		return game.OutcomeMissed
	}
	if target.HasBarrier {
		target.HasBarrier = false
		target.BarrierSource = ""
		return game.OutcomeBlocked
	}

	cause := game.CauseKillMagic
	if a.CardType == card.TypeWitchKiller {
		cause = game.CauseWitchKiller
	}
	kill(gs, actor, target, cause)
	killed[a.TargetID] = true
	return game.OutcomeKilled
}

// kill 击杀目标：写死亡元数据，行动者化身女巫并重置杀戮计数，
// 受害者掉牌按轮转规则分给幸存者
func kill(gs *game.GameState, actor, victim *game.Player, cause game.DeathCause) {
	victim.MarkDead(gs.Round, cause, actor.ID)

	wasWitch := actor.IsWitch
	actor.TransformToWitch()
	actor.LastKillRound = gs.Round
	actor.ConsecutiveNoKillRounds = 0
	if !wasWitch {
		gs.Emit(game.GameEvent{
			Type:        game.EventWitchTransform,
			Round:       gs.Round,
			RecipientID: actor.ID,
			Payload:     map[string]interface{}{"reason": "first_kill"},
		})
	}

	dropped := victim.TakeHand()
	rec := &game.DeathRecord{
		Round:         gs.Round,
		PlayerID:      victim.ID,
		Cause:         cause,
		KillerID:      actor.ID,
		CardReceivers: make(map[string][]card.Card),
	}
	for _, c := range dropped {
		rec.DroppedCards = append(rec.DroppedCards, *c)
	}

	// 死于杀戮魔法的女巫杀手持有者：随机转移女巫杀手给一名存活玩家
	if victim.WitchKillerHolder {
		victim.WitchKillerHolder = false
		if cause == game.CauseKillMagic {
			if wk, rest := takeWitchKiller(dropped); wk != nil {
				dropped = rest
				if heir := gs.RandomAlive(victim.ID); heir != nil {
					heir.GiveCard(wk)
					rec.CardReceivers[heir.ID] = append(rec.CardReceivers[heir.ID], *wk)
				} else {
					gs.Deck.Discard(wk)
				}
			}
		}
	}

	others := gs.AliveIDs(actor.ID, victim.ID)
	for id, cards := range card.DistributeDropped(dropped, actor.ID, others, gs.Rng()) {
		receiver := gs.Players[id]
		for _, c := range cards {
			receiver.GiveCard(c)
			rec.CardReceivers[id] = append(rec.CardReceivers[id], *c)
		}
	}
	gs.DeathLog = append(gs.DeathLog, rec)
}

// takeWitchKiller pulls the witch killer out of a dropped pile.
func takeWitchKiller(cards []*card.Card) (*card.Card, []*card.Card) {
	for i, c := range cards {
		if c.Type == card.TypeWitchKiller {
			return c, append(cards[:i], cards[i+1:]...)
		}
	}
	return nil, cards
}

// resolveDetect 向行动者揭示目标回合开始前的手牌数量与一张随机卡牌
func resolveDetect(gs *game.GameState, a *game.PlayerAction, actor *game.Player, hand []card.Card) (game.Outcome, map[string]interface{}) {
	consumeCard(gs, actor, a.CardID)

	reveal := map[string]interface{}{
		"hand_size": len(hand),
	}
	if len(hand) > 0 {
		c := hand[gs.Rng().Intn(len(hand))]
		reveal["revealed_card_name"] = c.Name
		reveal["revealed_card_type"] = c.Type.String()
	}
	return game.OutcomeRevealed, reveal
}

// resolveBarrier 为行动者竖起结界，次日夜晚开始时清除
func resolveBarrier(gs *game.GameState, a *game.PlayerAction, actor *game.Player) game.Outcome {
	consumeCard(gs, actor, a.CardID)
	actor.HasBarrier = true
	actor.BarrierSource = a.CardID
	return game.OutcomeShielded
}

// resolveCheck 只读：揭示指定死者的死因是否为女巫杀手
func resolveCheck(gs *game.GameState, a *game.PlayerAction, actor *game.Player) (game.Outcome, map[string]interface{}) {
	consumeCard(gs, actor, a.CardID)

	byWitchKiller := false
	for _, rec := range gs.DeathLog {
		if rec.PlayerID == a.TargetID {
			byWitchKiller = rec.Cause == game.CauseWitchKiller
			break
		}
	}
	return game.OutcomeChecked, map[string]interface{}{"by_witch_killer": byWitchKiller}
}

// consumeCard 把用掉的消耗牌移入弃牌堆；女巫杀手不消耗，留在手中
func consumeCard(gs *game.GameState, actor *game.Player, cardID string) {
	c, ok := actor.FindCard(cardID)
	if !ok {
		return
	}
	if !c.Consumable {
		return
	}
	if taken, ok := actor.TakeCard(cardID); ok {
		gs.Deck.Discard(taken)
	}
}

// applyWitchDecay 本回合没有击杀的女巫累积衰变计数，达到阈值化为残骸。
// 残骸持有的女巫杀手随机转移给存活玩家，其余手牌进弃牌堆。
func applyWitchDecay(gs *game.GameState) {
	for _, id := range gs.PlayerOrder {
		p := gs.Players[id]
		if !p.IsAlive() || !p.IsWitch {
			continue
		}
		if p.LastKillRound == gs.Round {
			continue
		}
		p.ConsecutiveNoKillRounds++
		if p.ConsecutiveNoKillRounds < gs.Config.WitchDecayRounds {
			continue
		}

		rec := &game.DeathRecord{
			Round:         gs.Round,
			PlayerID:      p.ID,
			Cause:         game.CauseWreck,
			CardReceivers: make(map[string][]card.Card),
		}
		hand := p.TakeHand()
		for _, c := range hand {
			rec.DroppedCards = append(rec.DroppedCards, *c)
		}
		p.MarkDead(gs.Round, game.CauseWreck, "")

		if p.WitchKillerHolder {
			p.WitchKillerHolder = false
			if wk, rest := takeWitchKiller(hand); wk != nil {
				hand = rest
				if heir := gs.RandomAlive(p.ID); heir != nil {
					heir.GiveCard(wk)
					rec.CardReceivers[heir.ID] = append(rec.CardReceivers[heir.ID], *wk)
				} else {
					gs.Deck.Discard(wk)
				}
			}
		}
		for _, c := range hand {
			gs.Deck.Discard(c)
		}
		gs.DeathLog = append(gs.DeathLog, rec)
		gs.Emit(game.GameEvent{
			Type:        game.EventWreckTransform,
			Round:       gs.Round,
			RecipientID: p.ID,
			Payload:     map[string]interface{}{"rounds_without_kill": p.ConsecutiveNoKillRounds},
		})
	}
}

// replenishHands 每名存活玩家补牌到手牌上限
func replenishHands(gs *game.GameState) {
	for _, id := range gs.PlayerOrder {
		p := gs.Players[id]
		if !p.IsAlive() {
			continue
		}
		need := gs.Config.MaxHandSize - len(p.Hand)
		if need <= 0 {
			continue
		}
		drawn := gs.Deck.Draw(need)
		for _, c := range drawn {
			p.GiveCard(c)
		}
		if len(drawn) > 0 {
			gs.Emit(game.GameEvent{
				Type:        game.EventCardDrawn,
				Round:       gs.Round,
				RecipientID: id,
				Payload:     map[string]interface{}{"count": len(drawn)},
			})
		}
	}
}

// playerHand 取玩家手牌的值快照
func playerHand(p *game.Player) []card.Card {
	out := make([]card.Card, 0, len(p.Hand))
	for _, c := range p.Hand {
		out = append(out, *c)
	}
	return out
}
