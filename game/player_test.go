package game

import (
	"testing"

	"github.com/wfunc/witchtrial/card"
)

func TestPlayer_CardMoveSemantics(t *testing.T) {
	p := newPlayer("p1", 1)
	kill := give(p, card.TypeKill)
	barrier := give(p, card.TypeBarrier)

	taken, ok := p.TakeCard(kill.ID)
	if !ok || taken != kill {
		t.Fatal("TakeCard should return the exact card instance")
	}
	if _, ok := p.FindCard(kill.ID); ok {
		t.Error("a taken card must leave the hand")
	}
	if len(p.Hand) != 1 || p.Hand[0] != barrier {
		t.Errorf("Expected only the barrier left, got %d cards", len(p.Hand))
	}

	if _, ok := p.TakeCard(kill.ID); ok {
		t.Error("TakeCard must fail for a card no longer held")
	}

	hand := p.TakeHand()
	if len(hand) != 1 || len(p.Hand) != 0 {
		t.Error("TakeHand must move every card out of the hand")
	}
}

func TestPlayer_GiveCardMarksWitchKillerHolder(t *testing.T) {
	p := newPlayer("p1", 1)
	if p.WitchKillerHolder {
		t.Fatal("a fresh player must not hold the witch killer")
	}
	give(p, card.TypeWitchKiller)
	if !p.WitchKillerHolder {
		t.Error("receiving the witch killer must mark the holder")
	}
}

func TestPlayer_TransformToWitchIsOneWay(t *testing.T) {
	p := newPlayer("p1", 1)
	p.TransformToWitch()
	if p.Status != StatusWitch || !p.IsWitch || !p.IsAlive() {
		t.Errorf("Expected a living witch, got %s", p.Status)
	}

	// 死者不再转换
	q := newPlayer("p2", 2)
	q.MarkDead(1, CauseKillMagic, "p1")
	q.TransformToWitch()
	if q.IsWitch {
		t.Error("a dead player must not transform")
	}
}

func TestPlayer_MarkDead(t *testing.T) {
	p := newPlayer("p1", 1)
	p.HasBarrier = true
	p.BarrierSource = "c1"
	p.MarkDead(3, CauseWitchKiller, "p2")

	if p.Status != StatusDead || p.IsAlive() {
		t.Errorf("Expected dead, got %s", p.Status)
	}
	if p.DeathRound != 3 || p.DeathCause != CauseWitchKiller || p.KillerID != "p2" {
		t.Errorf("death metadata not recorded: %+v", p)
	}
	if p.HasBarrier || p.BarrierSource != "" {
		t.Error("death must clear a standing barrier")
	}

	// 残骸是死亡的子状态
	w := newPlayer("p2", 2)
	w.TransformToWitch()
	w.MarkDead(4, CauseWreck, "")
	if w.Status != StatusWreck || w.IsAlive() {
		t.Errorf("Expected wreck, got %s", w.Status)
	}

	// 再次标记不覆盖
	p.MarkDead(5, CauseWreck, "p3")
	if p.DeathRound != 3 || p.DeathCause != CauseWitchKiller {
		t.Error("MarkDead must be a one-way transition")
	}
}

func TestViews_RedactOtherHands(t *testing.T) {
	gs := newTestGame("p1", "p2", "p3")
	gs.Round = 1
	give(gs.Players["p1"], card.TypeKill)
	give(gs.Players["p1"], card.TypeBarrier)
	give(gs.Players["p2"], card.TypeDetect)
	gs.Players["p2"].TransformToWitch()

	pub := PublicState(gs)
	if len(pub.Players) != 3 {
		t.Fatalf("Expected 3 public players, got %d", len(pub.Players))
	}
	if pub.Players[0].HandCount != 2 || pub.Players[1].HandCount != 1 {
		t.Errorf("public hand counts wrong: %+v", pub.Players)
	}

	view := ViewFor(gs, "p1")
	if len(view.Hand) != 2 {
		t.Errorf("Expected p1 to see their own 2 cards, got %d", len(view.Hand))
	}
	if view.IsWitch {
		t.Error("p1 is not a witch")
	}

	// 女巫身份只出现在本人视图里
	witchView := ViewFor(gs, "p2")
	if !witchView.IsWitch {
		t.Error("p2's own view must show the witch flag")
	}
}

func TestViewFor_PrivateEventsCurrentRoundOnly(t *testing.T) {
	gs := newTestGame("p1", "p2")
	gs.Round = 2
	gs.Emit(GameEvent{Type: EventCardUsed, Round: 1, RecipientID: "p1"})
	gs.Emit(GameEvent{Type: EventCardUsed, Round: 2, RecipientID: "p1"})
	gs.Emit(GameEvent{Type: EventCardUsed, Round: 2, RecipientID: "p2"})
	gs.Emit(GameEvent{Type: EventPhaseChange, Round: 2})

	view := ViewFor(gs, "p1")
	if len(view.PrivateEvents) != 1 {
		t.Fatalf("Expected exactly the current-round private event, got %d", len(view.PrivateEvents))
	}
	if view.PrivateEvents[0].Round != 2 || view.PrivateEvents[0].RecipientID != "p1" {
		t.Errorf("wrong event selected: %+v", view.PrivateEvents[0])
	}
}
