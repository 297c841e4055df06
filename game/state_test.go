package game

import (
	"math/rand"
	"testing"

	"github.com/wfunc/witchtrial/card"
	"github.com/wfunc/witchtrial/config"
)

// bareRules disables dealing so each test hands out exactly the cards it needs.
func bareRules() config.GameRules {
	rules := config.DefaultGameRules()
	rules.CardPool = map[string]int{}
	rules.InitialHandSize = 0
	return rules
}

func newTestGame(playerIDs ...string) *GameState {
	return NewGame("room1", playerIDs, bareRules(), rand.New(rand.NewSource(42)))
}

func give(p *Player, t card.Type) *card.Card {
	c := card.New(t)
	p.GiveCard(c)
	return c
}

func TestNewGame_DealsInitialHands(t *testing.T) {
	rules := config.DefaultGameRules()
	gs := NewGame("room1", []string{"p1", "p2", "p3", "p4"}, rules, rand.New(rand.NewSource(1)))

	poolSize := 0
	for _, n := range rules.CardPool {
		poolSize += n
	}
	dealt := 0
	for seat, id := range gs.PlayerOrder {
		p := gs.Players[id]
		if len(p.Hand) != rules.InitialHandSize {
			t.Errorf("player %s: expected %d initial cards, got %d", id, rules.InitialHandSize, len(p.Hand))
		}
		if p.SeatNumber != seat+1 {
			t.Errorf("player %s: expected seat %d, got %d", id, seat+1, p.SeatNumber)
		}
		dealt += len(p.Hand)
	}
	if gs.Deck.Len() != poolSize-dealt {
		t.Errorf("Expected %d cards left in the deck, got %d", poolSize-dealt, gs.Deck.Len())
	}
	if gs.Status != PhaseLobby {
		t.Errorf("Expected a new game to start in the lobby, got %s", gs.Status)
	}
}

func TestRecordAction_PhaseValidation(t *testing.T) {
	gs := newTestGame("p1", "p2")
	c := give(gs.Players["p1"], card.TypeKill)

	err := gs.RecordAction("p1", c.ID, "p2")
	if !IsKind(err, ErrInvalidPhase) {
		t.Errorf("Expected invalid_phase in the lobby, got %v", err)
	}
}

func TestRecordAction_SubmissionErrors(t *testing.T) {
	gs := newTestGame("p1", "p2", "p3", "p4")
	gs.Round = 1
	gs.Status = PhaseNight

	p1 := gs.Players["p1"]
	kill := give(p1, card.TypeKill)
	check := give(p1, card.TypeCheck)

	cases := []struct {
		name     string
		playerID string
		cardID   string
		targetID string
		kind     ErrorKind
	}{
		{"unknown player", "ghost", kill.ID, "p2", ErrInvalidAction},
		{"card not in hand", "p2", kill.ID, "p3", ErrCardNotFound},
		{"self target", "p1", kill.ID, "p1", ErrInvalidTarget},
		{"unknown target", "p1", kill.ID, "ghost", ErrInvalidTarget},
		{"check needs a dead target", "p1", check.ID, "p2", ErrInvalidTarget},
	}
	for _, tc := range cases {
		if err := gs.RecordAction(tc.playerID, tc.cardID, tc.targetID); !IsKind(err, tc.kind) {
			t.Errorf("%s: expected %s, got %v", tc.name, tc.kind, err)
		}
	}
	if len(gs.CurrentActions) != 0 {
		t.Errorf("rejected submissions must not be buffered, got %d", len(gs.CurrentActions))
	}

	// 目标死亡后攻击被拒，查验反而合法
	gs.Players["p2"].MarkDead(1, CauseKillMagic, "p3")
	if err := gs.RecordAction("p1", kill.ID, "p2"); !IsKind(err, ErrInvalidTarget) {
		t.Errorf("Expected invalid_target for a dead target, got %v", err)
	}
	if err := gs.RecordAction("p1", check.ID, "p2"); err != nil {
		t.Errorf("check on a dead target should be accepted, got %v", err)
	}

	// 死者不能提交
	kill3 := give(gs.Players["p2"], card.TypeKill)
	if err := gs.RecordAction("p2", kill3.ID, "p3"); !IsKind(err, ErrPlayerAlreadyDead) {
		t.Errorf("Expected player_already_dead, got %v", err)
	}
}

func TestRecordAction_WitchKillerConstraints(t *testing.T) {
	gs := newTestGame("p1", "p2", "p3")
	gs.Round = 1
	gs.Status = PhaseNight

	p1 := gs.Players["p1"]
	wk := give(p1, card.TypeWitchKiller)
	kill := give(p1, card.TypeKill)

	// 持有者只能出女巫杀手
	if err := gs.RecordAction("p1", kill.ID, "p2"); !IsKind(err, ErrWitchKillerOnly) {
		t.Errorf("Expected witch_killer_only, got %v", err)
	}
	if err := gs.RecordAction("p1", wk.ID, "p2"); err != nil {
		t.Errorf("the holder playing the witch killer should be accepted, got %v", err)
	}

	// 非持有者不能出别人的女巫杀手（卡不在手里就是 card_not_found）
	if err := gs.RecordAction("p2", wk.ID, "p3"); !IsKind(err, ErrCardNotFound) {
		t.Errorf("Expected card_not_found, got %v", err)
	}
}

func TestRecordAction_OverwriteKeepsOnePerPlayer(t *testing.T) {
	gs := newTestGame("p1", "p2", "p3")
	gs.Round = 1
	gs.Status = PhaseNight

	p1 := gs.Players["p1"]
	first := give(p1, card.TypeKill)
	second := give(p1, card.TypeBarrier)

	if err := gs.RecordAction("p1", first.ID, "p2"); err != nil {
		t.Fatalf("first submission failed: %v", err)
	}
	if err := gs.RecordAction("p1", second.ID, ""); err != nil {
		t.Fatalf("second submission failed: %v", err)
	}

	if len(gs.CurrentActions) != 1 {
		t.Fatalf("Expected one buffered action per player, got %d", len(gs.CurrentActions))
	}
	a := gs.CurrentActions["p1"]
	if a.CardID != second.ID || a.CardType != card.TypeBarrier {
		t.Errorf("later submission must replace the earlier one, got %+v", a)
	}
	if a.Seq != 2 {
		t.Errorf("Expected the replacement to carry seq 2, got %d", a.Seq)
	}
}

func TestRecordAction_BufferedQuota(t *testing.T) {
	gs := newTestGame("p1", "p2", "p3", "p4", "p5", "p6")
	gs.Round = 1
	gs.Status = PhaseNight

	wk1 := give(gs.Players["p1"], card.TypeWitchKiller)
	wk2 := give(gs.Players["p2"], card.TypeWitchKiller)
	if err := gs.RecordAction("p1", wk1.ID, "p6"); err != nil {
		t.Fatalf("first witch killer submission failed: %v", err)
	}
	if err := gs.RecordAction("p2", wk2.ID, "p6"); !IsKind(err, ErrAttackQuotaFull) {
		t.Errorf("Expected attack_quota_full for a second witch killer, got %v", err)
	}

	for _, id := range []string{"p3", "p4", "p5"} {
		k := give(gs.Players[id], card.TypeKill)
		if err := gs.RecordAction(id, k.ID, "p6"); err != nil {
			t.Fatalf("kill submission by %s failed: %v", id, err)
		}
	}
	k6 := give(gs.Players["p6"], card.TypeKill)
	if err := gs.RecordAction("p6", k6.ID, "p3"); !IsKind(err, ErrAttackQuotaFull) {
		t.Errorf("Expected attack_quota_full for a fourth kill, got %v", err)
	}

	// 重复提交不跟自己的缓冲行动抢配额
	k3 := give(gs.Players["p3"], card.TypeKill)
	if err := gs.RecordAction("p3", k3.ID, "p4"); err != nil {
		t.Errorf("resubmission by the same player should be accepted, got %v", err)
	}
}

func TestRecordVote_Validation(t *testing.T) {
	gs := newTestGame("p1", "p2", "p3")
	gs.Round = 1

	if err := gs.RecordVote("p1", "p2"); !IsKind(err, ErrInvalidPhase) {
		t.Errorf("Expected invalid_phase outside voting, got %v", err)
	}

	gs.Status = PhaseVoting
	gs.Players["p3"].MarkDead(1, CauseKillMagic, "p1")

	if err := gs.RecordVote("p3", "p1"); !IsKind(err, ErrPlayerAlreadyDead) {
		t.Errorf("Expected player_already_dead for a dead voter, got %v", err)
	}
	if err := gs.RecordVote("p1", "p3"); !IsKind(err, ErrInvalidTarget) {
		t.Errorf("Expected invalid_target for a dead vote target, got %v", err)
	}
	if err := gs.RecordVote("ghost", "p2"); !IsKind(err, ErrInvalidAction) {
		t.Errorf("Expected invalid_action for an unknown voter, got %v", err)
	}
}

func TestRecordVote_OverwriteInPlace(t *testing.T) {
	gs := newTestGame("p1", "p2", "p3")
	gs.Round = 1
	gs.Status = PhaseVoting

	if err := gs.RecordVote("p1", "p2"); err != nil {
		t.Fatalf("vote failed: %v", err)
	}
	if err := gs.RecordVote("p2", "p1"); err != nil {
		t.Fatalf("vote failed: %v", err)
	}
	if err := gs.RecordVote("p1", "p3"); err != nil {
		t.Fatalf("revote failed: %v", err)
	}

	if len(gs.CurrentVotes) != 2 {
		t.Fatalf("Expected 2 votes after a revote, got %d", len(gs.CurrentVotes))
	}
	if gs.CurrentVotes[0].VoterID != "p1" || gs.CurrentVotes[0].TargetID != "p3" {
		t.Errorf("revote must overwrite in place, got %+v", gs.CurrentVotes[0])
	}
}

func TestCalculateVoteResult_StrictMax(t *testing.T) {
	gs := newTestGame("p1", "p2", "p3", "p4")
	gs.Round = 1
	gs.Status = PhaseVoting

	gs.RecordVote("p1", "p3")
	gs.RecordVote("p2", "p3")
	gs.RecordVote("p4", "p1")

	result := gs.CalculateVoteResult()
	if result.ImprisonedID != "p3" {
		t.Errorf("Expected p3 imprisoned, got %q", result.ImprisonedID)
	}
	if result.IsTie {
		t.Error("a strict majority is not a tie")
	}
	if result.VoteCounts["p3"] != 2 || result.VoteCounts["p1"] != 1 {
		t.Errorf("unexpected counts: %v", result.VoteCounts)
	}

	// 纯函数：重复计算结果一致，不改状态
	again := gs.CalculateVoteResult()
	if again.ImprisonedID != result.ImprisonedID || again.IsTie != result.IsTie {
		t.Error("CalculateVoteResult must be idempotent")
	}
	if gs.ImprisonedID != "" {
		t.Error("CalculateVoteResult must not set the imprisoned player")
	}
}

func TestCalculateVoteResult_TieAndZeroVotes(t *testing.T) {
	gs := newTestGame("p1", "p2", "p3", "p4")
	gs.Round = 1
	gs.Status = PhaseVoting

	// 零票与并列最高同样：无人被监禁
	result := gs.CalculateVoteResult()
	if result.ImprisonedID != "" || !result.IsTie {
		t.Errorf("zero votes: expected no imprisonment and a tie, got %+v", result)
	}

	gs.RecordVote("p1", "p3")
	gs.RecordVote("p2", "p4")
	result = gs.CalculateVoteResult()
	if result.ImprisonedID != "" || !result.IsTie {
		t.Errorf("two-way tie: expected no imprisonment, got %+v", result)
	}
}

func TestCloseVoting_RecordsHistory(t *testing.T) {
	gs := newTestGame("p1", "p2", "p3")
	gs.Round = 1
	gs.Status = PhaseVoting

	gs.RecordVote("p1", "p2")
	gs.RecordVote("p3", "p2")
	result := gs.CloseVoting()

	if gs.ImprisonedID != "p2" {
		t.Errorf("Expected p2 imprisoned after closing, got %q", gs.ImprisonedID)
	}
	if len(gs.VoteHistory) != 1 || gs.VoteHistory[0] != result {
		t.Error("CloseVoting must append the result to the vote history")
	}
}

func TestNextRound_ResetsBuffers(t *testing.T) {
	gs := newTestGame("p1", "p2", "p3")
	gs.Round = 1
	gs.Status = PhaseNight
	k := give(gs.Players["p1"], card.TypeKill)
	if err := gs.RecordAction("p1", k.ID, "p2"); err != nil {
		t.Fatalf("submission failed: %v", err)
	}
	gs.ImprisonedID = "p3"
	gs.Quota = AttackQuota{WitchKillerUsed: true, KillMagicUsed: 2}

	gs.NextRound()

	if gs.Round != 2 {
		t.Errorf("Expected round 2, got %d", gs.Round)
	}
	if len(gs.CurrentActions) != 0 || gs.CurrentVotes != nil {
		t.Error("NextRound must clear the per-round buffers")
	}
	if gs.ImprisonedID != "" {
		t.Error("imprisonment lasts one round only")
	}
	if gs.Quota.WitchKillerUsed || gs.Quota.KillMagicUsed != 0 {
		t.Errorf("Expected a fresh quota, got %+v", gs.Quota)
	}
}

func TestEvaluateWin(t *testing.T) {
	gs := newTestGame("p1", "p2", "p3")
	gs.Round = 1
	if gs.EvaluateWin() != nil {
		t.Error("a fresh game must not be over")
	}

	gs.Players["p2"].MarkDead(1, CauseKillMagic, "p1")
	gs.Players["p3"].MarkDead(1, CauseKillMagic, "p1")
	result := gs.EvaluateWin()
	if result == nil || result.Reason != "sole_survivor" {
		t.Fatalf("Expected sole_survivor, got %+v", result)
	}
	if len(result.WinnerIDs) != 1 || result.WinnerIDs[0] != "p1" {
		t.Errorf("Expected p1 to win, got %v", result.WinnerIDs)
	}

	// 存活者全为女巫
	gs = newTestGame("p1", "p2", "p3")
	gs.Round = 3
	gs.Players["p1"].TransformToWitch()
	gs.Players["p2"].TransformToWitch()
	gs.Players["p3"].MarkDead(2, CauseWitchKiller, "p1")
	result = gs.EvaluateWin()
	if result == nil || result.Reason != "witches_prevail" {
		t.Fatalf("Expected witches_prevail, got %+v", result)
	}
	if len(result.WinnerIDs) != 2 {
		t.Errorf("Expected both witches to win, got %v", result.WinnerIDs)
	}

	// 回合耗尽
	gs = newTestGame("p1", "p2", "p3")
	gs.Round = gs.Config.MaxRounds + 1
	result = gs.EvaluateWin()
	if result == nil || result.Reason != "rounds_exhausted" {
		t.Fatalf("Expected rounds_exhausted, got %+v", result)
	}
	if len(result.Survivors) != 3 {
		t.Errorf("Expected 3 survivors, got %v", result.Survivors)
	}

	// 全灭
	gs = newTestGame("p1", "p2")
	gs.Round = 1
	gs.Players["p1"].MarkDead(1, CauseWreck, "")
	gs.Players["p2"].MarkDead(1, CauseWreck, "")
	result = gs.EvaluateWin()
	if result == nil || result.Reason != "annihilation" {
		t.Fatalf("Expected annihilation, got %+v", result)
	}
}

func TestAliveIDs_OrderAndExclusion(t *testing.T) {
	gs := newTestGame("p1", "p2", "p3", "p4")
	gs.Players["p2"].MarkDead(1, CauseKillMagic, "p1")
	gs.Players["p3"].TransformToWitch()

	ids := gs.AliveIDs()
	want := []string{"p1", "p3", "p4"}
	if len(ids) != len(want) {
		t.Fatalf("Expected %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("Expected seat order %v, got %v", want, ids)
		}
	}

	ids = gs.AliveIDs("p3")
	if len(ids) != 2 || ids[0] != "p1" || ids[1] != "p4" {
		t.Errorf("Expected exclusion to be honored, got %v", ids)
	}
}
