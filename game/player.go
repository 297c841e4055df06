package game

import (
	"github.com/wfunc/witchtrial/card"
)

// PlayerStatus 玩家状态。女巫是存活的子状态，残骸是死亡的子状态。
type PlayerStatus string

const (
	StatusAlive PlayerStatus = "alive"
	StatusWitch PlayerStatus = "witch"
	StatusDead  PlayerStatus = "dead"
	StatusWreck PlayerStatus = "wreck"
)

// Player 单个玩家的可变记录。只在结算过程中由阶段状态机修改；
// 死亡玩家保留在玩家集合中供历史查询。
type Player struct {
	ID         string       `json:"id"`
	SeatNumber int          `json:"seat_number"`
	Status     PlayerStatus `json:"status"`
	Hand       []*card.Card `json:"hand"`

	IsWitch                 bool   `json:"is_witch"`
	WitchKillerHolder       bool   `json:"witch_killer_holder"`
	LastKillRound           int    `json:"last_kill_round"`
	ConsecutiveNoKillRounds int    `json:"consecutive_no_kill_rounds"`
	HasBarrier              bool   `json:"has_barrier"`
	BarrierSource           string `json:"barrier_source,omitempty"`

	DeathRound int        `json:"death_round,omitempty"`
	DeathCause DeathCause `json:"death_cause,omitempty"`
	KillerID   string     `json:"killer_id,omitempty"`
}

func newPlayer(id string, seat int) *Player {
	return &Player{
		ID:         id,
		SeatNumber: seat,
		Status:     StatusAlive,
	}
}

// IsAlive 女巫也算存活
func (p *Player) IsAlive() bool {
	return p.Status == StatusAlive || p.Status == StatusWitch
}

// FindCard returns the card with the given id if it is in the hand.
func (p *Player) FindCard(cardID string) (*card.Card, bool) {
	for _, c := range p.Hand {
		if c.ID == cardID {
			return c, true
		}
	}
	return nil, false
}

// HasCardType reports whether the hand holds at least one card of type t.
func (p *Player) HasCardType(t card.Type) bool {
	for _, c := range p.Hand {
		if c.Type == t {
			return true
		}
	}
	return false
}

// TakeCard removes and returns the card with the given id. The caller owns the
// card afterwards; it must be placed into exactly one container.
func (p *Player) TakeCard(cardID string) (*card.Card, bool) {
	for i, c := range p.Hand {
		if c.ID == cardID {
			p.Hand = append(p.Hand[:i], p.Hand[i+1:]...)
			return c, true
		}
	}
	return nil, false
}

// TakeCardOfType removes and returns the first card of type t.
func (p *Player) TakeCardOfType(t card.Type) (*card.Card, bool) {
	for i, c := range p.Hand {
		if c.Type == t {
			p.Hand = append(p.Hand[:i], p.Hand[i+1:]...)
			return c, true
		}
	}
	return nil, false
}

// TakeHand empties the hand and returns all cards, used when a dead player
// drops their cards.
func (p *Player) TakeHand() []*card.Card {
	hand := p.Hand
	p.Hand = nil
	return hand
}

// GiveCard appends a card to the hand. Redistribution may push a hand past the
// configured maximum; replenishment simply draws nothing for overfull hands.
func (p *Player) GiveCard(c *card.Card) {
	p.Hand = append(p.Hand, c)
	if c.Type == card.TypeWitchKiller {
		p.WitchKillerHolder = true
	}
}

// TransformToWitch 单向转换：存活玩家成为女巫
func (p *Player) TransformToWitch() {
	if !p.IsAlive() || p.IsWitch {
		return
	}
	p.Status = StatusWitch
	p.IsWitch = true
}

// MarkDead 单向转换：记录死亡元数据
func (p *Player) MarkDead(round int, cause DeathCause, killerID string) {
	if !p.IsAlive() {
		return
	}
	if cause == CauseWreck {
		p.Status = StatusWreck
	} else {
		p.Status = StatusDead
	}
	p.DeathRound = round
	p.DeathCause = cause
	p.KillerID = killerID
	p.HasBarrier = false
	p.BarrierSource = ""
}

// handSnapshot copies the current hand by value, for records and projections.
func (p *Player) handSnapshot() []card.Card {
	out := make([]card.Card, len(p.Hand))
	for i, c := range p.Hand {
		out[i] = *c
	}
	return out
}
