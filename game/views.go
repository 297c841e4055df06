package game

import (
	"time"

	"github.com/wfunc/witchtrial/card"
)

// PublicPlayer 对外投影：只有存活与手牌数量，不含手牌内容与死因
type PublicPlayer struct {
	ID        string `json:"id"`
	Seat      int    `json:"seat"`
	Alive     bool   `json:"alive"`
	HandCount int    `json:"hand_count"`
}

// PublicGameState 房间内所有人可见的只读视图
type PublicGameState struct {
	GameID       string         `json:"game_id"`
	RoomID       string         `json:"room_id"`
	Phase        Phase          `json:"phase"`
	Round        int            `json:"round"`
	Players      []PublicPlayer `json:"players"`
	ImprisonedID string         `json:"imprisoned_id,omitempty"`
	DeckCount    int            `json:"deck_count"`
	DiscardCount int            `json:"discard_count"`
	PhaseEndsAt  time.Time      `json:"phase_ends_at,omitempty"`
}

// PlayerView 单个玩家的只读视图：公开视图加上自己的完整手牌与标记
type PlayerView struct {
	PublicGameState
	Hand              []card.Card `json:"hand"`
	IsWitch           bool        `json:"is_witch"`
	HasBarrier        bool        `json:"has_barrier"`
	WitchKillerHolder bool        `json:"witch_killer_holder"`
	PrivateEvents     []GameEvent `json:"private_events,omitempty"`
}

// PublicState derives the redacted room-wide projection.
func PublicState(gs *GameState) PublicGameState {
	view := PublicGameState{
		GameID:       gs.ID,
		RoomID:       gs.RoomID,
		Phase:        gs.Status,
		Round:        gs.Round,
		ImprisonedID: gs.ImprisonedID,
		DeckCount:    gs.Deck.Len(),
		DiscardCount: gs.Deck.DiscardLen(),
		PhaseEndsAt:  gs.PhaseEndTime,
	}
	for _, id := range gs.PlayerOrder {
		p := gs.Players[id]
		view.Players = append(view.Players, PublicPlayer{
			ID:        p.ID,
			Seat:      p.SeatNumber,
			Alive:     p.IsAlive(),
			HandCount: len(p.Hand),
		})
	}
	return view
}

// ViewFor derives a player's own view: the public projection plus their full
// hand, own flags and the private events addressed to them this round.
func ViewFor(gs *GameState, playerID string) PlayerView {
	view := PlayerView{PublicGameState: PublicState(gs)}
	p := gs.Players[playerID]
	if p == nil {
		return view
	}
	view.Hand = p.handSnapshot()
	view.IsWitch = p.IsWitch
	view.HasBarrier = p.HasBarrier
	view.WitchKillerHolder = p.WitchKillerHolder
	for _, e := range gs.Events {
		if e.RecipientID == playerID && e.Round == gs.Round {
			view.PrivateEvents = append(view.PrivateEvents, e)
		}
	}
	return view
}
