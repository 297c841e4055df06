package game

// EventType 对外事件类型
type EventType string

const (
	EventPhaseChange    EventType = "phase_change"
	EventPlayerDie      EventType = "player_die"
	EventCardUsed       EventType = "card_used"
	EventCardDrawn      EventType = "card_drawn"
	EventVoteCast       EventType = "vote_cast"
	EventVoteResult     EventType = "vote_result"
	EventWitchTransform EventType = "witch_transform"
	EventWreckTransform EventType = "wreck_transform"
	EventGameEnd        EventType = "game_end"
)

// GameEvent 结算产生的有序事件。RecipientID 为空表示对全房间公开，
// 否则只发给指定玩家（侦测/查验结果、行动回执等私密信息）。
// 引擎只负责生成与排序，投递由外部传输层完成。
type GameEvent struct {
	Type        EventType              `json:"type"`
	Round       int                    `json:"round"`
	RecipientID string                 `json:"recipient_id,omitempty"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
}

// Public reports whether the event may be broadcast to the whole room.
func (e GameEvent) Public() bool { return e.RecipientID == "" }
