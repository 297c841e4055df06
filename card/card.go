// card 包实现卡牌目录与牌堆机制
package card

import (
	"github.com/google/uuid"
)

// Type 卡牌类型
type Type int

const (
	TypeWitchKiller Type = iota
	TypeBarrier
	TypeKill
	TypeDetect
	TypeCheck
)

func (t Type) String() string {
	switch t {
	case TypeWitchKiller:
		return "witch_killer"
	case TypeBarrier:
		return "barrier"
	case TypeKill:
		return "kill"
	case TypeDetect:
		return "detect"
	case TypeCheck:
		return "check"
	}
	return "unknown"
}

// TypeFromName resolves a configured pool key back to a card type.
func TypeFromName(name string) (Type, bool) {
	for _, t := range allTypes {
		if t.String() == name {
			return t, true
		}
	}
	return 0, false
}

var allTypes = []Type{TypeWitchKiller, TypeBarrier, TypeKill, TypeDetect, TypeCheck}

// Card 卡牌实例。除 ID 外的字段来自目录定义，创建后不再修改。
// 任一时刻一张卡只属于一个容器（某个玩家手牌、牌堆或弃牌堆）。
type Card struct {
	ID          string `json:"id"`
	Type        Type   `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Consumable  bool   `json:"consumable"`
	Priority    int    `json:"priority"`
}

type definition struct {
	name        string
	description string
	consumable  bool
	priority    int
}

// 目录定义。优先级决定结算顺序：女巫杀手 > 侦测 > 杀戮 > 结界 > 查验。
// 女巫杀手是唯一不可消耗的卡，使用后留在持有者手中，只随死亡/衰变转移。
var catalog = map[Type]definition{
	TypeWitchKiller: {"Witch Killer", "The unique forced-play blade. Its holder may play no other card.", false, 100},
	TypeDetect:      {"Detect", "Reveal a target's hand size and one random card.", true, 90},
	TypeKill:        {"Kill Magic", "Lethal magic, limited by the nightly attack quota.", true, 80},
	TypeBarrier:     {"Barrier", "A single-use shield that blocks one attack tonight.", true, 50},
	TypeCheck:       {"Check", "Learn whether a dead player fell to the Witch Killer.", true, 10},
}

// New instantiates one card of the given type from the catalog.
func New(t Type) *Card {
	def := catalog[t]
	return &Card{
		ID:          uuid.New().String(),
		Type:        t,
		Name:        def.name,
		Description: def.description,
		Consumable:  def.consumable,
		Priority:    def.priority,
	}
}

// Priority returns the catalog priority for a type without instantiating a card.
func Priority(t Type) int {
	return catalog[t].priority
}
