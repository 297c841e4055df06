// broadcast/broadcast.go
package broadcast

import (
	"errors"

	"github.com/wfunc/witchtrial/room"
	"github.com/wfunc/witchtrial/session"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrPlayerNotFound = errors.New("player session not found")
)

// RoomBroadcaster 按房间广播公开事件，按玩家点对点投递私密事件
type RoomBroadcaster struct {
	roomManager    *room.Manager
	sessionManager *session.Manager
}

func NewRoomBroadcaster(roomManager *room.Manager, sessionManager *session.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{
		roomManager:    roomManager,
		sessionManager: sessionManager,
	}
}

func (b *RoomBroadcaster) BroadcastToRoom(roomID string, msgID uint16, data []byte) error {
	rm, exists := b.roomManager.GetRoom(roomID)
	if !exists {
		return ErrRoomNotFound
	}

	for _, s := range rm.Sessions() {
		if err := s.Send(msgID, data); err != nil {
			// 发送失败不终止本轮广播，掉线由读循环清理
			continue
		}
	}
	return nil
}

// SendToPlayer delivers a private event to the session bound to playerID.
func (b *RoomBroadcaster) SendToPlayer(playerID string, msgID uint16, data []byte) error {
	s, exists := b.sessionManager.GetByPlayerID(playerID)
	if !exists {
		return ErrPlayerNotFound
	}
	return s.Send(msgID, data)
}
