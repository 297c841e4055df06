package room

import (
	"time"

	"github.com/wfunc/witchtrial/game"
)

// Broadcaster delivers engine events to connected clients.
// Defined here to break the import cycle between room and broadcast.
type Broadcaster interface {
	BroadcastToRoom(roomID string, msgID uint16, data []byte) error
	SendToPlayer(playerID string, msgID uint16, data []byte) error
}

// Recorder persists a finished game. Defined here to break the import
// cycle between room and services.
type Recorder interface {
	RecordFinishedGame(gs *game.GameState, result *game.GameResult) error
}

// Observer receives room-level measurements for the metrics surface.
type Observer interface {
	ObserveResolution(d time.Duration)
	GameFinished()
}
