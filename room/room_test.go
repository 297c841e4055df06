package room

import (
	"net"
	"os"
	"testing"
	"time"

	"github.com/wfunc/witchtrial/config"
	"github.com/wfunc/witchtrial/game"
	"github.com/wfunc/witchtrial/logger"
	"github.com/wfunc/witchtrial/network"
	"github.com/wfunc/witchtrial/session"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

// MockBroadcaster is a test double for the Broadcaster interface.
type MockBroadcaster struct {
	Broadcasts []uint16
	Privates   []uint16
}

func (m *MockBroadcaster) BroadcastToRoom(roomID string, msgID uint16, data []byte) error {
	m.Broadcasts = append(m.Broadcasts, msgID)
	return nil
}

func (m *MockBroadcaster) SendToPlayer(playerID string, msgID uint16, data []byte) error {
	m.Privates = append(m.Privates, msgID)
	return nil
}

func (m *MockBroadcaster) countBroadcast(msgID uint16) int {
	n := 0
	for _, id := range m.Broadcasts {
		if id == msgID {
			n++
		}
	}
	return n
}

// MockRecorder is a test double for the Recorder interface.
type MockRecorder struct {
	Recorded []*game.GameResult
}

func (m *MockRecorder) RecordFinishedGame(gs *game.GameState, result *game.GameResult) error {
	m.Recorded = append(m.Recorded, result)
	return nil
}

// MockConnection is a test double for the network.Connection interface.
type MockConnection struct{}

func (m *MockConnection) Send(msgID uint16, data []byte) error         { return nil }
func (m *MockConnection) SendJSON(msgID uint16, v interface{}) error   { return nil }
func (m *MockConnection) Close() error                                 { return nil }
func (m *MockConnection) RemoteAddr() net.Addr                         { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration)          {}
func (m *MockConnection) ReadPacket() (*network.Packet, error)         { return nil, nil }

// newTestSession creates a dummy session for testing purposes.
func newTestSession(id string) *session.Session {
	return session.NewSession(id, &MockConnection{})
}

// testRules keeps the rooms small and the deck empty for deterministic tests.
func testRules() config.GameRules {
	rules := config.DefaultGameRules()
	rules.MinPlayers = 2
	rules.MaxPlayers = 3
	rules.CardPool = map[string]int{}
	rules.InitialHandSize = 0
	return rules
}

func TestRoomManager_CreateAndGetRoom(t *testing.T) {
	manager := NewRoomManager()
	mockBroadcaster := &MockBroadcaster{}

	roomID := "test_room_1"
	room := manager.CreateRoom(roomID, "Test Room", testRules(), mockBroadcaster, nil, nil)

	if room == nil {
		t.Fatal("CreateRoom should not return nil")
	}
	if room.ID != roomID {
		t.Errorf("Expected room ID %s, got %s", roomID, room.ID)
	}

	retrievedRoom, exists := manager.GetRoom(roomID)
	if !exists {
		t.Fatal("GetRoom should find the created room")
	}
	if retrievedRoom != room {
		t.Error("GetRoom should return the same room instance")
	}

	if found := manager.FindAvailableRoom(); found != room {
		t.Error("FindAvailableRoom should return the waiting room")
	}

	manager.RemoveRoom(roomID)
	if manager.Count() != 0 {
		t.Errorf("Expected 0 rooms after removal, got %d", manager.Count())
	}
}

func TestRoom_AddPlayer(t *testing.T) {
	room := NewRoom("test_room_2", "Add Player Test", testRules(), &MockBroadcaster{}, nil, nil)

	player1 := newTestSession("player1")
	if !room.AddPlayer(player1) {
		t.Fatal("Failed to add first player")
	}
	if room.PlayerCount() != 1 {
		t.Errorf("Expected player count to be 1, got %d", room.PlayerCount())
	}
	if player1.RoomID != room.ID {
		t.Error("AddPlayer must bind the session to the room")
	}
	if player1.GetPlayerID() != player1.ID {
		t.Error("AddPlayer must bind the engine player id")
	}

	// 重复入座被拒
	if room.AddPlayer(player1) {
		t.Error("the same session must not be seated twice")
	}
}

func TestRoom_AddPlayer_Full(t *testing.T) {
	rules := testRules()
	rules.MaxPlayers = 1
	room := NewRoom("test_room_3", "Full Room Test", rules, &MockBroadcaster{}, nil, nil)

	if !room.AddPlayer(newTestSession("player1")) {
		t.Fatal("Failed to add the first player")
	}
	if room.AddPlayer(newTestSession("player2")) {
		t.Fatal("Should not be able to add a player to a full room")
	}
	if room.PlayerCount() != 1 {
		t.Errorf("Expected player count to be 1, got %d", room.PlayerCount())
	}
}

func TestRoom_RemovePlayer(t *testing.T) {
	room := NewRoom("test_room_4", "Remove Player Test", testRules(), &MockBroadcaster{}, nil, nil)

	player1 := newTestSession("player1")
	room.AddPlayer(player1)
	room.RemovePlayer(player1.GetID())

	if room.PlayerCount() != 0 {
		t.Errorf("Expected player count to be 0 after removing player, got %d", room.PlayerCount())
	}
	if player1.RoomID != "" {
		t.Error("RemovePlayer must unbind the session from the room")
	}
}

func TestRoom_SeatChangesBroadcastRoomState(t *testing.T) {
	mockBroadcaster := &MockBroadcaster{}
	room := NewRoom("test_room_4b", "Room State Test", testRules(), mockBroadcaster, nil, nil)

	player1 := newTestSession("player1")
	room.AddPlayer(player1)
	if got := mockBroadcaster.countBroadcast(network.MsgTypeRoomState); got != 1 {
		t.Fatalf("Expected 1 room state broadcast after seating, got %d", got)
	}

	room.RemovePlayer(player1.GetID())
	if got := mockBroadcaster.countBroadcast(network.MsgTypeRoomState); got != 2 {
		t.Errorf("Expected 2 room state broadcasts after unseating, got %d", got)
	}

	// 移除不存在的玩家不触发广播
	room.RemovePlayer("nobody")
	if got := mockBroadcaster.countBroadcast(network.MsgTypeRoomState); got != 2 {
		t.Errorf("Expected no extra broadcast for unknown player, got %d", got)
	}
}

func TestRoom_StartRequiresEnoughPlayers(t *testing.T) {
	room := NewRoom("test_room_5", "Start Test", testRules(), &MockBroadcaster{}, nil, nil)
	room.AddPlayer(newTestSession("player1"))

	if err := room.Start(); err != ErrNotEnoughPlayers {
		t.Errorf("Expected ErrNotEnoughPlayers, got %v", err)
	}

	room.AddPlayer(newTestSession("player2"))
	if err := room.Start(); err != nil {
		t.Fatalf("Start failed with enough players: %v", err)
	}
	if err := room.Start(); err != ErrGameAlreadyStarted {
		t.Errorf("Expected ErrGameAlreadyStarted, got %v", err)
	}
}

func TestRoom_ReadyAutoStart(t *testing.T) {
	mockBroadcaster := &MockBroadcaster{}
	room := NewRoom("test_room_6", "Ready Test", testRules(), mockBroadcaster, nil, nil)

	player1 := newTestSession("player1")
	player2 := newTestSession("player2")
	room.AddPlayer(player1)
	room.AddPlayer(player2)

	if err := room.MarkReady(player1.ID); err != nil {
		t.Fatalf("MarkReady failed: %v", err)
	}
	if room.GetStatus() != StatusWaiting {
		t.Fatal("the game must not start before everyone is ready")
	}

	if err := room.MarkReady(player2.ID); err != nil {
		t.Fatalf("MarkReady failed: %v", err)
	}
	if room.GetStatus() != StatusPlaying {
		t.Fatal("all players ready should start the game")
	}

	gs := room.Game()
	if gs == nil || gs.Status != game.PhaseMorning {
		t.Fatalf("Expected the game to open in the morning, got %+v", gs)
	}
	if mockBroadcaster.countBroadcast(network.MsgTypeGameStart) != 1 {
		t.Error("Expected a game start broadcast")
	}
}

func TestRoom_ReadySkipsDayPhase(t *testing.T) {
	room := NewRoom("test_room_7", "Day Skip Test", testRules(), &MockBroadcaster{}, nil, nil)
	player1 := newTestSession("player1")
	player2 := newTestSession("player2")
	room.AddPlayer(player1)
	room.AddPlayer(player2)
	if err := room.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Morning -> Day
	if _, err := room.AdvancePhase(); err != nil {
		t.Fatalf("advance failed: %v", err)
	}
	if room.Game().Status != game.PhaseDay {
		t.Fatalf("Expected day, got %s", room.Game().Status)
	}

	room.MarkReady(player1.ID)
	if room.Game().Status != game.PhaseDay {
		t.Fatal("one ready player must not end the day")
	}
	room.MarkReady(player2.ID)
	if room.Game().Status != game.PhaseVoting {
		t.Fatalf("all alive players ready should open voting, got %s", room.Game().Status)
	}
}

func TestRoom_SubmitBeforeStart(t *testing.T) {
	room := NewRoom("test_room_8", "Early Submit Test", testRules(), &MockBroadcaster{}, nil, nil)
	room.AddPlayer(newTestSession("player1"))

	if err := room.SubmitAction("player1", "card1", "player2"); err != ErrGameNotStarted {
		t.Errorf("Expected ErrGameNotStarted, got %v", err)
	}
	if err := room.SubmitVote("player1", "player2"); err != ErrGameNotStarted {
		t.Errorf("Expected ErrGameNotStarted, got %v", err)
	}
	if _, err := room.View("player1"); err != ErrGameNotStarted {
		t.Errorf("Expected ErrGameNotStarted from View, got %v", err)
	}
	if _, err := room.AdvancePhase(); err != ErrGameNotStarted {
		t.Errorf("Expected ErrGameNotStarted from AdvancePhase, got %v", err)
	}
}

func TestRoom_SubmitPassesEngineErrors(t *testing.T) {
	room := NewRoom("test_room_9", "Engine Error Test", testRules(), &MockBroadcaster{}, nil, nil)
	player1 := newTestSession("player1")
	player2 := newTestSession("player2")
	room.AddPlayer(player1)
	room.AddPlayer(player2)
	if err := room.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// 早晨投票属于规则违规，引擎的类型化错误原样返回
	err := room.SubmitVote(player1.ID, player2.ID)
	if !game.IsKind(err, game.ErrInvalidPhase) {
		t.Errorf("Expected the engine's invalid_phase error, got %v", err)
	}
}

func TestRoom_GameFlowToFinish(t *testing.T) {
	rules := testRules()
	rules.MaxRounds = 1
	mockBroadcaster := &MockBroadcaster{}
	mockRecorder := &MockRecorder{}
	room := NewRoom("test_room_10", "Flow Test", rules, mockBroadcaster, nil, mockRecorder)

	player1 := newTestSession("player1")
	player2 := newTestSession("player2")
	room.AddPlayer(player1)
	room.AddPlayer(player2)
	if err := room.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Morning -> Day -> Voting -> Night -> 结算 -> 回合耗尽终局
	var last = room.Game().Status
	for i := 0; i < 4; i++ {
		result, err := room.AdvancePhase()
		if err != nil {
			t.Fatalf("advance from %s failed: %v", last, err)
		}
		last = result.To
	}

	if room.GetStatus() != StatusFinished {
		t.Fatalf("Expected a finished room, got %d", room.GetStatus())
	}
	if len(mockRecorder.Recorded) != 1 || mockRecorder.Recorded[0].Reason != "rounds_exhausted" {
		t.Errorf("Expected the finished game to be recorded, got %+v", mockRecorder.Recorded)
	}
	if mockBroadcaster.countBroadcast(network.MsgTypeGameEnd) != 1 {
		t.Error("Expected a game end broadcast")
	}

	// 终局后的提交与推进被拒
	if _, err := room.AdvancePhase(); err != ErrGameNotStarted {
		t.Errorf("Expected ErrGameNotStarted after the finish, got %v", err)
	}
}

func TestRoom_ViewShowsOwnHandOnly(t *testing.T) {
	room := NewRoom("test_room_11", "View Test", testRules(), &MockBroadcaster{}, nil, nil)
	player1 := newTestSession("player1")
	player2 := newTestSession("player2")
	room.AddPlayer(player1)
	room.AddPlayer(player2)
	if err := room.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	view, err := room.View(player1.ID)
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
	if view.GameID == "" || len(view.Players) != 2 {
		t.Errorf("unexpected view: %+v", view)
	}
}
