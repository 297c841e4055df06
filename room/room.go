// room/room.go
package room

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/wfunc/witchtrial/config"
	"github.com/wfunc/witchtrial/game"
	"github.com/wfunc/witchtrial/logger"
	"github.com/wfunc/witchtrial/network"
	"github.com/wfunc/witchtrial/phase"
	"github.com/wfunc/witchtrial/session"
	"github.com/wfunc/witchtrial/timer"
)

// RoomStatus 房间业务状态
type RoomStatus int

const (
	StatusWaiting RoomStatus = iota
	StatusPlaying
	StatusFinished
)

var (
	ErrGameNotStarted     = errors.New("game has not started")
	ErrGameAlreadyStarted = errors.New("game already started")
	ErrNotEnoughPlayers   = errors.New("not enough players to start")
)

// Room 承载一局游戏。mutex 是单写者边界：提交与推进都在锁内执行，
// 任何读写都不会观察到半结算的回合。
type Room struct {
	ID        string
	Name      string
	Rules     config.GameRules
	Status    RoomStatus
	CreatedAt time.Time

	// Players/order 由 playerMutex 保护，广播路径只取 playerMutex，
	// 避免与持有 mutex 的发布方互等
	Players map[string]*session.Session // sessionID -> session（sessionID 即引擎玩家 ID）
	order   []string                    // 入座顺序
	ready   map[string]bool

	machine     *phase.Machine
	eventCursor int

	broadcaster Broadcaster
	recorder    Recorder
	observer    Observer
	timers      *timer.Manager
	phaseTimer  int64

	mutex       sync.Mutex // 单写者边界：提交、推进、结算
	playerMutex sync.RWMutex
}

// NewRoom 创建房间。timers 与 recorder 可为 nil（测试或不落库的部署）。
func NewRoom(id, name string, rules config.GameRules, broadcaster Broadcaster, timers *timer.Manager, recorder Recorder) *Room {
	return &Room{
		ID:          id,
		Name:        name,
		Rules:       rules,
		Status:      StatusWaiting,
		CreatedAt:   time.Now(),
		Players:     make(map[string]*session.Session),
		ready:       make(map[string]bool),
		broadcaster: broadcaster,
		recorder:    recorder,
		timers:      timers,
	}
}

// SetObserver attaches an optional metrics observer. Call before Start.
func (r *Room) SetObserver(o Observer) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.observer = o
}

// AddPlayer 入座。开局后和满员后拒绝。
func (r *Room) AddPlayer(s *session.Session) bool {
	if !r.seatPlayer(s) {
		return false
	}
	r.publishRoomState()
	return true
}

func (r *Room) seatPlayer(s *session.Session) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.Status != StatusWaiting {
		return false
	}

	r.playerMutex.Lock()
	defer r.playerMutex.Unlock()
	if len(r.Players) >= r.Rules.MaxPlayers {
		return false
	}
	if _, exists := r.Players[s.ID]; exists {
		return false
	}
	r.Players[s.ID] = s
	r.order = append(r.order, s.ID)
	s.RoomID = r.ID
	s.BindPlayer(s.ID)
	return true
}

// RemovePlayer 离座，仅等待期有效；开局后掉线的玩家留在局内
func (r *Room) RemovePlayer(sessionID string) {
	if r.unseatPlayer(sessionID) {
		r.publishRoomState()
	}
}

func (r *Room) unseatPlayer(sessionID string) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.Status != StatusWaiting {
		return false
	}
	delete(r.ready, sessionID)

	r.playerMutex.Lock()
	defer r.playerMutex.Unlock()
	s, exists := r.Players[sessionID]
	if !exists {
		return false
	}
	s.RoomID = ""
	delete(r.Players, sessionID)
	for i, id := range r.order {
		if id == sessionID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// publishRoomState 座位变化时向全房间同步等待区状态
func (r *Room) publishRoomState() {
	r.playerMutex.RLock()
	seats := make([]string, len(r.order))
	copy(seats, r.order)
	r.playerMutex.RUnlock()

	data, err := json.Marshal(map[string]interface{}{
		"room_id":     r.ID,
		"name":        r.Name,
		"players":     seats,
		"max_players": r.Rules.MaxPlayers,
	})
	if err != nil {
		return
	}
	r.broadcaster.BroadcastToRoom(r.ID, network.MsgTypeRoomState, data)
}

// Sessions returns a snapshot of the seated sessions (safe for broadcast).
func (r *Room) Sessions() []*session.Session {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()

	sessions := make([]*session.Session, 0, len(r.Players))
	for _, s := range r.Players {
		sessions = append(sessions, s)
	}
	return sessions
}

// PlayerCount returns the number of seated players.
func (r *Room) PlayerCount() int {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()
	return len(r.Players)
}

// GetStatus returns the room's business status.
func (r *Room) GetStatus() RoomStatus {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.Status
}

// Game returns the aggregate, nil before the game starts.
func (r *Room) Game() *game.GameState {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.machine == nil {
		return nil
	}
	return r.machine.State()
}

// View 在锁内派生玩家视图，读不到半结算的回合
func (r *Room) View(playerID string) (game.PlayerView, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.machine == nil {
		return game.PlayerView{}, ErrGameNotStarted
	}
	return game.ViewFor(r.machine.State(), playerID), nil
}

// MarkReady 标记准备。等待期：人齐且全员准备则开局。白天阶段：
// 全员存活者准备则提前进入投票（白天没有引擎强制的转换条件）。
func (r *Room) MarkReady(sessionID string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.Players[sessionID]; !exists {
		return errors.New("session not in room")
	}
	r.ready[sessionID] = true

	switch {
	case r.Status == StatusWaiting:
		if len(r.Players) >= r.Rules.MinPlayers && r.allReady() {
			return r.startLocked()
		}
	case r.Status == StatusPlaying && r.machine.Current() == game.PhaseDay:
		if r.allAliveReady() {
			_, err := r.advanceLocked()
			return err
		}
	}
	return nil
}

func (r *Room) allReady() bool {
	for id := range r.Players {
		if !r.ready[id] {
			return false
		}
	}
	return true
}

func (r *Room) allAliveReady() bool {
	gs := r.machine.State()
	for _, id := range gs.AliveIDs() {
		if !r.ready[id] {
			return false
		}
	}
	return true
}

// Start 手动开局（房主触发）
func (r *Room) Start() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.startLocked()
}

func (r *Room) startLocked() error {
	if r.Status != StatusWaiting {
		return ErrGameAlreadyStarted
	}
	if len(r.Players) < r.Rules.MinPlayers {
		return ErrNotEnoughPlayers
	}

	gs := game.NewGame(r.ID, r.order, r.Rules, nil)
	r.machine = phase.NewMachine(gs)
	r.Status = StatusPlaying
	r.ready = make(map[string]bool)

	logger.Log.Infow("game started", "room_id", r.ID, "game_id", gs.ID, "players", len(r.order))
	if r.broadcaster != nil {
		data, _ := json.Marshal(game.PublicState(gs))
		r.broadcaster.BroadcastToRoom(r.ID, network.MsgTypeGameStart, data)
	}

	// 开局推进：Lobby -> Morning
	_, err := r.advanceLocked()
	return err
}

// SubmitAction 夜晚行动入口。提交在房间锁内原子落入缓冲。
func (r *Room) SubmitAction(playerID, cardID, targetID string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.Status != StatusPlaying {
		return ErrGameNotStarted
	}
	err := r.machine.State().RecordAction(playerID, cardID, targetID)
	r.publishLocked()
	return err
}

// SubmitVote 投票入口，同一投票者后投覆盖先投
func (r *Room) SubmitVote(voterID, targetID string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.Status != StatusPlaying {
		return ErrGameNotStarted
	}
	err := r.machine.State().RecordVote(voterID, targetID)
	r.publishLocked()
	return err
}

// AdvancePhase 推进阶段。定时器到期与显式调用都走这里；结算在锁内
// 一次性跑完，到期信号只是排队，不会打断结算。
func (r *Room) AdvancePhase() (*phase.PhaseResult, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.Status != StatusPlaying {
		return nil, ErrGameNotStarted
	}
	return r.advanceLocked()
}

func (r *Room) advanceLocked() (*phase.PhaseResult, error) {
	start := time.Now()
	result, err := r.machine.Advance()
	if err != nil {
		return nil, err
	}
	if r.observer != nil && result.From == game.PhaseNight {
		r.observer.ObserveResolution(time.Since(start))
	}
	r.ready = make(map[string]bool) // 阶段内的准备标记只在本阶段有效
	r.publishLocked()
	r.scheduleLocked()

	if result.Ended {
		r.finishLocked(result)
	}
	return result, nil
}

// publishLocked 把未投递的事件按可见性发出：公开事件广播，私密事件点对点
func (r *Room) publishLocked() {
	if r.machine == nil {
		return
	}
	gs := r.machine.State()
	events := gs.EventsSince(r.eventCursor)
	r.eventCursor = len(gs.Events)
	if r.broadcaster == nil {
		return
	}
	for _, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			logger.Log.Errorw("marshal event", "room_id", r.ID, "err", err)
			continue
		}
		// 阶段切换走独立的消息号，客户端不必过滤事件流
		var msgID uint16 = network.MsgTypeGameEvent
		if e.Type == game.EventPhaseChange {
			msgID = network.MsgTypePhaseChange
		}
		if e.Public() {
			r.broadcaster.BroadcastToRoom(r.ID, msgID, data)
		} else {
			r.broadcaster.SendToPlayer(e.RecipientID, msgID, data)
		}
	}
}

// scheduleLocked 为有时限的阶段挂一个到期推进的定时器
func (r *Room) scheduleLocked() {
	if r.timers == nil {
		return
	}
	if r.phaseTimer != 0 {
		r.timers.Cancel(r.phaseTimer)
		r.phaseTimer = 0
	}
	gs := r.machine.State()
	if gs.Status == game.PhaseEnded {
		return
	}
	d := r.Rules.PhaseDuration(string(gs.Status))
	if d <= 0 {
		return
	}
	r.phaseTimer = r.timers.After(d, r.ID, func() {
		if _, err := r.AdvancePhase(); err != nil {
			logger.Log.Warnw("timed phase advance failed", "room_id", r.ID, "err", err)
		}
	})
}

func (r *Room) finishLocked(result *phase.PhaseResult) {
	r.Status = StatusFinished
	if r.observer != nil {
		r.observer.GameFinished()
	}
	gs := r.machine.State()
	logger.Log.Infow("game finished",
		"room_id", r.ID, "game_id", gs.ID, "reason", result.Result.Reason, "round", result.Round)

	if r.recorder != nil {
		if err := r.recorder.RecordFinishedGame(gs, result.Result); err != nil {
			logger.Log.Errorw("record finished game", "game_id", gs.ID, "err", err)
		}
	}
	if r.broadcaster != nil {
		data, _ := json.Marshal(result.Result)
		r.broadcaster.BroadcastToRoom(r.ID, network.MsgTypeGameEnd, data)
	}
}

// Close 关闭房间并取消挂起的定时器
func (r *Room) Close() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.timers != nil {
		r.timers.CancelTag(r.ID)
	}
}

// --- 房间管理器 ---

// Manager 管理所有房间
type Manager struct {
	rooms map[string]*Room
	mutex sync.RWMutex
}

func NewRoomManager() *Manager {
	return &Manager{
		rooms: make(map[string]*Room),
	}
}

func (m *Manager) CreateRoom(id, name string, rules config.GameRules, broadcaster Broadcaster, timers *timer.Manager, recorder Recorder) *Room {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	room := NewRoom(id, name, rules, broadcaster, timers, recorder)
	m.rooms[id] = room
	return room
}

func (m *Manager) RemoveRoom(id string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if room, exists := m.rooms[id]; exists {
		room.Close()
		delete(m.rooms, id)
	}
}

func (m *Manager) GetRoom(id string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	room, exists := m.rooms[id]
	return room, exists
}

// FindAvailableRoom 查找一个未开局且未满员的房间
func (m *Manager) FindAvailableRoom() *Room {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	for _, room := range m.rooms {
		if room.GetStatus() == StatusWaiting && room.PlayerCount() < room.Rules.MaxPlayers {
			return room
		}
	}
	return nil
}

// Count returns the number of managed rooms.
func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}
