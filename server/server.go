package server

import (
	"encoding/json"
	"net/http"
	"net/rpc"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wfunc/witchtrial/broadcast"
	"github.com/wfunc/witchtrial/config"
	"github.com/wfunc/witchtrial/game"
	"github.com/wfunc/witchtrial/logger"
	"github.com/wfunc/witchtrial/monitor"
	"github.com/wfunc/witchtrial/network"
	"github.com/wfunc/witchtrial/persistence"
	"github.com/wfunc/witchtrial/room"
	trialrpc "github.com/wfunc/witchtrial/rpc"
	"github.com/wfunc/witchtrial/services"
	"github.com/wfunc/witchtrial/session"
	"github.com/wfunc/witchtrial/timer"
)

type GameServer struct {
	addr           string
	rules          config.GameRules
	upgrader       websocket.Upgrader
	roomManager    *room.Manager
	sessionManager *session.Manager
	recordService  *services.RecordService
	broadcaster    room.Broadcaster
	timers         *timer.Manager
	monitor        *monitor.Monitor
	rpcServer      *trialrpc.Server
	shutdownChan   chan struct{}
}

func NewGameServer(cfg *config.Config, db persistence.Database) *GameServer {
	s := &GameServer{
		addr:           cfg.Server.HTTPAddress,
		rules:          cfg.Game,
		roomManager:    room.NewRoomManager(),
		sessionManager: session.NewManager(),
		timers:         timer.NewManager(),
		monitor:        monitor.NewMonitor("witchtrial"),
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	if db != nil {
		s.recordService = services.NewRecordService(db)
	}
	s.broadcaster = broadcast.NewRoomBroadcaster(s.roomManager, s.sessionManager)

	rpcServer, err := trialrpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	s.rpcServer = rpcServer
	if s.recordService != nil {
		rpc.Register(trialrpc.NewTrialService(s.recordService))
	}

	if cfg.Server.MetricsAddress != "" {
		s.monitor.StartServer(cfg.Server.MetricsAddress)
	}

	return s
}

func (s *GameServer) Start() error {
	go s.rpcServer.Start()

	http.HandleFunc("/ws", s.handleWebSocket)
	logger.Log.Infof("Witch trial server listening on %s", s.addr)
	return http.ListenAndServe(s.addr, nil)
}

func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
	s.rpcServer.Stop()
	s.timers.Stop()
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)
	s.monitor.IncOnlinePlayers()

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.sessionManager.Remove(sess.GetID())
		s.monitor.DecOnlinePlayers()
		if sess.RoomID != "" {
			if rm, exists := s.roomManager.GetRoom(sess.RoomID); exists {
				rm.RemovePlayer(sess.GetID())
				if rm.GetStatus() == room.StatusWaiting && rm.PlayerCount() == 0 {
					s.roomManager.RemoveRoom(rm.ID)
				}
			}
		}
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			packet, err := wsConn.ReadPacket()
			if err != nil {
				return
			}
			s.handlePacket(sess, packet)
		}
	}
}

func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) {
	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		sess.LastActive = time.Now()
	case network.MsgTypeCreateRoom:
		s.handleCreateRoom(sess, packet)
	case network.MsgTypeJoinRoom:
		s.handleJoinRoom(sess, packet)
	case network.MsgTypeLeaveRoom:
		s.handleLeaveRoom(sess)
	case network.MsgTypeReady:
		s.handleReady(sess)
	case network.MsgTypeSubmitAction:
		s.handleSubmitAction(sess, packet)
	case network.MsgTypeSubmitVote:
		s.handleSubmitVote(sess, packet)
	case network.MsgTypePlayerView:
		s.handlePlayerView(sess)
	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
	}
}

func (s *GameServer) handleCreateRoom(sess *session.Session, packet *network.Packet) {
	var req struct {
		Name string `json:"name"`
	}
	json.Unmarshal(packet.Data, &req)
	if req.Name == "" {
		req.Name = "Witch Trial"
	}

	roomID := uuid.New().String()
	rm := s.roomManager.CreateRoom(roomID, req.Name, s.rules, s.broadcaster, s.timers, s.recorder())
	rm.SetObserver(monitorObserver{s.monitor})
	rm.AddPlayer(sess)
	s.monitor.SetActiveGames(s.roomManager.Count())

	logger.Log.Infof("Session %s created room %s", sess.GetID(), roomID)
	sess.SendJSON(network.MsgTypeCreateRoom, map[string]string{"room_id": roomID, "player_id": sess.GetPlayerID()})
}

func (s *GameServer) handleJoinRoom(sess *session.Session, packet *network.Packet) {
	var req struct {
		RoomID string `json:"room_id"`
	}
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendError(sess, "invalid_request", err.Error())
		return
	}

	var rm *room.Room
	if req.RoomID != "" {
		var exists bool
		rm, exists = s.roomManager.GetRoom(req.RoomID)
		if !exists {
			s.sendError(sess, "room_not_found", req.RoomID)
			return
		}
	} else {
		// 未指定房间时自动匹配
		rm = s.roomManager.FindAvailableRoom()
		if rm == nil {
			s.sendError(sess, "no_available_room", "")
			return
		}
	}

	if !rm.AddPlayer(sess) {
		s.sendError(sess, "room_unavailable", rm.ID)
		return
	}
	logger.Log.Infof("Session %s joined room %s", sess.GetID(), rm.ID)
	sess.SendJSON(network.MsgTypeJoinRoom, map[string]string{"room_id": rm.ID, "player_id": sess.GetPlayerID()})
}

func (s *GameServer) handleLeaveRoom(sess *session.Session) {
	if sess.RoomID == "" {
		return
	}
	if rm, exists := s.roomManager.GetRoom(sess.RoomID); exists {
		rm.RemovePlayer(sess.GetID())
	}
}

func (s *GameServer) handleReady(sess *session.Session) {
	rm, ok := s.sessionRoom(sess)
	if !ok {
		return
	}
	if err := rm.MarkReady(sess.GetID()); err != nil {
		s.sendError(sess, "ready_failed", err.Error())
	}
}

func (s *GameServer) handleSubmitAction(sess *session.Session, packet *network.Packet) {
	rm, ok := s.sessionRoom(sess)
	if !ok {
		return
	}
	var req struct {
		CardID   string `json:"card_id"`
		TargetID string `json:"target_id"`
	}
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendError(sess, "invalid_request", err.Error())
		return
	}
	s.monitor.IncActionsSubmitted()
	if err := rm.SubmitAction(sess.GetPlayerID(), req.CardID, req.TargetID); err != nil {
		s.sendGameError(sess, err)
	}
}

func (s *GameServer) handleSubmitVote(sess *session.Session, packet *network.Packet) {
	rm, ok := s.sessionRoom(sess)
	if !ok {
		return
	}
	var req struct {
		TargetID string `json:"target_id"`
	}
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendError(sess, "invalid_request", err.Error())
		return
	}
	s.monitor.IncVotesSubmitted()
	if err := rm.SubmitVote(sess.GetPlayerID(), req.TargetID); err != nil {
		s.sendGameError(sess, err)
	}
}

func (s *GameServer) handlePlayerView(sess *session.Session) {
	rm, ok := s.sessionRoom(sess)
	if !ok {
		return
	}
	view, err := rm.View(sess.GetPlayerID())
	if err != nil {
		s.sendError(sess, "view_unavailable", err.Error())
		return
	}
	sess.SendJSON(network.MsgTypePlayerView, view)
}

func (s *GameServer) sessionRoom(sess *session.Session) (*room.Room, bool) {
	if sess.RoomID == "" {
		s.sendError(sess, "not_in_room", "")
		return nil, false
	}
	rm, exists := s.roomManager.GetRoom(sess.RoomID)
	if !exists {
		logger.Log.Errorf("Room %s not found for session %s", sess.RoomID, sess.GetID())
		s.sendError(sess, "room_not_found", sess.RoomID)
		return nil, false
	}
	return rm, true
}

func (s *GameServer) sendError(sess *session.Session, code, detail string) {
	sess.SendJSON(network.MsgTypeError, map[string]string{"code": code, "detail": detail})
}

// sendGameError 把引擎的类型化错误原样回给提交者
func (s *GameServer) sendGameError(sess *session.Session, err error) {
	if ge, ok := err.(*game.GameError); ok {
		sess.SendJSON(network.MsgTypeError, map[string]string{
			"code":   string(ge.Kind),
			"detail": ge.Message,
		})
		return
	}
	s.sendError(sess, "internal", err.Error())
}

func (s *GameServer) recorder() room.Recorder {
	if s.recordService == nil {
		return nil
	}
	return s.recordService
}

// monitorObserver adapts the prometheus monitor to the room's observer hook.
type monitorObserver struct {
	m *monitor.Monitor
}

func (o monitorObserver) ObserveResolution(d time.Duration) { o.m.ObserveResolutionTime(d) }

func (o monitorObserver) GameFinished() { o.m.IncGamesFinished() }
