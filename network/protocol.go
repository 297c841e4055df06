package network

const (
	MsgTypeHeartbeat = 1

	MsgTypeCreateRoom = 101
	MsgTypeJoinRoom   = 102
	MsgTypeLeaveRoom  = 103
	MsgTypeReady      = 104

	MsgTypeSubmitAction = 201
	MsgTypeSubmitVote   = 202
	MsgTypeError        = 203

	MsgTypeRoomState    = 301
	MsgTypePhaseChange  = 302
	MsgTypeGameEvent    = 303
	MsgTypePlayerView   = 304
	MsgTypeGameStart    = 305
	MsgTypeGameEnd      = 306
)
