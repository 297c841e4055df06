package rpc

import (
	"net"
	"net/rpc"

	"github.com/wfunc/witchtrial/logger"
	"github.com/wfunc/witchtrial/models"
	"github.com/wfunc/witchtrial/services"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
}

// NewServer creates a new RPC server. Services are registered by the caller.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// TrialService exposes admin queries over net/rpc.
type TrialService struct {
	records *services.RecordService
}

// NewTrialService creates a new TrialService.
func NewTrialService(rs *services.RecordService) *TrialService {
	return &TrialService{records: rs}
}

type GetGameSummaryArgs struct {
	GameID string
}

type GetGameSummaryReply struct {
	Summary *models.GameSummary
}

// GetGameSummary returns the archived record of a finished game.
func (ts *TrialService) GetGameSummary(args *GetGameSummaryArgs, reply *GetGameSummaryReply) error {
	summary, err := ts.records.GetGameSummary(args.GameID)
	if err != nil {
		return err
	}
	reply.Summary = summary
	return nil
}
