package orchestratorrpc

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"

	"github.com/roasbeef/prreview/internal/orchestrate"
)

// ServerConfig holds configuration for the orchestrator status gRPC
// server, following the teacher's keepalive/ping conventions.
type ServerConfig struct {
	ListenAddr                   string
	ServerPingTime               time.Duration
	ServerPingTimeout            time.Duration
	ClientPingMinWait            time.Duration
	ClientAllowPingWithoutStream bool
}

// DefaultServerConfig returns sensible keepalive defaults for a small,
// locally-polled status service.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:                   "localhost:10109",
		ServerPingTime:               5 * time.Minute,
		ServerPingTimeout:            1 * time.Minute,
		ClientPingMinWait:            5 * time.Second,
		ClientAllowPingWithoutStream: true,
	}
}

// Server exposes an *orchestrate.Orchestrator's queue status over gRPC.
type Server struct {
	cfg  ServerConfig
	orch *orchestrate.Orchestrator

	grpcServer *grpc.Server
	listener   net.Listener

	started bool
	mu      sync.RWMutex

	quit chan struct{}
	wg   sync.WaitGroup
}

// NewServer wraps orch for serving over gRPC.
func NewServer(cfg ServerConfig, orch *orchestrate.Orchestrator) *Server {
	return &Server{
		cfg:  cfg,
		orch: orch,
		quit: make(chan struct{}),
	}
}

// Start starts listening and serving in a background goroutine.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("server already started")
	}

	lis, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddr, err)
	}
	s.listener = lis

	s.grpcServer = grpc.NewServer(s.buildServerOptions()...)
	RegisterOrchestratorStatusServer(s.grpcServer, s)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		slog.Info("orchestrator status server listening", "addr", s.cfg.ListenAddr)
		if err := s.grpcServer.Serve(lis); err != nil {
			select {
			case <-s.quit:
			default:
				slog.Error("orchestrator status server error", "error", err)
			}
		}
	}()

	s.started = true
	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	close(s.quit)
	s.grpcServer.GracefulStop()
	s.wg.Wait()

	s.started = false
	slog.Info("orchestrator status server stopped")
	return nil
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) buildServerOptions() []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    s.cfg.ServerPingTime,
			Timeout: s.cfg.ServerPingTimeout,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             s.cfg.ClientPingMinWait,
			PermitWithoutStream: s.cfg.ClientAllowPingWithoutStream,
		}),
		grpc.ChainUnaryInterceptor(s.loggingUnaryInterceptor),
	}
}

func (s *Server) loggingUnaryInterceptor(
	ctx context.Context,
	req any,
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (any, error) {
	start := time.Now()

	resp, err := handler(ctx, req)

	duration := time.Since(start)
	if err != nil {
		slog.Warn("status RPC failed", "method", info.FullMethod, "duration", duration, "error", err)
	} else {
		slog.Debug("status RPC completed", "method", info.FullMethod, "duration", duration)
	}

	return resp, err
}

// GetQueueStatus implements OrchestratorStatusServer.
func (s *Server) GetQueueStatus(ctx context.Context, _ *GetQueueStatusRequest) (*GetQueueStatusResponse, error) {
	status := make(map[int]string)
	for pr, state := range s.orch.GetQueueStatus() {
		status[pr] = string(state)
	}
	return &GetQueueStatusResponse{Status: status}, nil
}

// GetPR implements OrchestratorStatusServer.
func (s *Server) GetPR(ctx context.Context, req *GetPRRequest) (*GetPRResponse, error) {
	node, ok := s.orch.GetPR(req.PRNumber)
	if !ok {
		return &GetPRResponse{Found: false}, nil
	}

	return &GetPRResponse{
		Found:         true,
		PRNumber:      node.PRNumber,
		Branch:        node.Branch,
		Base:          node.Base,
		ChangedFiles:  node.ChangedFiles,
		DependsOn:     node.DependsOn,
		ConflictsWith: node.ConflictsWith,
		Status:        string(node.Status()),
	}, nil
}

// IsBlocked implements OrchestratorStatusServer.
func (s *Server) IsBlocked(ctx context.Context, req *IsBlockedRequest) (*IsBlockedResponse, error) {
	return &IsBlockedResponse{Blocked: s.orch.IsPRBlocked(req.PRNumber)}, nil
}
