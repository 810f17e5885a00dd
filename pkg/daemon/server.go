package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	linkv1 "github.com/jamesainslie/flightlog/pkg/api/link/v1"
	"github.com/jamesainslie/flightlog/pkg/flightlog/logging"
)

// Config holds daemon configuration.
type Config struct {
	SocketPath string
	DataDir    string
}

// Server serves the Link service on a Unix socket.
type Server struct {
	cfg      Config
	grpc     *grpc.Server
	listener net.Listener
}

// NewServer binds cfg.SocketPath, replacing any leftover socket file, and
// registers svc. The socket is only accessible to the current user.
func NewServer(cfg Config, svc *Service) (*Server, error) {
	for _, dir := range []string{cfg.DataDir, filepath.Dir(cfg.SocketPath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	if err := os.RemoveAll(cfg.SocketPath); err != nil {
		return nil, fmt.Errorf("remove old socket: %w", err)
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(context.Background(), "unix", cfg.SocketPath)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(cfg.SocketPath, 0o600); err != nil {
		_ = listener.Close()
		return nil, err
	}

	g := grpc.NewServer(grpc.ChainUnaryInterceptor(recoverPanics, logCalls))
	linkv1.RegisterLinkServer(g, svc)
	return &Server{cfg: cfg, grpc: g, listener: listener}, nil
}

// logCalls logs every RPC at debug level and failures at warn.
func logCalls(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	log := logging.Get("daemon")
	if err != nil {
		log.Warn("rpc failed", "method", info.FullMethod, "code", status.Code(err), "error", err)
		return resp, err
	}
	log.Debug("rpc", "method", info.FullMethod, "elapsed", time.Since(start))
	return resp, nil
}

// recoverPanics turns a panic in a handler into codes.Internal so one bad
// request does not take the simulated device down.
func recoverPanics(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.Get("daemon").Error("rpc panic", "method", info.FullMethod, "panic", r)
			err = status.Errorf(codes.Internal, "%s: %v", info.FullMethod, r)
		}
	}()
	return handler(ctx, req)
}

// Addr returns the socket the server listens on.
func (s *Server) Addr() string { return s.cfg.SocketPath }

// Serve blocks until Close is called.
func (s *Server) Serve() error {
	if err := s.grpc.Serve(s.listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Close drains in-flight requests and removes the socket.
func (s *Server) Close() error {
	s.grpc.GracefulStop()
	if err := os.Remove(s.cfg.SocketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
