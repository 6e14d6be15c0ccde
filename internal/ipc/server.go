package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"log/slog"

	"trove/internal/daemon"
	"trove/internal/logging"
)

// shutdownDelay gives the Shutdown RPC reply time to reach the client before
// the daemon begins tearing down the socket.
const shutdownDelay = 250 * time.Millisecond

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}
	// The socket is the only control surface; keep it owner-only.
	if err := os.Chmod(path, 0o600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("restrict socket permissions: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Trove", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logging.NewComponentLogger(logger, "ipc"),
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Path returns the socket path the server listens on.
func (s *Server) Path() string {
	return s.path
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String(logging.FieldComponent, "ipc"))
}

func (s *service) Ping(_ PingRequest, resp *PingResponse) error {
	resp.Alive = true
	resp.Version = daemon.Version
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.Phase = status.Phase
	resp.PID = status.PID
	resp.Indexing = status.Indexing
	resp.WatcherActive = status.WatcherActive
	resp.FilesIndexed = status.FilesIndexed
	resp.TotalBytes = status.TotalBytes
	if !status.LastIndexedAt.IsZero() {
		resp.LastIndexedAt = status.LastIndexedAt.Format(time.RFC3339)
	}
	if status.Running {
		resp.Uptime = daemon.FormatUptime(status.Uptime)
	}
	resp.Degraded = status.Degraded
	resp.WatchRoot = status.WatchRoot
	resp.IndexDBPath = status.IndexDBPath
	resp.MarkerPath = status.MarkerPath
	return nil
}

func (s *service) StartIndexing(req StartIndexingRequest, resp *StartIndexingResponse) error {
	s.log().Debug("indexing start requested",
		logging.String("root", req.Root),
		logging.Bool("rebuild", req.Rebuild))
	if err := s.daemon.StartIndexing(s.ctx, req.Root, req.Rebuild); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "indexing started"
	return nil
}

func (s *service) StopIndexing(_ StopIndexingRequest, resp *StopIndexingResponse) error {
	s.log().Debug("indexing stop requested")
	if err := s.daemon.StopIndexing(s.ctx); err != nil {
		resp.Stopped = false
		resp.Message = err.Error()
		return nil
	}
	resp.Stopped = true
	resp.Message = "indexing stopped"
	return nil
}

func (s *service) GetIndexStats(_ StatsRequest, resp *StatsResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.FilesIndexed = status.FilesIndexed
	resp.TotalBytes = status.TotalBytes
	if !status.LastIndexedAt.IsZero() {
		resp.LastIndexedAt = status.LastIndexedAt.Format(time.RFC3339)
	}
	return nil
}

// Shutdown acknowledges immediately and tears the daemon down after a short
// delay so the reply reaches the client before the socket disappears.
func (s *service) Shutdown(_ ShutdownRequest, resp *ShutdownResponse) error {
	s.log().Info("shutdown requested via IPC",
		logging.String(logging.FieldEventType, "daemon_shutdown"))
	time.AfterFunc(shutdownDelay, func() {
		_ = s.daemon.Shutdown(context.Background())
	})
	resp.OK = true
	return nil
}
