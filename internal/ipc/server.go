package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"tecscanner/internal/api"
	"tecscanner/internal/daemon"
	"tecscanner/internal/logging"
	"tecscanner/internal/logs"
	"tecscanner/internal/recorder"
)

// serviceName prefixes every RPC method.
const serviceName = "Recorder"

// Server exposes the recorder via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
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
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}
	// The socket controls recording; keep it private to the service user.
	if err := os.Chmod(path, 0o600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("restrict socket permissions: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName(serviceName, srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
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
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
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
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	s.logger.Debug("start requested")
	started, code := s.daemon.Controller().Start(s.ctx)
	*resp = api.FromStart(started, code)
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Debug("stop requested")
	resp.Stopped = s.daemon.Controller().Stop()
	if !resp.Stopped {
		resp.Error = "not_recording"
	}
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	info := s.daemon.Info()
	resp.Recorder = s.daemon.Controller().Status()
	resp.PID = info.PID
	resp.LockPath = info.LockPath
	resp.JournalPath = info.JournalPath
	resp.APIAddress = info.APIAddress
	resp.WatchingUdev = info.WatchingUdev
	resp.Dependencies = api.FromDependencies(s.daemon.Dependencies())
	return nil
}

func (s *service) List(_ ListRequest, resp *ListResponse) error {
	resp.Recordings = api.FromEntries(s.daemon.Controller().List()).Recordings
	return nil
}

func (s *service) GetLog(req GetLogRequest, resp *GetLogResponse) error {
	result, err := s.daemon.Controller().TailLog(req.Name, logs.TailOptions{Offset: req.Offset, Limit: req.Lines})
	if errors.Is(err, recorder.ErrLogNotFound) {
		resp.Found = false
		resp.Lines = []string{}
		return nil
	}
	if err != nil {
		return err
	}
	resp.Found = true
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	return nil
}

func (s *service) History(req HistoryRequest, resp *HistoryResponse) error {
	records, err := s.daemon.History(s.ctx, req.Limit)
	if err != nil {
		return err
	}
	*resp = api.FromHistory(records)
	return nil
}
