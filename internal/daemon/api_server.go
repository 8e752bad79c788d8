package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"tecscanner/internal/api"
	"tecscanner/internal/config"
	"tecscanner/internal/logging"
	"tecscanner/internal/recorder"
)

// defaultLogLines bounds GET /logs/{name} when lines is not given.
const defaultLogLines = 200

type apiServer struct {
	bind   string
	token  string
	logger *slog.Logger
	daemon *Daemon

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}
	srv := &apiServer{
		bind:   bind,
		token:  strings.TrimSpace(cfg.Paths.APIToken),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Stop blocks until the session log entry is written.
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /start", authMiddleware(s.token, s.handleStart))
	mux.HandleFunc("POST /stop", authMiddleware(s.token, s.handleStop))
	mux.HandleFunc("GET /status", authMiddleware(s.token, s.handleStatus))
	mux.HandleFunc("GET /recordings", authMiddleware(s.token, s.handleRecordings))
	mux.HandleFunc("GET /history", authMiddleware(s.token, s.handleHistory))
	mux.HandleFunc("GET /logs/{name}", authMiddleware(s.token, s.handleLog))
	mux.HandleFunc("GET /metrics", authMiddleware(s.token, s.handleMetrics))
	return mux
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening",
		logging.String(logging.FieldEventType, "api_listening"),
		logging.String("address", listener.Addr().String()),
		logging.Bool("auth", s.token != ""),
	)
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) address() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStart(w http.ResponseWriter, r *http.Request) {
	started, code := s.daemon.controller.Start(r.Context())
	s.writeJSON(w, api.StartHTTPStatus(code), api.FromStart(started, code))
}

func (s *apiServer) handleStop(w http.ResponseWriter, _ *http.Request) {
	if !s.daemon.controller.Stop() {
		s.writeJSON(w, http.StatusBadRequest, api.StopResponse{Stopped: false, Error: "not_recording"})
		return
	}
	s.writeJSON(w, http.StatusOK, api.StopResponse{Stopped: true})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.controller.Status())
}

func (s *apiServer) handleRecordings(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.FromEntries(s.daemon.controller.List()))
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := s.daemon.History(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromHistory(records))
}

func (s *apiServer) handleLog(w http.ResponseWriter, r *http.Request) {
	lines := defaultLogLines
	if raw := strings.TrimSpace(r.URL.Query().Get("lines")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid lines parameter")
			return
		}
		lines = parsed
	}

	text, err := s.daemon.controller.GetLog(r.PathValue("name"), lines)
	if errors.Is(err, recorder.ErrLogNotFound) {
		s.writeError(w, http.StatusNotFound, "log not found")
		return
	}
	if err != nil {
		s.logger.Warn("log read failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "log read failed")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}

func (s *apiServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.daemon.metrics == nil {
		s.writeError(w, http.StatusNotFound, "metrics disabled")
		return
	}
	s.daemon.metrics.Handler().ServeHTTP(w, r)
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}
