// Package server exposes an Engine over HTTP.
//
// Statements arrive as raw SQL request bodies and are queued on the
// Engine's dispatcher, so concurrent requests are answered in arrival
// order by the same single worker that serves the CLI.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jward/symsql"
)

// TokenHeader is the alternative to an Authorization bearer token.
const TokenHeader = "X-Symsql-Token"

// maxBody bounds the size of one SQL statement.
const maxBody = 1 << 20

// Engine is the part of *symsql.Engine the server uses.
type Engine interface {
	Submit(query string) (*symsql.Job, error)
	Status(ctx context.Context) (symsql.Status, error)
	Tables() []symsql.TableInfo
}

// Config controls authentication and logging. An empty Token disables
// authentication.
type Config struct {
	Token  string
	Logger *slog.Logger
}

// Server routes HTTP requests to an Engine.
type Server struct {
	engine Engine
	token  string
	logger *slog.Logger
	mux    *http.ServeMux

	once     sync.Once
	shutdown chan struct{}
}

// New returns a Server for e.
func New(e Engine, cfg Config) *Server {
	s := &Server{
		engine:   e,
		token:    cfg.Token,
		logger:   cfg.Logger,
		mux:      http.NewServeMux(),
		shutdown: make(chan struct{}),
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s.mux.HandleFunc("GET /{$}", s.handleWelcome)
	s.mux.HandleFunc("GET /help", s.handleHelp)
	s.mux.Handle("POST /query", s.authorized(s.handleQuery))
	s.mux.Handle("GET /status", s.authorized(s.handleStatus))
	s.mux.Handle("GET /health", s.authorized(s.handleStatus))
	s.mux.Handle("POST /shutdown", s.authorized(s.handleShutdown))
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.mux }

// ShutdownRequested is closed once a client has called POST /shutdown.
func (s *Server) ShutdownRequested() <-chan struct{} { return s.shutdown }

// Serve answers requests on ln until ctx ends or a client requests
// shutdown, then drains in-flight requests.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	hs := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("server: listening", "addr", ln.Addr().String())
		if err := hs.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-s.shutdown:
			s.logger.Info("server: shutdown requested")
		}
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hs.Shutdown(sctx); err != nil {
			return fmt.Errorf("server: shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// authorized rejects requests that do not carry the configured token.
func (s *Server) authorized(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" && !s.tokenMatches(requestToken(r)) {
			s.logger.Warn("server: unauthorized request", "path", r.URL.Path, "remote", r.RemoteAddr)
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
			return
		}
		next(w, r)
	})
}

func (s *Server) tokenMatches(got string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) == 1
}

func requestToken(r *http.Request) string {
	if t := r.Header.Get(TokenHeader); t != "" {
		return t
	}
	if auth, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return auth
	}
	return ""
}

// --- Responses ---

type queryResponse struct {
	Success  bool     `json:"success"`
	JobID    string   `json:"job_id"`
	Columns  []string `json:"columns"`
	Rows     [][]any  `json:"rows"`
	RowCount int      `json:"row_count"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"job_id,omitempty"`
	Error   string `json:"error"`
}

type statusResponse struct {
	Success   bool   `json:"success"`
	Status    string `json:"status"`
	Tool      string `json:"tool"`
	Path      string `json:"path"`
	Functions int    `json:"functions"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// --- Handlers ---

func (s *Server) handleWelcome(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "symsql HTTP server\n\n%s\nExample: curl -X POST http://%s/query -d \"SELECT name FROM functions LIMIT 5\"\n",
		endpoints, r.Host)
}

func (s *Server) handleHelp(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, helpText(s.engine.Tables()))
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("reading body: %v", err)})
		return
	}
	sql := strings.TrimSpace(string(body))
	if sql == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "empty query"})
		return
	}

	job, err := s.engine.Submit(sql)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}
	res, err := job.Wait(r.Context())
	if err != nil {
		s.logger.Debug("server: query failed", "job", job.ID, "err", err)
		code := http.StatusOK
		if errors.Is(err, symsql.ErrStopped) {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, errorResponse{JobID: job.ID.String(), Error: err.Error()})
		return
	}
	s.logger.Debug("server: query", "job", job.ID, "rows", len(res.Rows))
	writeJSON(w, http.StatusOK, queryResponse{
		Success:  true,
		JobID:    job.ID.String(),
		Columns:  res.Columns,
		Rows:     res.Rows,
		RowCount: len(res.Rows),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.engine.Status(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Success:   true,
		Status:    "ok",
		Tool:      "symsql",
		Path:      st.Path,
		Functions: st.Functions,
	})
}

func (s *Server) handleShutdown(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "shutting down"})
	s.once.Do(func() { close(s.shutdown) })
}
