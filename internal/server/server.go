package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single SSE write operation.
	// This prevents goroutine leaks when clients are slow or disconnected.
	// Must be <= shutdown timeout to ensure clean shutdown.
	sseWriteTimeout = 5 * time.Second

	// ssePingInterval is how often an idle SSE stream gets a keep-alive comment.
	ssePingInterval = 30 * time.Second

	// defaultTitle is used when no custom title is configured.
	defaultTitle = "Liveboard"

	defaultHistoryHours = 24
	maxHistoryHours     = 24 * 30
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

// Server handles HTTP requests for the liveboard API.
//
// The server is designed for graceful shutdown via context cancellation.
type Server struct {
	board        Board
	port         int
	httpServer   *http.Server
	title        string
	logger       *slog.Logger
	pingInterval time.Duration
}

// NewServer creates a new HTTP [Server].
//
// Parameters:
//   - b: the board whose panels are served
//   - port: TCP port to listen on
//   - title: board title (defaults to "Liveboard" if empty)
//   - logger: logger for server events
//
// The server is not started until [Server.Start] is called.
func NewServer(b Board, port int, title string, logger *slog.Logger) *Server {
	if title == "" {
		title = defaultTitle
	}
	return &Server{
		board:        b,
		port:         port,
		title:        title,
		logger:       logger,
		pingInterval: ssePingInterval,
	}
}

// Handler returns the router with every route registered.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.requestLogging)

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/panels", s.handlePanels).Methods(http.MethodGet)
	api.HandleFunc("/panels/{name}", s.handlePanel).Methods(http.MethodGet)
	api.HandleFunc("/panels/{name}/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/sse", s.handleSSE).Methods(http.MethodGet)

	return r
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server will continue running until the context is
// cancelled, at which point it initiates a graceful shutdown with a 5-second
// timeout.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// request contexts derive from ctx, so cancelling it also ends
		// long-running handlers like SSE
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	// shutdown on context cancellation
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

// handleIndex describes the board.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	infos := s.board.Panels()
	names := make([]string, len(infos))
	for i, p := range infos {
		names[i] = p.Name
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"title":  s.title,
		"panels": names,
	})
}

// handlePanels lists every configured panel.
func (s *Server) handlePanels(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.board.Panels())
}

// handlePanel serves one panel's payload as-is.
func (s *Server) handlePanel(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	view, err := s.board.Panel(r.Context(), name)
	if err != nil {
		s.writeBoardError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Panel-Outcome", view.Outcome)
	if !view.UpdatedAt.IsZero() {
		w.Header().Set("X-Panel-Updated-At", view.UpdatedAt.UTC().Format(time.RFC3339))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(view.Payload); err != nil {
		s.logger.Error("failed to write panel response", "panel", name, "error", err)
	}
}

// handleHistory serves saved payloads for one panel, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	hours, err := queryInt(r, "hours", defaultHistoryHours, 1, maxHistoryHours)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := queryInt(r, "limit", defaultHistoryLimit, 1, maxHistoryLimit)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := s.board.History(r.Context(), name, time.Duration(hours)*time.Hour, limit)
	if err != nil {
		s.writeBoardError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"panel":   name,
		"hours":   hours,
		"records": entries,
	})
}

// handleSSE streams panel-updated events via Server-Sent Events.
//
// Each event carries only the panel name; clients fetch the payload from
// /api/panels/{name}. The handler uses write deadlines so a slow or vanished
// client cannot block it past shutdown.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)

	// track if write deadlines are supported (may not be for some ResponseWriter impls)
	deadlinesSupported := true

	writeAndFlush := func(frame string) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				s.logger.Debug("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}
		if _, err := fmt.Fprint(w, frame); err != nil {
			return err
		}
		return rc.Flush()
	}
	update := func(panel string) error {
		return writeAndFlush(fmt.Sprintf("event: update\ndata: %s\n\n", panel))
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	events, unsubscribe := s.board.Subscribe()
	defer unsubscribe()

	// tell the client about every panel once so it can load them all
	for _, p := range s.board.Panels() {
		if err := update(p.Name); err != nil {
			return
		}
	}

	ping := time.NewTicker(s.pingInterval)
	defer ping.Stop()

	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := update(e.Panel); err != nil {
				return
			}

		case <-ping.C:
			if err := writeAndFlush(": ping\n\n"); err != nil {
				return
			}

		case <-r.Context().Done():
			// fires on client disconnect and, through BaseContext, on shutdown
			return
		}
	}
}

func (s *Server) writeBoardError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrUnavailable):
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("board request failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// queryInt reads an optional integer query parameter within [lo, hi].
func queryInt(r *http.Request, key string, def, lo, hi int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("%s must be an integer between %d and %d", key, lo, hi)
	}
	return n, nil
}

// requestLogging tags each request with an id and logs it on completion.
func (s *Server) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)

		s.logger.Debug("http request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// statusWriter records the response status. It exposes the wrapped writer
// so flushing and write deadlines keep working for SSE.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
