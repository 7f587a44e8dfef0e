// Package api is the HTTP management surface: queue inspection, config
// changes and shutdown, on the NodeManager bind address.
package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sebas/smqueue/internal/smqueue/config"
	"github.com/sebas/smqueue/internal/smqueue/queue"
)

// EngineProvider is the view of the queue engine the API needs.
// Implemented by engine.Engine.
type EngineProvider interface {
	Queue() *queue.Queue
	QueueDump() []string
	SaveQueue(path string) error
}

// Shutdowner receives the shutdown request. Implemented by app.App.
type Shutdowner interface {
	RequestShutdown()
}

// Server provides the HTTP API for smqueue (headless, API only)
type Server struct {
	addr       string
	httpServer *http.Server
	cfg        *config.Config
	eng        EngineProvider
	shutdown   Shutdowner
	startTime  time.Time
}

// NewServer creates a new API server.
func NewServer(addr string, cfg *config.Config, eng EngineProvider, shutdown Shutdowner) *Server {
	s := &Server{
		addr:      addr,
		cfg:       cfg,
		eng:       eng,
		shutdown:  shutdown,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()

	// Health and stats
	mux.HandleFunc("/api/v1/health", s.handleHealth)
	mux.HandleFunc("/api/v1/stats", s.handleStats)

	// Queue
	mux.HandleFunc("/api/v1/queue", s.handleQueue)
	mux.HandleFunc("/api/v1/queue/save", s.handleQueueSave)

	// Config
	mux.HandleFunc("/api/v1/config/", s.handleConfigByKey)

	// Admin
	mux.HandleFunc("/api/v1/shutdown", s.handleShutdown)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	return s
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	slog.Info("[API] Starting HTTP API server", "addr", s.addr)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("[API] Server error", "error", err)
		}
	}()
	return nil
}

// Stop shuts down the server
func (s *Server) Stop() error {
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

// --- Health & Stats ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(s.startTime).Seconds()
	response := map[string]interface{}{
		"status": "ok",
		"uptime": int64(uptime),
	}
	s.writeJSON(w, response)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	q := s.eng.Queue()
	response := map[string]interface{}{
		"queue_depth":    q.Len(),
		"queue_by_state": q.CountByState(),
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
	}
	s.writeJSON(w, response)
}

// --- Queue ---

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, s.eng.QueueDump())
}

func (s *Server) handleQueueSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	path := r.URL.Query().Get("file")
	if path == "" {
		path = s.cfg.GetStr("savefile")
	}
	if err := s.eng.SaveQueue(path); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, map[string]interface{}{"saved": path})
}

// --- Config ---

func (s *Server) handleConfigByKey(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/config/")
	if path == "" {
		http.Error(w, "Key required", http.StatusBadRequest)
		return
	}
	key, err := url.PathUnescape(path)
	if err != nil {
		http.Error(w, "Invalid key encoding", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		desc, known := s.cfg.Describe(key)
		if !known {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		s.writeJSON(w, map[string]interface{}{
			"key":         key,
			"value":       s.cfg.GetStr(key),
			"default":     desc.Default,
			"description": desc.Description,
		})
	case http.MethodPut:
		body, err := io.ReadAll(io.LimitReader(r.Body, 4096))
		if err != nil {
			http.Error(w, "Bad body", http.StatusBadRequest)
			return
		}
		s.cfg.Set(key, strings.TrimSpace(string(body)))
		slog.Info("[API] Config updated", "key", key)
		s.writeJSON(w, map[string]interface{}{
			"key":   key,
			"value": s.cfg.GetStr(key),
		})
	case http.MethodDelete:
		s.cfg.Unset(key)
		s.writeJSON(w, map[string]interface{}{"key": key, "unset": true})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// --- Admin ---

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	response := map[string]interface{}{
		"message": "Shutdown initiated",
	}
	s.writeJSON(w, response)
	if s.shutdown != nil {
		s.shutdown.RequestShutdown()
	}
}

// --- Helpers ---

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("[API] Failed to encode JSON", "error", err)
	}
}
