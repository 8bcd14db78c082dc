package web

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

//go:embed static/*
var staticFiles embed.FS

// MonitorSource is the read-only seam the dashboard polls. A client
// dialing internal/control's Unix socket and issuing get_chain/get_stats
// satisfies it; the web package itself never talks to the engine
// directly.
type MonitorSource interface {
	GetChain() (map[string]any, error)
	GetStats() (map[string]any, error)
}

// Message is the envelope every WebSocket push uses.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Server serves the dashboard's static page, REST snapshots, and the
// WebSocket feed that keeps the page's chain/stats views live.
type Server struct {
	source MonitorSource
	port   int
	hub    *Hub

	pollInterval time.Duration
	log          *slog.Logger
	httpServer   *http.Server
}

// NewServer returns a dashboard server that polls source every
// pollInterval and serves on port.
func NewServer(source MonitorSource, port int, pollInterval time.Duration, log *slog.Logger) *Server {
	return &Server{source: source, port: port, hub: NewHub(), pollInterval: pollInterval, log: log}
}

// Start launches the hub, polling loops, and HTTP listener. It blocks
// until the listener stops (normally via ctx cancellation through
// Shutdown).
func (s *Server) Start() error {
	go s.hub.Run()
	go s.pollLoop()

	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return fmt.Errorf("web: static fs: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/api/chain", s.handleAPIChain)
	mux.HandleFunc("/api/stats", s.handleAPIStats)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Info("dashboard listening", "port", s.port, "url", fmt.Sprintf("http://localhost:%d", s.port))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	data, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(data)
}

//nolint:gochecknoglobals // WebSocket upgrader configuration
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(_ *http.Request) bool { return true },
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("dashboard: websocket upgrade failed", "error", err)
		return
	}

	client := &Client{hub: s.hub, conn: conn, send: make(chan []byte, 32)}
	s.hub.register <- client

	s.sendSnapshot(client)

	go client.writePump()
	client.readPump()
}

func (s *Server) sendSnapshot(client *Client) {
	if chainJSON, err := s.source.GetChain(); err == nil {
		s.sendTo(client, "chain", chainJSON)
	}
	if statsJSON, err := s.source.GetStats(); err == nil {
		s.sendTo(client, "stats", statsJSON)
	}
}

func (s *Server) sendTo(client *Client, msgType string, payload any) {
	data, err := json.Marshal(Message{Type: msgType, Payload: payload})
	if err != nil {
		return
	}
	select {
	case client.send <- data:
	default:
	}
}

// pollLoop periodically re-reads chain/stats from the source and
// broadcasts whichever changed, so idle dashboards generate no churn.
func (s *Server) pollLoop() {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	var lastChain, lastStats []byte

	for range ticker.C {
		if s.hub.ClientCount() == 0 {
			continue
		}

		if chainJSON, err := s.source.GetChain(); err == nil {
			if b, err := json.Marshal(chainJSON); err == nil && !bytes.Equal(b, lastChain) {
				lastChain = b
				s.broadcast("chain", chainJSON)
			}
		}
		if statsJSON, err := s.source.GetStats(); err == nil {
			if b, err := json.Marshal(statsJSON); err == nil && !bytes.Equal(b, lastStats) {
				lastStats = b
				s.broadcast("stats", statsJSON)
			}
		}
	}
}

func (s *Server) broadcast(msgType string, payload any) {
	data, err := json.Marshal(Message{Type: msgType, Payload: payload})
	if err != nil {
		return
	}
	s.hub.Broadcast(data)
}

func (s *Server) handleAPIChain(w http.ResponseWriter, _ *http.Request) {
	chainJSON, err := s.source.GetChain()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(chainJSON)
}

func (s *Server) handleAPIStats(w http.ResponseWriter, _ *http.Request) {
	statsJSON, err := s.source.GetStats()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(statsJSON)
}
