package control

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"

	"pedalcore/internal/chain"
	"pedalcore/internal/engine"
)

const maxRequestLineBytes = 1 << 20 // 1 MiB, matches the original's readLine bound

// ChainInstaller is the engine-facing seam the control server uses to
// publish a newly-built chain. internal/engine.Engine satisfies it.
type ChainInstaller interface {
	SubmitChain(sc *chain.SignalChain)
}

// StatsProvider exposes the engine's running counters to get_stats
// requests. internal/engine.Engine satisfies it with its Stats method;
// the field is optional, so a server started without one just answers
// get_stats with ok=false.
type StatsProvider interface {
	Stats() engine.Stats
}

// Server implements the list_types / get_chain / set_chain protocol over
// a Unix domain socket, one line-delimited JSON request/response per
// connection.
type Server struct {
	SocketPath string
	ConfigPath string
	BuildCtx   chain.BuildContext
	Engine     ChainInstaller
	Stats      StatsProvider
	Log        *slog.Logger

	mu       sync.Mutex
	lastSpec chain.ChainSpec
}

// NewServer returns a Server seeded with the chain spec the engine booted
// with, so an immediate get_chain reflects reality before any set_chain.
func NewServer(socketPath, configPath string, buildCtx chain.BuildContext, eng ChainInstaller, initial chain.ChainSpec, log *slog.Logger) *Server {
	return &Server{
		SocketPath: socketPath,
		ConfigPath: configPath,
		BuildCtx:   buildCtx,
		Engine:     eng,
		Log:        log,
		lastSpec:   initial.Clone(),
	}
}

// Serve listens on SocketPath and handles one request per accepted
// connection until ctx is cancelled. The socket file is removed both
// before binding (stale socket from a previous crash) and on exit.
func (s *Server) Serve(ctx context.Context) error {
	_ = os.Remove(s.SocketPath)

	ln, err := net.Listen("unix", s.SocketPath)
	if err != nil {
		return err
	}
	defer os.Remove(s.SocketPath)
	defer ln.Close()

	_ = os.Chmod(s.SocketPath, 0o666)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	s.Log.Info("control: listening", "socket", s.SocketPath)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.Log.Warn("control: accept failed", "error", err)
			continue
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 4096), maxRequestLineBytes)
	if !scanner.Scan() {
		return
	}
	line := scanner.Bytes()

	var resp map[string]any
	var req map[string]any
	if err := json.Unmarshal(line, &req); err != nil {
		resp = map[string]any{"ok": false, "error": "parse error: " + err.Error()}
	} else {
		resp = s.handleRequest(req)
	}

	s.sendJSONLine(conn, resp)
}

func (s *Server) sendJSONLine(conn net.Conn, resp map[string]any) {
	body, err := json.Marshal(resp)
	if err != nil {
		s.Log.Error("control: failed to marshal response", "error", err)
		return
	}
	body = append(body, '\n')
	if _, err := conn.Write(body); err != nil {
		s.Log.Warn("control: write response failed", "error", err)
	}
}

func (s *Server) handleRequest(req map[string]any) map[string]any {
	cmdVal, ok := req["cmd"]
	cmd, isStr := cmdVal.(string)
	if !ok || !isStr {
		return map[string]any{"ok": false, "error": "missing string cmd"}
	}

	switch strings.TrimSpace(cmd) {
	case "list_types":
		return map[string]any{"ok": true, "types": chain.TypeManifest()}

	case "get_chain":
		s.mu.Lock()
		spec := s.lastSpec.Clone()
		s.mu.Unlock()
		return map[string]any{"ok": true, "chain": chain.ChainSpecToJSON(spec)}

	case "set_chain":
		return s.handleSetChain(req)

	case "get_stats":
		if s.Stats == nil {
			return map[string]any{"ok": false, "error": "stats not available"}
		}
		st := s.Stats.Stats()
		return map[string]any{"ok": true, "stats": map[string]any{
			"periodsProcessed": st.PeriodsProcessed,
			"shortReads":       st.ShortReads,
			"shortWrites":      st.ShortWrites,
			"overruns":         st.Overruns,
			"swapCount":        st.SwapCount,
			"retireFullCount":  st.RetireFullCount,
		}}

	default:
		return map[string]any{"ok": false, "error": "unknown cmd"}
	}
}

func (s *Server) handleSetChain(req map[string]any) map[string]any {
	chainVal, ok := req["chain"]
	if !ok {
		return map[string]any{"ok": false, "error": "missing chain"}
	}
	chainObj, ok := chainVal.(map[string]any)
	if !ok {
		return map[string]any{"ok": false, "error": "chain must be an object"}
	}

	parsed, err := chain.ParseChainJSON(chainObj)
	if err != nil {
		return map[string]any{"ok": false, "error": err.Error()}
	}
	parsed.SampleRate = s.BuildCtx.SampleRate

	validated, err := chain.ValidateChainSpec(*parsed)
	if err != nil {
		return map[string]any{"ok": false, "error": err.Error()}
	}

	built, err := chain.Build(*validated, s.BuildCtx)
	if err != nil {
		return map[string]any{"ok": false, "error": err.Error()}
	}

	if err := PersistChainToDisk(s.ConfigPath, *validated); err != nil {
		return map[string]any{"ok": false, "error": "persist failed: " + err.Error()}
	}

	s.mu.Lock()
	s.lastSpec = validated.Clone()
	s.mu.Unlock()

	s.Engine.SubmitChain(built)

	resp := map[string]any{"ok": true}
	if len(built.Warnings) > 0 {
		msgs := make([]string, len(built.Warnings))
		for i, w := range built.Warnings {
			msgs[i] = w.NodeID + ": " + w.Message
		}
		resp["warning"] = strings.Join(msgs, "; ")
	}
	return resp
}
