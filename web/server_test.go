package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"
)

type fakeSource struct {
	chain map[string]any
	stats map[string]any
}

func (f *fakeSource) GetChain() (map[string]any, error) { return f.chain, nil }
func (f *fakeSource) GetStats() (map[string]any, error) { return f.stats, nil }

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func startTestDashboard(t *testing.T, src MonitorSource) (*Server, int) {
	t.Helper()
	port := freePort(t)
	srv := NewServer(src, port, 20*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))

	go func() { _ = srv.Start() }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port)); err == nil {
			conn.Close()
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	return srv, port
}

func TestDashboardServesIndexPage(t *testing.T) {
	t.Parallel()

	_, port := startTestDashboard(t, &fakeSource{chain: map[string]any{}, stats: map[string]any{}})

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/", port))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestDashboardAPIChainAndStats(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		chain: map[string]any{"version": float64(1)},
		stats: map[string]any{"periodsProcessed": float64(10)},
	}
	_, port := startTestDashboard(t, src)

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/api/chain", port))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	var chain map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&chain); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if chain["version"] != float64(1) {
		t.Fatalf("expected version 1, got %+v", chain)
	}

	resp2, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/api/stats", port))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp2.Body.Close()
	var stats map[string]any
	if err := json.NewDecoder(resp2.Body).Decode(&stats); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if stats["periodsProcessed"] != float64(10) {
		t.Fatalf("expected periodsProcessed 10, got %+v", stats)
	}
}
