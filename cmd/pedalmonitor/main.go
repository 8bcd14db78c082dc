// Command pedalmonitor serves a read-only browser dashboard that polls
// a running pedalengine's control socket for chain topology and the
// engine's running counters.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pedalcore/internal/control"
	"pedalcore/web"
)

func main() {
	socketPath := flag.String("socket", "/tmp/pedalengine.sock", "path to the pedalengine control socket")
	port := flag.Int("port", 8080, "dashboard HTTP port")
	poll := flag.Duration("poll", 500*time.Millisecond, "control socket poll interval")
	openBrowser := flag.Bool("open", false, "open the dashboard in the default browser on startup")
	logFile := flag.String("log", "pedalmonitor.log", "log file path")
	flag.Parse()

	file, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o666)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	logger := slog.New(slog.NewTextHandler(file, nil))
	slog.SetDefault(logger)
	logger.Info("starting pedalmonitor", "args", os.Args, "socket", *socketPath)

	client := control.NewClient(*socketPath)
	srv := web.NewServer(client, *port, *poll, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	if *openBrowser {
		go func() {
			time.Sleep(200 * time.Millisecond)
			url := fmt.Sprintf("http://localhost:%d", *port)
			if err := web.OpenBrowser(url); err != nil {
				logger.Error("failed to open browser", "error", err)
			}
		}()
	}

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("dashboard server error", "error", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("dashboard shutdown error", "error", err)
		}
	}

	logger.Info("pedalmonitor exited")
}
