// Command lmbridged is the lmbridge daemon.
// It accepts chat commands from display surfaces over a Unix domain socket
// (and optionally HTTP and websocket), forwards messages to an LM Studio
// compatible completion endpoint, and returns the rendered replies.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	lmbridge "github.com/Paranoid-AF/lmbridge"
	"github.com/Paranoid-AF/lmbridge/complete"
	"github.com/Paranoid-AF/lmbridge/session"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	verbose := flag.Bool("verbose", false, "log every request and response to stderr")
	httpAddr := flag.String("http", "", "also serve HTTP and websocket on this address (e.g. 127.0.0.1:8787)")
	flag.Parse()

	if *showVersion {
		fmt.Println("lmbridged", Version)
		os.Exit(0)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	store, err := lmbridge.NewStore(lmbridge.ConfigPath())
	if err != nil {
		slog.Error("failed to load config", "path", lmbridge.ConfigPath(), "error", err)
		os.Exit(1)
	}
	cfg := store.Config()
	for _, w := range lmbridge.ValidateConfig(&cfg) {
		slog.Warn("config", "warning", w)
	}

	client := complete.NewClient(store.Timeout())
	sessions := session.NewRegistry(session.DefaultIdleTTL, func(id string) *session.Session {
		return session.New(id, store, client, nil)
	})
	defer sessions.Close()

	socketPath := resolveSocketPath()
	slog.Info("starting", "socket", socketPath, "endpoint", store.BaseURL())

	srv, err := NewServer(socketPath, sessions)
	if err != nil {
		slog.Error("failed to start server", "error", err)
		os.Exit(1)
	}
	defer srv.Close()

	watcher, err := NewConfigWatcher(store, 0)
	if err != nil {
		slog.Warn("config watcher disabled", "error", err)
	}

	var httpSrv *http.Server
	if addr := resolveHTTPAddr(*httpAddr); addr != "" {
		httpSrv = &http.Server{
			Addr:              addr,
			Handler:           NewRouter(sessions),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		go func() {
			slog.Info("serving http", "addr", addr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("http server error", "error", err)
			}
		}()
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		slog.Info("shutting down")
		if httpSrv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			httpSrv.Shutdown(ctx)
			cancel()
		}
		if watcher != nil {
			watcher.Close()
		}
		srv.Close()
		sessions.Close()
		os.Exit(0)
	}()

	slog.Info("ready")
	if err := srv.Serve(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func resolveSocketPath() string {
	if path := os.Getenv("LMBRIDGE_SOCKET"); path != "" {
		return path
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir + "/lmbridge.sock"
	}
	return fmt.Sprintf("/tmp/lmbridge-%d.sock", os.Getuid())
}

func resolveHTTPAddr(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv("LMBRIDGE_HTTP_ADDR")
}
