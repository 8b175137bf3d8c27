package main

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"os"

	"github.com/Paranoid-AF/lmbridge/session"
)

// maxLineBytes bounds one request line; attachments travel inline.
const maxLineBytes = 16 << 20

// Server listens on a Unix domain socket for protocol requests, one JSON
// object per line, and answers each with one Response line.
type Server struct {
	listener net.Listener
	sockPath string
	sessions *session.Registry

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a server bound to sockPath, replacing a stale socket.
func NewServer(sockPath string, sessions *session.Registry) (*Server, error) {
	if err := os.Remove(sockPath); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	listener, err := net.Listen("unix", sockPath)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		listener: listener,
		sockPath: sockPath,
		sessions: sessions,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Serve accepts connections and handles requests.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(conn)
	}
}

// Close stops accepting, aborts in-flight completions and removes the
// socket file.
func (s *Server) Close() {
	s.cancel()
	s.listener.Close()
	os.Remove(s.sockPath)
}

// handleConn serves requests until the peer hangs up. Requests without a
// session_id share the session of the connection's first request.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	connSession := ""
	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		resp := handleRaw(s.ctx, s.sessions, raw, connSession)
		if connSession == "" {
			connSession = resp.SessionID
		}

		data, err := json.Marshal(resp)
		if err != nil {
			slog.Error("failed to marshal response", "error", err)
			return
		}

		slog.Debug("response", "data", truncate(data))

		if _, err := conn.Write(append(data, '\n')); err != nil {
			slog.Debug("write failed", "error", err)
			return
		}
	}
	if err := scanner.Err(); err != nil {
		slog.Warn("connection read failed", "error", err)
	}
}
