package main

import (
	"context"
	"encoding/json"
	"log/slog"

	lmbridge "github.com/Paranoid-AF/lmbridge"
	"github.com/Paranoid-AF/lmbridge/session"
)

// handleRequest runs req against its session. Requests without a session
// id use fallbackID, and a fresh session when that is empty too.
func handleRequest(ctx context.Context, sessions *session.Registry, req *lmbridge.Request, fallbackID string) lmbridge.Response {
	if req.SessionID == "" {
		req.SessionID = fallbackID
	}
	cmd, err := req.Parse()
	if err != nil {
		slog.Warn("invalid request", "session", req.SessionID, "error", err)
		return invalidRequest(req.SessionID, err.Error())
	}
	sess := sessions.Get(req.SessionID)
	return lmbridge.Response{
		SessionID: sess.ID(),
		Events:    sess.Handle(ctx, cmd),
	}
}

// handleRaw decodes one JSON request and runs it.
func handleRaw(ctx context.Context, sessions *session.Registry, raw []byte, fallbackID string) lmbridge.Response {
	slog.Debug("request", "data", truncate(raw))

	var req lmbridge.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		slog.Warn("invalid request", "error", err)
		return invalidRequest(fallbackID, "invalid JSON: "+err.Error())
	}
	return handleRequest(ctx, sessions, &req, fallbackID)
}

func invalidRequest(sessionID, message string) lmbridge.Response {
	return lmbridge.Response{
		SessionID: sessionID,
		Events:    []lmbridge.Event{lmbridge.ErrorEvent(lmbridge.CodeInvalidRequest, message)},
	}
}

// truncate shortens b for logging.
func truncate(b []byte) string {
	const max = 512
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "..."
}
