// Package session holds per-surface chat state and dispatches protocol
// commands against it.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	lmbridge "github.com/Paranoid-AF/lmbridge"
	"github.com/Paranoid-AF/lmbridge/attach"
	"github.com/Paranoid-AF/lmbridge/render"
)

// Completer sends one message to a completion endpoint and returns the reply.
// *complete.Client satisfies it.
type Completer interface {
	Complete(ctx context.Context, endpoint, message string) (string, error)
}

// Session is the state behind one display surface: at most one pending
// attachment, plus shared access to the endpoint configuration.
type Session struct {
	id        string
	store     *lmbridge.Store
	completer Completer
	picker    attach.Picker

	mu      sync.Mutex
	pending *lmbridge.AttachedFile
}

// New creates a session. A nil store falls back to an in-memory default
// configuration. picker may be nil; attachFile then requires a path.
func New(id string, store *lmbridge.Store, completer Completer, picker attach.Picker) *Session {
	if store == nil {
		store = lmbridge.NewMemoryStore(nil)
	}
	return &Session{
		id:        id,
		store:     store,
		completer: completer,
		picker:    picker,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Pending returns a copy of the attachment waiting for the next submission.
func (s *Session) Pending() *lmbridge.AttachedFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return nil
	}
	f := *s.pending
	return &f
}

// Detach drops the pending attachment, if any.
func (s *Session) Detach() {
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
}

// Handle runs cmd and returns the events for the surface. The slice is
// never nil. Calls on one session are serialised.
func (s *Session) Handle(ctx context.Context, cmd lmbridge.Command) []lmbridge.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch c := cmd.(type) {
	case lmbridge.Submit:
		return s.submit(ctx, c)
	case lmbridge.AttachFile:
		return s.attachFile(ctx, c)
	case lmbridge.UpdateEndpoint:
		return s.updateEndpoint(c)
	default:
		slog.Warn("unsupported command", "session", s.id, "type", fmt.Sprintf("%T", cmd))
		return []lmbridge.Event{lmbridge.ErrorEvent(lmbridge.CodeInvalidRequest, fmt.Sprintf("unsupported command %T", cmd))}
	}
}

func (s *Session) submit(ctx context.Context, c lmbridge.Submit) []lmbridge.Event {
	file := c.File
	if file == nil {
		file = s.pending
	}
	// The attachment belongs to this submission whatever its outcome.
	s.pending = nil

	message := attach.Compose(c.Text, file, s.store.AttachmentLabel())
	endpoint := s.store.BaseURL()

	slog.Debug("submit", "session", s.id, "endpoint", endpoint, "attachment", file != nil)

	if s.completer == nil {
		return []lmbridge.Event{lmbridge.ErrorEvent(lmbridge.CodeCompletionFailed, "no completion client configured")}
	}

	reply, err := s.completer.Complete(ctx, endpoint, message)
	if err != nil {
		slog.Warn("completion failed", "session", s.id, "endpoint", endpoint, "error", err)
		return []lmbridge.Event{lmbridge.ErrorEvent(lmbridge.CodeCompletionFailed, err.Error())}
	}

	return []lmbridge.Event{{
		Command: lmbridge.EventReply,
		Text:    reply,
		HTML:    render.Markdown(reply),
	}}
}

func (s *Session) attachFile(ctx context.Context, c lmbridge.AttachFile) []lmbridge.Event {
	picker := s.picker
	if c.Path != "" {
		picker = attach.PathPicker(c.Path)
	}
	if picker == nil {
		return []lmbridge.Event{lmbridge.ErrorEvent(lmbridge.CodeInvalidRequest, "attachFile requires a path")}
	}

	file, err := attach.Pick(ctx, picker)
	if err != nil {
		s.pending = nil
		slog.Warn("attach failed", "session", s.id, "error", err)
		return []lmbridge.Event{lmbridge.ErrorEvent(lmbridge.CodeFileReadFailed, err.Error())}
	}
	if file == nil {
		slog.Debug("attach cancelled", "session", s.id)
		return []lmbridge.Event{}
	}

	s.pending = file
	slog.Debug("file attached", "session", s.id, "name", file.Name, "bytes", len(file.Content))
	return []lmbridge.Event{{Command: lmbridge.EventFileAttached, File: file}}
}

func (s *Session) updateEndpoint(c lmbridge.UpdateEndpoint) []lmbridge.Event {
	url, err := s.store.SetBaseURL(c.URL)
	switch {
	case err == nil:
		slog.Info("endpoint updated", "session", s.id, "url", url)
		return []lmbridge.Event{{Command: lmbridge.EventEndpointUpdated, URL: url}}
	case lmbridge.IsConfigurationInvalid(err):
		slog.Warn("endpoint rejected", "session", s.id, "url", c.URL, "error", err)
		return []lmbridge.Event{lmbridge.ErrorEvent(lmbridge.CodeInvalidEndpoint, err.Error())}
	default:
		// Applied in memory but not persisted.
		slog.Error("failed to save endpoint", "session", s.id, "url", url, "error", err)
		return []lmbridge.Event{
			{Command: lmbridge.EventEndpointUpdated, URL: url},
			lmbridge.ErrorEvent(lmbridge.CodeConfigError, err.Error()),
		}
	}
}
