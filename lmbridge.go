// Package lmbridge defines the message protocol between a display surface
// and the bridge core. Messages are JSON-encoded; the socket transport
// sends one per line, the websocket transport one per frame.
package lmbridge

import "fmt"

// Inbound command names.
const (
	CommandSubmit         = "submitMessage"
	CommandAttachFile     = "attachFile"
	CommandUpdateEndpoint = "updateEndpoint"
)

// Outbound event names.
const (
	EventReply           = "replyReceived"
	EventFileAttached    = "fileAttached"
	EventEndpointUpdated = "endpointUpdated"
	EventError           = "errorOccurred"
)

// Error codes carried by errorOccurred events.
const (
	CodeCompletionFailed = "completion_failed"
	CodeFileReadFailed   = "file_read_failed"
	CodeInvalidEndpoint  = "invalid_endpoint"
	CodeConfigError      = "config_error"
	CodeInvalidRequest   = "invalid_request"
)

// AttachedFile is a single file's text held for the next outbound message.
type AttachedFile struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Request is sent from the display surface to the core.
type Request struct {
	// Command selects the operation: submitMessage, attachFile or updateEndpoint.
	Command string `json:"command"`
	// SessionID identifies the surface. Transports assign one when empty.
	SessionID string `json:"session_id,omitempty"`
	// Text is the user's message (submitMessage).
	Text string `json:"text,omitempty"`
	// File is an attachment sent along with the message (submitMessage).
	File *AttachedFile `json:"file,omitempty"`
	// Path is a file the surface already picked (attachFile). Empty means
	// the core asks its own picker, if any.
	Path string `json:"path,omitempty"`
	// URL is the new endpoint base URL (updateEndpoint).
	URL string `json:"url,omitempty"`
}

// Command is one of Submit, AttachFile or UpdateEndpoint.
type Command interface {
	command() string
}

// Submit sends a message, optionally with an attachment.
type Submit struct {
	Text string
	File *AttachedFile
}

// AttachFile picks a file to attach to the next message.
type AttachFile struct {
	Path string
}

// UpdateEndpoint replaces the completion endpoint base URL.
type UpdateEndpoint struct {
	URL string
}

func (Submit) command() string         { return CommandSubmit }
func (AttachFile) command() string     { return CommandAttachFile }
func (UpdateEndpoint) command() string { return CommandUpdateEndpoint }

// CommandName returns the wire name of c.
func CommandName(c Command) string {
	if c == nil {
		return ""
	}
	return c.command()
}

// Parse converts the wire envelope into its typed variant.
func (r *Request) Parse() (Command, error) {
	switch r.Command {
	case CommandSubmit:
		return Submit{Text: r.Text, File: r.File}, nil
	case CommandAttachFile:
		return AttachFile{Path: r.Path}, nil
	case CommandUpdateEndpoint:
		return UpdateEndpoint{URL: r.URL}, nil
	case "":
		return nil, fmt.Errorf("command is required")
	default:
		return nil, fmt.Errorf("unknown command: %s", r.Command)
	}
}

// Event is sent from the core back to the display surface.
type Event struct {
	// Command is the event name: replyReceived, fileAttached,
	// endpointUpdated or errorOccurred.
	Command string `json:"command"`
	// Text is the model's reply, unmodified (replyReceived).
	Text string `json:"text,omitempty"`
	// HTML is the rendered reply (replyReceived).
	HTML string `json:"html,omitempty"`
	// File is the attachment now pending (fileAttached).
	File *AttachedFile `json:"file,omitempty"`
	// URL is the endpoint now in effect (endpointUpdated).
	URL string `json:"url,omitempty"`
	// Error is set for errorOccurred.
	Error *Error `json:"error,omitempty"`
}

// Error describes a failure reported to the display surface.
type Error struct {
	// Code is a machine-readable error identifier (e.g. "completion_failed").
	Code string `json:"code"`
	// Message is a human-readable error description.
	Message string `json:"message"`
}

// ErrorEvent builds an errorOccurred event.
func ErrorEvent(code, message string) Event {
	return Event{Command: EventError, Error: &Error{Code: code, Message: message}}
}

// Response wraps the events produced by one request.
type Response struct {
	SessionID string  `json:"session_id"`
	Events    []Event `json:"events"`
}
