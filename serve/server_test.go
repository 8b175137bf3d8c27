package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	lmbridge "github.com/Paranoid-AF/lmbridge"
	"github.com/Paranoid-AF/lmbridge/session"
)

// stubCompleter records messages and returns a fixed reply or error.
type stubCompleter struct {
	reply string
	err   error

	mu        sync.Mutex
	messages  []string
	endpoints []string
}

func (s *stubCompleter) Complete(_ context.Context, endpoint, message string) (string, error) {
	s.mu.Lock()
	s.messages = append(s.messages, message)
	s.endpoints = append(s.endpoints, endpoint)
	s.mu.Unlock()
	if s.err != nil {
		return "", &lmbridge.CompletionFailure{Endpoint: endpoint, Err: s.err}
	}
	return s.reply, nil
}

func (s *stubCompleter) lastMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return ""
	}
	return s.messages[len(s.messages)-1]
}

func (s *stubCompleter) lastEndpoint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.endpoints) == 0 {
		return ""
	}
	return s.endpoints[len(s.endpoints)-1]
}

func newTestRegistry(t *testing.T, completer session.Completer) *session.Registry {
	t.Helper()
	store := lmbridge.NewMemoryStore(nil)
	r := session.NewRegistry(0, func(id string) *session.Session {
		return session.New(id, store, completer, nil)
	})
	t.Cleanup(r.Close)
	return r
}

var testSocketCounter atomic.Int64

func newTestServer(t *testing.T, completer session.Completer) *Server {
	t.Helper()
	// Use /tmp directly to avoid macOS 104-char Unix socket path limit
	n := testSocketCounter.Add(1)
	sockPath := fmt.Sprintf("/tmp/lmbridge-t%d-%d.sock", os.Getpid(), n)
	srv, err := NewServer(sockPath, newTestRegistry(t, completer))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { srv.Close() })
	go srv.Serve()
	return srv
}

// exchange writes req on conn and reads one response line.
func exchange(t *testing.T, conn net.Conn, scanner *bufio.Scanner, req *lmbridge.Request) *lmbridge.Response {
	t.Helper()
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := conn.Write(append(data, '\n')); err != nil {
		t.Fatal(err)
	}
	if !scanner.Scan() {
		t.Fatalf("no response from server: %v", scanner.Err())
	}
	var resp lmbridge.Response
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	return &resp
}

func dial(t *testing.T, sockPath string) (net.Conn, *bufio.Scanner) {
	t.Helper()
	conn, err := net.Dial("unix", sockPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	return conn, scanner
}

func sendRequest(t *testing.T, sockPath string, req *lmbridge.Request) *lmbridge.Response {
	t.Helper()
	conn, scanner := dial(t, sockPath)
	return exchange(t, conn, scanner, req)
}

func TestHandleConnAssignsSessionID(t *testing.T) {
	srv := newTestServer(t, &stubCompleter{reply: "hi"})

	resp := sendRequest(t, srv.sockPath, &lmbridge.Request{Command: lmbridge.CommandSubmit, Text: "hello"})
	if resp.SessionID == "" {
		t.Error("expected a generated session id")
	}
	if len(resp.Events) != 1 || resp.Events[0].Command != lmbridge.EventReply {
		t.Fatalf("expected one replyReceived event, got %+v", resp.Events)
	}
}

func TestHandleConnEchoesSessionID(t *testing.T) {
	srv := newTestServer(t, &stubCompleter{reply: "hi"})

	resp := sendRequest(t, srv.sockPath, &lmbridge.Request{
		Command:   lmbridge.CommandSubmit,
		SessionID: "panel-1",
		Text:      "hello",
	})
	if resp.SessionID != "panel-1" {
		t.Errorf("expected session panel-1, got %s", resp.SessionID)
	}
}

func TestHandleConnReplyCarriesHTML(t *testing.T) {
	srv := newTestServer(t, &stubCompleter{reply: "# Title"})

	resp := sendRequest(t, srv.sockPath, &lmbridge.Request{Command: lmbridge.CommandSubmit, Text: "q"})
	ev := resp.Events[0]
	if ev.Text != "# Title" {
		t.Errorf("expected raw text, got %q", ev.Text)
	}
	if ev.HTML != "<h1>Title</h1>" {
		t.Errorf("expected rendered html, got %q", ev.HTML)
	}
}

func TestHandleConnAttachmentPersistsAcrossRequests(t *testing.T) {
	stub := &stubCompleter{reply: "ok"}
	srv := newTestServer(t, stub)

	path := filepath.Join(t.TempDir(), "a.txt")
	if err := os.WriteFile(path, []byte("x=1"), 0644); err != nil {
		t.Fatal(err)
	}

	conn, scanner := dial(t, srv.sockPath)
	first := exchange(t, conn, scanner, &lmbridge.Request{Command: lmbridge.CommandAttachFile, Path: path})
	if len(first.Events) != 1 || first.Events[0].Command != lmbridge.EventFileAttached {
		t.Fatalf("expected fileAttached, got %+v", first.Events)
	}
	if first.Events[0].File == nil || first.Events[0].File.Name != "a.txt" {
		t.Errorf("unexpected file: %+v", first.Events[0].File)
	}

	second := exchange(t, conn, scanner, &lmbridge.Request{Command: lmbridge.CommandSubmit, Text: "check this"})
	if second.SessionID != first.SessionID {
		t.Errorf("expected same session on one connection, got %s and %s", first.SessionID, second.SessionID)
	}
	want := "check this\n\nПрикрепленный файл (a.txt):\n```\nx=1\n```"
	if got := stub.lastMessage(); got != want {
		t.Errorf("expected composed message %q, got %q", want, got)
	}

	exchange(t, conn, scanner, &lmbridge.Request{Command: lmbridge.CommandSubmit, Text: "again"})
	if got := stub.lastMessage(); got != "again" {
		t.Errorf("expected attachment to be used once, got %q", got)
	}
}

func TestHandleConnUnknownCommand(t *testing.T) {
	srv := newTestServer(t, &stubCompleter{})

	resp := sendRequest(t, srv.sockPath, &lmbridge.Request{Command: "addResponse"})
	if len(resp.Events) != 1 || resp.Events[0].Error == nil {
		t.Fatalf("expected one error event, got %+v", resp.Events)
	}
	if resp.Events[0].Error.Code != lmbridge.CodeInvalidRequest {
		t.Errorf("expected invalid_request, got %s", resp.Events[0].Error.Code)
	}
}

func TestHandleConnCompletionFailure(t *testing.T) {
	srv := newTestServer(t, &stubCompleter{err: fmt.Errorf("connection refused")})

	resp := sendRequest(t, srv.sockPath, &lmbridge.Request{Command: lmbridge.CommandSubmit, Text: "q"})
	if len(resp.Events) != 1 || resp.Events[0].Error == nil {
		t.Fatalf("expected one error event, got %+v", resp.Events)
	}
	if resp.Events[0].Error.Code != lmbridge.CodeCompletionFailed {
		t.Errorf("expected completion_failed, got %s", resp.Events[0].Error.Code)
	}
	if !strings.Contains(resp.Events[0].Error.Message, "http://localhost:1234") {
		t.Errorf("expected endpoint in message, got %q", resp.Events[0].Error.Message)
	}
}

func TestHandleConnUpdateEndpoint(t *testing.T) {
	stub := &stubCompleter{reply: "ok"}
	srv := newTestServer(t, stub)

	conn, scanner := dial(t, srv.sockPath)
	resp := exchange(t, conn, scanner, &lmbridge.Request{Command: lmbridge.CommandUpdateEndpoint, URL: "http://10.0.0.9:1234"})
	if len(resp.Events) != 1 || resp.Events[0].Command != lmbridge.EventEndpointUpdated {
		t.Fatalf("expected endpointUpdated, got %+v", resp.Events)
	}

	exchange(t, conn, scanner, &lmbridge.Request{Command: lmbridge.CommandSubmit, Text: "q"})
	if got := stub.lastEndpoint(); got != "http://10.0.0.9:1234" {
		t.Errorf("expected updated endpoint, got %s", got)
	}

	bad := exchange(t, conn, scanner, &lmbridge.Request{Command: lmbridge.CommandUpdateEndpoint, URL: "nope"})
	if bad.Events[0].Error == nil || bad.Events[0].Error.Code != lmbridge.CodeInvalidEndpoint {
		t.Errorf("expected invalid_endpoint, got %+v", bad.Events)
	}
}

func TestHandleConnEventsNeverNull(t *testing.T) {
	srv := newTestServer(t, &stubCompleter{})

	conn, err := net.Dial("unix", srv.sockPath)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	conn.Write([]byte(`{"command":"attachFile"}` + "\n"))

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		t.Fatal("no response")
	}
	raw := scanner.Text()
	if strings.Contains(raw, `"events":null`) {
		t.Errorf("expected events array, got %s", raw)
	}
}
