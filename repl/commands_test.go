package main

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	t.Setenv("LMBRIDGE_TEST_DIR", "/data/notes")

	tests := []struct {
		line string
		want action
	}{
		{"hello there", action{kind: actSubmit, arg: "hello there"}},
		{"  spaced  ", action{kind: actSubmit, arg: "  spaced  "}},
		{":q", action{kind: actQuit}},
		{":quit", action{kind: actQuit}},
		{":help", action{kind: actHelp}},
		{":detach", action{kind: actDetach}},
		{":attach", action{kind: actAttach}},
		{":attach /tmp/a.txt", action{kind: actAttach, arg: "/tmp/a.txt"}},
		{`:attach "my notes.txt"`, action{kind: actAttach, arg: "my notes.txt"}},
		{`:attach 'it''s.txt'`, action{kind: actAttach, arg: "its.txt"}},
		{":attach $LMBRIDGE_TEST_DIR/a.md", action{kind: actAttach, arg: "/data/notes/a.md"}},
		{":endpoint http://10.0.0.2:1234", action{kind: actEndpoint, arg: "http://10.0.0.2:1234"}},
		{":endpoint", action{kind: actEndpoint}},
	}
	for _, tt := range tests {
		got, err := parseLine(tt.line)
		require.NoError(t, err, "line %q", tt.line)
		require.Equal(t, tt.want, got, "line %q", tt.line)
	}
}

func TestParseLineErrors(t *testing.T) {
	for _, line := range []string{
		":bogus",
		":attach a.txt b.txt",
		`:attach "unterminated`,
	} {
		_, err := parseLine(line)
		require.Error(t, err, "line %q", line)
	}
}

func TestPromptPicker(t *testing.T) {
	e := newEditor(strings.NewReader("\"a b.txt\"\r"), io.Discard)
	path, err := promptPicker{editor: e}.Pick(context.Background())
	require.NoError(t, err)
	require.Equal(t, "a b.txt", path)
}

func TestPromptPickerCancel(t *testing.T) {
	for _, input := range []string{"\x03", "\x04", "\r"} {
		e := newEditor(strings.NewReader(input), io.Discard)
		path, err := promptPicker{editor: e}.Pick(context.Background())
		require.NoError(t, err, "input %q", input)
		require.Empty(t, path, "input %q", input)
	}
}

func TestPromptPickerContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := newEditor(strings.NewReader("a.txt\r"), io.Discard)
	_, err := promptPicker{editor: e}.Pick(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
