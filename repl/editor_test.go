package main

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func readLine(t *testing.T, input string) (string, error) {
	t.Helper()
	return newEditor(strings.NewReader(input), io.Discard).ReadLine("> ")
}

func TestEditorKeys(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "hello\r", "hello"},
		{"newline", "hello\n", "hello"},
		{"left then insert", "helo\x1b[Dl\r", "hello"},
		{"right at end", "ab\x1b[C\x1b[Cc\r", "abc"},
		{"backspace", "abc\x7f\r", "ab"},
		{"ctrl-h", "abc\x08\r", "ab"},
		{"ctrl-u", "abc\x15xy\r", "xy"},
		{"ctrl-w", "foo bar \x17\r", "foo "},
		{"ctrl-a", "bc\x01a\r", "abc"},
		{"ctrl-e", "ac\x01\x05b\r", "acb"},
		{"home end keys", "b\x1b[Ha\x1b[Fc\r", "abc"},
		{"tilde home", "b\x1b[1~a\r", "ab"},
		{"delete key", "abc\x01\x1b[3~\r", "bc"},
		{"ctrl-d deletes forward", "ab\x01\x04\r", "b"},
		{"unicode", "привет\x7f\r", "приве"},
		{"control chars ignored", "a\x02b\r", "ab"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readLine(t, tt.input)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestEditorEOFAndInterrupt(t *testing.T) {
	_, err := readLine(t, "\x04")
	require.ErrorIs(t, err, io.EOF)

	_, err = readLine(t, "abc\x03")
	require.ErrorIs(t, err, ErrInterrupt)

	_, err = readLine(t, "unterminated")
	require.ErrorIs(t, err, io.EOF)
}

func TestEditorHistory(t *testing.T) {
	e := newEditor(strings.NewReader("one\rtwo\rtwo\r\x1b[A\x1b[A\r\x1b[A\x1b[B\x1b[B\r"), io.Discard)

	for _, want := range []string{"one", "two", "two"} {
		got, err := e.ReadLine("> ")
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	require.Equal(t, []string{"one", "two"}, e.history)

	got, err := e.ReadLine("> ")
	require.NoError(t, err)
	require.Equal(t, "one", got)

	// up then down past the newest entry leaves an empty line
	got, err = e.ReadLine("> ")
	require.NoError(t, err)
	require.Equal(t, "", got)
}

func TestEditorRedrawsCursor(t *testing.T) {
	var out strings.Builder
	e := newEditor(strings.NewReader("ab\x1b[D\r"), &out)
	_, err := e.ReadLine("> ")
	require.NoError(t, err)
	require.Contains(t, out.String(), "\r\x1b[K> ab\x1b[1D")
}

func TestLineBufferDeleteWordAtStart(t *testing.T) {
	var l lineBuffer
	l.reset("word")
	l.home()
	l.deleteWord()
	require.Equal(t, "word", l.String())
	require.Equal(t, 0, l.pos)
}
