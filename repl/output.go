package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/term"

	lmbridge "github.com/Paranoid-AF/lmbridge"
)

// termWriter wraps a file and converts \n to \r\n when the file is a terminal
// (needed because raw mode disables the kernel's NL→CRNL translation).
// When the file is redirected, \n passes through unchanged.
func termWriter(f *os.File) io.Writer {
	if term.IsTerminal(int(f.Fd())) {
		return &crlfWriter{w: f}
	}
	return f
}

type crlfWriter struct {
	w io.Writer
}

func (c *crlfWriter) Write(p []byte) (int, error) {
	replaced := bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))
	_, err := c.w.Write(replaced)
	return len(p), err // report original length to caller
}

// entry is one exchange in the TOML transcript.
type entry struct {
	Request  requestEntry   `toml:"request"`
	Reply    *replyEntry    `toml:"reply,omitempty"`
	Attached *attachedEntry `toml:"attached,omitempty"`
	Endpoint string         `toml:"endpoint,omitempty"`
	Errors   []errorEntry   `toml:"error,omitempty"`
}

type requestEntry struct {
	Timestamp  time.Time `toml:"timestamp"`
	Command    string    `toml:"command"`
	Input      string    `toml:"input,omitempty"`
	Attachment string    `toml:"attachment,omitempty"`
}

type replyEntry struct {
	Text string `toml:"text"`
	HTML string `toml:"html"`
}

type attachedEntry struct {
	Name  string `toml:"name"`
	Bytes int    `toml:"bytes"`
}

type errorEntry struct {
	Code    string `toml:"code"`
	Message string `toml:"message"`
}

// newEntry summarises a command and the events it produced. attachment is
// the name of the file that went out with a submission, if any.
func newEntry(now time.Time, command, input, attachment string, events []lmbridge.Event) entry {
	e := entry{Request: requestEntry{
		Timestamp:  now,
		Command:    command,
		Input:      input,
		Attachment: attachment,
	}}
	for _, ev := range events {
		switch ev.Command {
		case lmbridge.EventReply:
			e.Reply = &replyEntry{Text: ev.Text, HTML: ev.HTML}
		case lmbridge.EventFileAttached:
			if ev.File != nil {
				e.Attached = &attachedEntry{Name: ev.File.Name, Bytes: len(ev.File.Content)}
			}
		case lmbridge.EventEndpointUpdated:
			e.Endpoint = ev.URL
		case lmbridge.EventError:
			if ev.Error != nil {
				e.Errors = append(e.Errors, errorEntry{Code: ev.Error.Code, Message: ev.Error.Message})
			}
		}
	}
	return e
}

// writeEntry writes a single TOML document to w, preceded by a separator
// comment so consecutive entries stay readable.
func writeEntry(w io.Writer, e entry) error {
	fmt.Fprintf(w, "# %s\n\n", strings.Repeat("═", 60))
	if err := toml.NewEncoder(w).Encode(e); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w)
	return err
}
