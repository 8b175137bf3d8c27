package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/fatih/color"

	lmbridge "github.com/Paranoid-AF/lmbridge"
)

var (
	titleText = color.New(color.FgCyan, color.Bold)
	okText    = color.New(color.FgGreen)
	infoText  = color.New(color.FgCyan)
	errorText = color.New(color.FgRed)
	mutedText = color.New(color.FgHiBlack)
)

// display shows events on the terminal. Replies are rendered with glamour
// when a renderer is available and printed as-is otherwise.
type display struct {
	w  io.Writer
	md *glamour.TermRenderer
}

// newDisplay writes to w, wrapping rendered replies at width columns.
// $GLAMOUR_STYLE picks the reply style.
func newDisplay(w io.Writer, width int) *display {
	style := os.Getenv("GLAMOUR_STYLE")
	if style == "" {
		style = styles.DarkStyle
	}
	md, err := glamour.NewTermRenderer(
		glamour.WithStylePath(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		md = nil
	}
	return &display{w: w, md: md}
}

func (d *display) banner(endpoint, configPath string) {
	titleText.Fprint(d.w, "lmbridge repl")
	fmt.Fprint(d.w, "\n")
	mutedText.Fprintf(d.w, "endpoint: %s\n", endpoint)
	if configPath != "" {
		mutedText.Fprintf(d.w, "config:   %s\n", configPath)
	}
	fmt.Fprintf(d.w, "\n%s\n", helpText)
}

func (d *display) events(events []lmbridge.Event) {
	for _, ev := range events {
		switch ev.Command {
		case lmbridge.EventReply:
			d.reply(ev.Text)
		case lmbridge.EventFileAttached:
			if ev.File != nil {
				okText.Fprintf(d.w, "attached %s (%d bytes)\n", ev.File.Name, len(ev.File.Content))
			}
		case lmbridge.EventEndpointUpdated:
			infoText.Fprintf(d.w, "endpoint: %s\n", ev.URL)
		case lmbridge.EventError:
			if ev.Error != nil {
				d.error(ev.Error.Code, ev.Error.Message)
			}
		}
	}
	fmt.Fprint(d.w, "\n")
}

func (d *display) reply(text string) {
	if strings.TrimSpace(text) == "" {
		mutedText.Fprint(d.w, "(empty reply)\n")
		return
	}
	if d.md != nil {
		if out, err := d.md.Render(text); err == nil {
			fmt.Fprint(d.w, out)
			return
		}
	}
	fmt.Fprintln(d.w, text)
}

func (d *display) status(format string, args ...any) {
	infoText.Fprintf(d.w, format+"\n", args...)
}

func (d *display) error(code, message string) {
	errorText.Fprintf(d.w, "error [%s]: %s\n", code, message)
}
