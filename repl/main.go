// Command lmbridge-repl is an interactive terminal chat against an LM Studio
// compatible endpoint. It reads input from /dev/tty, shows rendered replies
// there, and writes a TOML transcript to stdout.
//
// Usage:
//
//	./lmbridge-repl             # interactive, TOML on screen
//	./lmbridge-repl > log.toml  # chat on screen, TOML to file
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"

	lmbridge "github.com/Paranoid-AF/lmbridge"
	"github.com/Paranoid-AF/lmbridge/complete"
	"github.com/Paranoid-AF/lmbridge/session"
)

const prompt = "> "

func main() {
	verbose := flag.Bool("verbose", false, "log requests and responses to stderr")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(termWriter(os.Stderr), &slog.HandlerOptions{Level: level})))

	editor, err := NewEditor()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer editor.Close()

	// Status output goes to the tty even when stdout is redirected, so the
	// stdout-based default of fatih/color does not apply.
	color.NoColor = os.Getenv("NO_COLOR") != ""

	tty := &crlfWriter{w: editor.Out()}
	disp := newDisplay(tty, editor.Width())

	store, err := lmbridge.NewStore(lmbridge.ConfigPath())
	if err != nil {
		disp.error(lmbridge.CodeConfigError, err.Error())
		store = lmbridge.NewMemoryStore(nil)
	}

	client := complete.NewClient(store.Timeout())
	sess := session.New("repl", store, client, promptPicker{editor: editor})

	fmt.Fprint(tty, "\033[2J\033[H") // clear screen
	disp.banner(store.BaseURL(), store.Path())

	// stdout writer: converts \n → \r\n when stdout is a terminal (raw mode),
	// passes \n through unchanged when redirected to a file.
	out := termWriter(os.Stdout)

	for {
		line, err := editor.ReadLine(prompt)
		if err == io.EOF || errors.Is(err, ErrInterrupt) {
			break
		}
		if err != nil {
			disp.error("read_error", err.Error())
			break
		}
		if line == "" {
			continue
		}

		act, err := parseLine(line)
		if err != nil {
			disp.error(lmbridge.CodeInvalidRequest, err.Error())
			continue
		}

		var cmd lmbridge.Command
		attachment := ""
		switch act.kind {
		case actQuit:
			return
		case actHelp:
			fmt.Fprint(tty, helpText+"\n")
			continue
		case actDetach:
			if p := sess.Pending(); p != nil {
				sess.Detach()
				disp.status("detached %s", p.Name)
			} else {
				disp.status("nothing attached")
			}
			continue
		case actAttach:
			cmd = lmbridge.AttachFile{Path: act.arg}
		case actEndpoint:
			cmd = lmbridge.UpdateEndpoint{URL: act.arg}
		case actSubmit:
			if p := sess.Pending(); p != nil {
				attachment = p.Name
			}
			cmd = lmbridge.Submit{Text: act.arg}
			mutedText.Fprint(tty, "waiting for reply...\n")
		}

		events := sess.Handle(context.Background(), cmd)
		disp.events(events)

		entry := newEntry(time.Now(), lmbridge.CommandName(cmd), act.arg, attachment, events)
		if err := writeEntry(out, entry); err != nil {
			slog.Warn("failed to write transcript entry", "error", err)
		}
	}
}
