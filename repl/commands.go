package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"mvdan.cc/sh/v3/shell"
)

type actionKind int

const (
	actSubmit actionKind = iota
	actAttach
	actDetach
	actEndpoint
	actHelp
	actQuit
)

// action is what one input line asks for.
type action struct {
	kind actionKind
	arg  string
}

const helpText = `commands:
  :attach [path]    attach a file to the next message (prompts when no path)
  :detach           drop the pending attachment
  :endpoint [url]   set the completion endpoint (no url restores the default)
  :help             show this help
  :quit             exit
anything else is sent to the model
`

// parseLine turns an input line into an action. Lines not starting with
// ':' are messages.
func parseLine(line string) (action, error) {
	if !strings.HasPrefix(line, ":") {
		return action{kind: actSubmit, arg: line}, nil
	}

	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch name {
	case ":quit", ":q":
		return action{kind: actQuit}, nil
	case ":help", ":h":
		return action{kind: actHelp}, nil
	case ":detach":
		return action{kind: actDetach}, nil
	case ":endpoint":
		return action{kind: actEndpoint, arg: rest}, nil
	case ":attach":
		if rest == "" {
			return action{kind: actAttach}, nil
		}
		path, err := expandPath(rest)
		if err != nil {
			return action{}, err
		}
		return action{kind: actAttach, arg: path}, nil
	default:
		return action{}, fmt.Errorf("unknown command %s (try :help)", name)
	}
}

// expandPath applies shell quoting and variable expansion to a single path
// argument, so `"my notes.txt"` and `$HOME/a.txt` both work.
func expandPath(arg string) (string, error) {
	fields, err := shell.Fields(arg, nil)
	if err != nil {
		return "", fmt.Errorf("bad path: %w", err)
	}
	switch len(fields) {
	case 0:
		return "", nil
	case 1:
		return fields[0], nil
	default:
		return "", errors.New("expected a single path; quote paths that contain spaces")
	}
}

// promptPicker asks for a path on the editor. Ctrl-C or an empty line
// cancels.
type promptPicker struct {
	editor *Editor
}

func (p promptPicker) Pick(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	line, err := p.editor.ReadLine("file: ")
	if errors.Is(err, ErrInterrupt) || errors.Is(err, io.EOF) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return expandPath(strings.TrimSpace(line))
}
