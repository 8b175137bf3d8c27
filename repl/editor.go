package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// ErrInterrupt is returned when the user presses Ctrl-C.
var ErrInterrupt = errors.New("interrupted")

const maxHistory = 200

// Editor is a minimal raw-mode line editor with history.
// It reads from /dev/tty so it works even when stdout is redirected.
type Editor struct {
	tty      *os.File
	oldState *term.State

	in  *bufio.Reader
	out io.Writer

	line    lineBuffer
	history []string
}

// NewEditor opens /dev/tty and switches to raw mode.
func NewEditor() (*Editor, error) {
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open /dev/tty: %w", err)
	}

	old, err := term.MakeRaw(int(tty.Fd()))
	if err != nil {
		tty.Close()
		return nil, fmt.Errorf("raw mode: %w", err)
	}

	e := newEditor(tty, tty)
	e.tty = tty
	e.oldState = old
	return e, nil
}

// newEditor builds an editor over arbitrary streams, without touching the
// terminal mode.
func newEditor(in io.Reader, out io.Writer) *Editor {
	return &Editor{in: bufio.NewReader(in), out: out}
}

// Close restores terminal state and closes the tty fd.
func (e *Editor) Close() {
	if e.tty == nil {
		return
	}
	term.Restore(int(e.tty.Fd()), e.oldState)
	e.tty.Close()
}

// Out returns the writer for prompts and status output.
func (e *Editor) Out() io.Writer {
	return e.out
}

// Width returns the terminal width, or 80 when unknown.
func (e *Editor) Width() int {
	if e.tty != nil {
		if w, _, err := term.GetSize(int(e.tty.Fd())); err == nil && w > 0 {
			return w
		}
	}
	return 80
}

// ReadLine displays the prompt and reads one line. It returns io.EOF on
// Ctrl-D with an empty line and ErrInterrupt on Ctrl-C. Non-empty lines
// are added to the history, reachable with the up and down arrows.
func (e *Editor) ReadLine(prompt string) (string, error) {
	e.line.reset("")
	histPos := len(e.history)
	e.redraw(prompt)

	for {
		r, _, err := e.in.ReadRune()
		if err != nil {
			return "", err
		}

		switch r {
		case 3: // Ctrl-C
			fmt.Fprint(e.out, "\r\n")
			return "", ErrInterrupt

		case 4: // Ctrl-D
			if e.line.empty() {
				fmt.Fprint(e.out, "\r\n")
				return "", io.EOF
			}
			e.line.deleteForward()

		case '\r', '\n':
			fmt.Fprint(e.out, "\r\n")
			text := e.line.String()
			e.remember(text)
			return text, nil

		case 127, 8: // Backspace / Ctrl-H
			e.line.backspace()

		case 1: // Ctrl-A
			e.line.home()

		case 5: // Ctrl-E
			e.line.end()

		case 21: // Ctrl-U
			e.line.reset("")

		case 23: // Ctrl-W
			e.line.deleteWord()

		case 27:
			switch e.readEscape() {
			case 'A':
				if histPos > 0 {
					histPos--
					e.line.reset(e.history[histPos])
				}
			case 'B':
				if histPos < len(e.history)-1 {
					histPos++
					e.line.reset(e.history[histPos])
				} else {
					histPos = len(e.history)
					e.line.reset("")
				}
			case 'C':
				e.line.right()
			case 'D':
				e.line.left()
			case 'H', '1':
				e.line.home()
			case 'F', '4':
				e.line.end()
			case '3':
				e.line.deleteForward()
			}

		default:
			if r >= 32 {
				e.line.insert(r)
			}
		}

		e.redraw(prompt)
	}
}

// readEscape consumes a CSI sequence and returns its final key: an arrow
// letter, H/F, or the digit of a "\x1b[N~" sequence. Anything else is 0.
func (e *Editor) readEscape() rune {
	if b, err := e.in.ReadByte(); err != nil || b != '[' {
		return 0
	}
	b, err := e.in.ReadByte()
	if err != nil {
		return 0
	}
	if b >= '0' && b <= '9' {
		e.in.ReadByte() // '~'
	}
	return rune(b)
}

func (e *Editor) remember(text string) {
	if text == "" {
		return
	}
	if n := len(e.history); n > 0 && e.history[n-1] == text {
		return
	}
	e.history = append(e.history, text)
	if len(e.history) > maxHistory {
		e.history = e.history[len(e.history)-maxHistory:]
	}
}

// redraw clears the current line and redraws prompt + buffer with cursor.
func (e *Editor) redraw(prompt string) {
	fmt.Fprintf(e.out, "\r\x1b[K%s%s", prompt, e.line.String())
	if tail := e.line.tail(); tail > 0 {
		fmt.Fprintf(e.out, "\x1b[%dD", tail)
	}
}

// lineBuffer is the text being edited and the cursor, in runes.
type lineBuffer struct {
	buf []rune
	pos int
}

func (l *lineBuffer) reset(s string) {
	l.buf = []rune(s)
	l.pos = len(l.buf)
}

func (l *lineBuffer) String() string { return string(l.buf) }
func (l *lineBuffer) empty() bool    { return len(l.buf) == 0 }
func (l *lineBuffer) tail() int      { return len(l.buf) - l.pos }
func (l *lineBuffer) home()          { l.pos = 0 }
func (l *lineBuffer) end()           { l.pos = len(l.buf) }

func (l *lineBuffer) insert(r rune) {
	l.buf = append(l.buf, 0)
	copy(l.buf[l.pos+1:], l.buf[l.pos:])
	l.buf[l.pos] = r
	l.pos++
}

func (l *lineBuffer) backspace() {
	if l.pos == 0 {
		return
	}
	l.buf = append(l.buf[:l.pos-1], l.buf[l.pos:]...)
	l.pos--
}

func (l *lineBuffer) deleteForward() {
	if l.pos >= len(l.buf) {
		return
	}
	l.buf = append(l.buf[:l.pos], l.buf[l.pos+1:]...)
}

func (l *lineBuffer) left() {
	if l.pos > 0 {
		l.pos--
	}
}

func (l *lineBuffer) right() {
	if l.pos < len(l.buf) {
		l.pos++
	}
}

// deleteWord removes the word before the cursor along with any spaces
// between that word and the cursor.
func (l *lineBuffer) deleteWord() {
	start := l.pos
	for start > 0 && l.buf[start-1] == ' ' {
		start--
	}
	for start > 0 && l.buf[start-1] != ' ' {
		start--
	}
	l.buf = append(l.buf[:start], l.buf[l.pos:]...)
	l.pos = start
}
