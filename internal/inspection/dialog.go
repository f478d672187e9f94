package inspection

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Decision is the operator's answer to a Prompt.
type Decision struct {
	Confirmed bool
	Comment   string
}

// Dialog shows a prompt and waits, without timeout, until the operator confirms
// or cancels.
type Dialog interface {
	Ask(ctx context.Context, prompt Prompt) (Decision, error)
}

// LineReader yields the operator's answers one line at a time.
type LineReader interface {
	ReadLine(ctx context.Context) (string, error)
}

// TerminalDialog asks on a text terminal. An empty answer or "y" confirms; the
// operator is then asked for an optional comment.
type TerminalDialog struct {
	lines LineReader
	out   io.Writer
}

func NewTerminalDialog(in io.Reader, out io.Writer) *TerminalDialog {
	return NewLineDialog(readerLines{in: bufio.NewReader(in)}, out)
}

// NewLineDialog asks on out and reads answers from lines, for terminals shared
// with a keyboard-wedge scanner.
func NewLineDialog(lines LineReader, out io.Writer) *TerminalDialog {
	return &TerminalDialog{lines: lines, out: out}
}

func (d *TerminalDialog) Ask(ctx context.Context, prompt Prompt) (Decision, error) {
	fmt.Fprintf(d.out, "\n%s\n%s\n", prompt.Title(), prompt.Message)

	answer, err := d.readLine(ctx, "Confirm? [Y/n]: ")
	if err != nil {
		return Decision{}, err
	}
	switch strings.ToLower(answer) {
	case "", "y", "yes":
	default:
		return Decision{Confirmed: false}, nil
	}

	comment, err := d.readLine(ctx, "Comment (optional): ")
	if err != nil {
		return Decision{}, err
	}
	return Decision{Confirmed: true, Comment: comment}, nil
}

func (d *TerminalDialog) readLine(ctx context.Context, label string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(d.out, label)

	line, err := d.lines.ReadLine(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}

type readerLines struct {
	in *bufio.Reader
}

func (r readerLines) ReadLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	line, err := r.in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", err
	}
	return line, nil
}
