package inspection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jo-hoe/signtracker/internal/scanner"
)

// Cue is an audible signal for the operator.
type Cue string

const (
	CueDetected Cue = "detected"
	CueSuccess  Cue = "success"
	CueError    Cue = "error"
)

// Notifier plays cues and shows blocking alerts.
type Notifier interface {
	Cue(cue Cue)
	Alert(message string)
}

// TerminalNotifier rings the terminal bell for error cues and prints alerts.
type TerminalNotifier struct {
	Out io.Writer
}

func (n TerminalNotifier) Cue(cue Cue) {
	if cue == CueError {
		fmt.Fprint(n.Out, "\a")
	}
}

func (n TerminalNotifier) Alert(message string) {
	fmt.Fprintln(n.Out, message)
}

// Station drives the scan, decide, resume rhythm for one session: detection is
// stopped before a prompt is shown and restarted only after it is answered.
type Station struct {
	workflow *Workflow
	scanner  scanner.Scanner
	dialog   Dialog
	notifier Notifier
}

func NewStation(workflow *Workflow, sc scanner.Scanner, dialog Dialog, notifier Notifier) *Station {
	return &Station{
		workflow: workflow,
		scanner:  sc,
		dialog:   dialog,
		notifier: notifier,
	}
}

// Run scans until ctx is done or the scanner input ends. A scanner that cannot
// start ends the run with scanner.ErrCameraUnavailable; restarting is up to the caller.
func (st *Station) Run(ctx context.Context, s *Session) error {
	defer st.scanner.Stop()

	for {
		code, err := st.next(ctx)
		if err != nil {
			if errors.Is(err, scanner.ErrCameraUnavailable) {
				st.notifier.Alert("Scanner unavailable. Check the device and start again.")
			}
			return err
		}
		st.notifier.Cue(CueDetected)

		if err := st.handle(ctx, s, code); err != nil {
			return err
		}
	}
}

// handle processes one code. Only errors that should end the run are returned.
func (st *Station) handle(ctx context.Context, s *Session, code string) error {
	prompt, err := st.workflow.Scan(ctx, s, code)
	switch {
	case errors.Is(err, ErrNotFound):
		st.notifier.Cue(CueError)
		st.notifier.Alert(NotFoundMessage(code))
		return nil
	case errors.Is(err, ErrDuplicateBlocked):
		st.notifier.Cue(CueError)
		st.notifier.Alert(BlockedMessage(code))
		return nil
	case err != nil:
		return err
	}

	decision, err := st.dialog.Ask(ctx, *prompt)
	if err != nil {
		_ = st.workflow.Cancel(ctx, s, prompt.ID)
		return err
	}
	if !decision.Confirmed {
		return st.workflow.Cancel(ctx, s, prompt.ID)
	}

	if _, err := st.workflow.Confirm(ctx, s, prompt.ID, decision.Comment); err != nil {
		slog.Error("Station: failed to persist inspection", "sign_no", prompt.SignNo, "error", err)
		st.notifier.Cue(CueError)
		st.notifier.Alert(MessagePersistFailed)
		return nil
	}
	st.notifier.Cue(CueSuccess)
	st.notifier.Alert(LoggedMessage(prompt.SignNo))
	return nil
}

func (st *Station) next(ctx context.Context) (string, error) {
	codes := make(chan string, 1)
	if err := st.scanner.Start(ctx, func(code string) { codes <- code }); err != nil {
		return "", err
	}

	var done <-chan struct{}
	if d, ok := st.scanner.(interface{ Done() <-chan struct{} }); ok {
		done = d.Done()
	}

	select {
	case code := <-codes:
		return code, nil
	case <-done:
		select {
		case code := <-codes:
			return code, nil
		default:
			return "", io.EOF
		}
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
