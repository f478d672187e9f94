package inspection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jo-hoe/signtracker/internal/csvlog"
	"github.com/jo-hoe/signtracker/internal/journal"
	"github.com/jo-hoe/signtracker/internal/remote"
)

var (
	ErrNotFound         = errors.New("sign not found in master list")
	ErrPromptPending    = errors.New("a confirmation is already pending")
	ErrNoPrompt         = errors.New("no matching confirmation pending")
	ErrDuplicateBlocked = errors.New("sign already logged today")
)

// DuplicatePolicy decides what happens when a sign is scanned again on the same day.
type DuplicatePolicy string

const (
	// DuplicateFlag only changes the prompt text; logging proceeds as usual.
	DuplicateFlag DuplicatePolicy = "flag"
	// DuplicateBlock refuses a second same-day entry before prompting.
	DuplicateBlock DuplicatePolicy = "block"
)

const (
	MessageFirstScan     = "Mark as OKAY or add a comment."
	MessageScannedToday  = "Already scanned today. Add a comment to update the log?"
	MessagePersistFailed = "Failed to update the log. Please try again."
)

func NotFoundMessage(code string) string {
	return fmt.Sprintf("Sign %s not found in master list", code)
}

func BlockedMessage(code string) string {
	return fmt.Sprintf("Sign %s was already logged today", code)
}

func LoggedMessage(code string) string {
	return fmt.Sprintf("Sign %s logged", code)
}

type ListLoader interface {
	Load(ctx context.Context) (reference []csvlog.Record, log []csvlog.Record, err error)
}

type Journal interface {
	Record(ctx context.Context, entry journal.Entry) (string, error)
}

// Workflow holds the steps of an inspection round. Callers serialize calls per
// session; a Session is not safe for concurrent use.
type Workflow struct {
	loader  ListLoader
	writer  *Writer
	journal Journal
	policy  DuplicatePolicy
}

// NewWorkflow wires the workflow. journal may be nil.
func NewWorkflow(loader ListLoader, writer *Writer, journal Journal, policy DuplicatePolicy) *Workflow {
	if policy == "" {
		policy = DuplicateFlag
	}
	return &Workflow{
		loader:  loader,
		writer:  writer,
		journal: journal,
		policy:  policy,
	}
}

// StartSession creates a session for the given credential and loads both lists.
func (w *Workflow) StartSession(ctx context.Context, token string) (*Session, error) {
	s := NewSession(token, w.writer.config.Now())
	if err := w.Reload(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload replaces the session's lists with the current remote ones.
func (w *Workflow) Reload(ctx context.Context, s *Session) error {
	reference, log, err := w.loader.Load(ctx)
	if err != nil {
		return err
	}
	s.Reference = reference
	s.Log = LogEntriesFromRecords(log)
	return nil
}

// Scan handles a decoded code and returns the prompt to show. Only one prompt
// may be pending per session.
func (w *Workflow) Scan(ctx context.Context, s *Session, code string) (*Prompt, error) {
	if s.Pending != nil {
		return nil, ErrPromptPending
	}
	code = strings.TrimSpace(code)

	entry, ok := Lookup(code, s.Reference)
	if !ok {
		w.record(ctx, s, journal.Entry{SignNo: code, Outcome: journal.OutcomeUnknownSign})
		return nil, fmt.Errorf("%w: %q", ErrNotFound, code)
	}

	scannedToday := WasScannedToday(code, s.Log, w.writer.Today())
	if scannedToday && w.policy == DuplicateBlock {
		w.record(ctx, s, journal.Entry{SignNo: code, Outcome: journal.OutcomeBlocked})
		return nil, fmt.Errorf("%w: %q", ErrDuplicateBlocked, code)
	}

	message := MessageFirstScan
	if scannedToday {
		message = MessageScannedToday
	}
	s.Pending = &Prompt{
		ID:           uuid.NewString(),
		SignNo:       code,
		Entry:        entry,
		ScannedToday: scannedToday,
		Message:      message,
	}
	return s.Pending, nil
}

// Confirm closes the pending prompt and appends an OKAY entry with comment.
func (w *Workflow) Confirm(ctx context.Context, s *Session, promptID, comment string) (LogEntry, error) {
	prompt, err := takePending(s, promptID)
	if err != nil {
		return LogEntry{}, err
	}

	entry, err := w.writer.Append(ctx, s, prompt.SignNo, strings.TrimSpace(comment))

	record := journal.Entry{
		SignNo:      entry.SignNo,
		Status:      entry.Status,
		Comments:    entry.Comments,
		TimeScanned: entry.TimeScanned,
		Outcome:     journal.OutcomePersisted,
	}
	switch {
	case errors.Is(err, remote.ErrConflict):
		record.Outcome = journal.OutcomeConflict
	case err != nil:
		record.Outcome = journal.OutcomeFailed
	}
	if err != nil {
		record.Error = err.Error()
	}
	w.record(ctx, s, record)

	return entry, err
}

// Cancel closes the pending prompt without logging.
func (w *Workflow) Cancel(ctx context.Context, s *Session, promptID string) error {
	prompt, err := takePending(s, promptID)
	if err != nil {
		return err
	}
	w.record(ctx, s, journal.Entry{SignNo: prompt.SignNo, Outcome: journal.OutcomeCancelled})
	return nil
}

func takePending(s *Session, promptID string) (*Prompt, error) {
	if s.Pending == nil || (promptID != "" && s.Pending.ID != promptID) {
		return nil, ErrNoPrompt
	}
	prompt := s.Pending
	s.Pending = nil
	return prompt, nil
}

func (w *Workflow) record(ctx context.Context, s *Session, entry journal.Entry) {
	if w.journal == nil {
		return
	}
	entry.SessionID = s.ID
	entry.RecordedAt = w.writer.config.Now()
	if _, err := w.journal.Record(ctx, entry); err != nil {
		slog.Warn("failed to journal inspection outcome",
			"session_id", s.ID, "sign_no", entry.SignNo, "outcome", entry.Outcome, "error", err)
	}
}
