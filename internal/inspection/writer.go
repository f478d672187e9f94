package inspection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jo-hoe/signtracker/internal/csvlog"
	"github.com/jo-hoe/signtracker/internal/remote"
)

const DefaultCommitMessage = "Log inspection of sign %s"

// LogStore is the remote home of the inspection log. The sha returned by Fetch
// must accompany the following Put; a stale sha fails with remote.ErrConflict.
type LogStore interface {
	Fetch(ctx context.Context, token string) (content string, sha string, err error)
	Put(ctx context.Context, token, content, sha, message string) error
}

type WriterConfig struct {
	Delimiter     string
	CommitMessage string
	// ConflictRetries is how often a rejected write is retried against the
	// freshly read remote log. Zero reports the conflict to the caller.
	ConflictRetries int
	Location        *time.Location
	Now             func() time.Time
}

// Writer appends inspection events to the session log and persists the whole
// log to the LogStore.
type Writer struct {
	store  LogStore
	config WriterConfig
}

func NewWriter(store LogStore, config WriterConfig) *Writer {
	if config.Delimiter == "" {
		config.Delimiter = csvlog.DefaultDelimiter
	}
	if config.CommitMessage == "" {
		config.CommitMessage = DefaultCommitMessage
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Writer{store: store, config: config}
}

// Today returns the current date in the station's time zone as YYYY-MM-DD.
func (w *Writer) Today() string {
	return w.config.Now().In(w.config.Location).Format(time.DateOnly)
}

// Append records a confirmed inspection of code. The entry is added to the
// session log before the write is attempted and is not removed if it fails.
func (w *Writer) Append(ctx context.Context, s *Session, code, comment string) (LogEntry, error) {
	entry := LogEntry{
		SignNo:      code,
		Status:      StatusOkay,
		Comments:    comment,
		TimeScanned: w.config.Now().In(w.config.Location).Format(time.RFC3339),
	}
	s.Log = append(s.Log, entry)

	err := w.persist(ctx, s, code)
	for attempt := 1; errors.Is(err, remote.ErrConflict) && attempt <= w.config.ConflictRetries; attempt++ {
		slog.Warn("log write conflicted; retrying against remote state",
			"sign_no", code, "attempt", attempt, "error", err)
		err = w.resync(ctx, s, entry)
	}
	return entry, err
}

// persist writes the session log using the current remote sha. The session log
// is not merged with the remote content first.
func (w *Writer) persist(ctx context.Context, s *Session, code string) error {
	content, err := w.encode(s.Log)
	if err != nil {
		return err
	}
	_, sha, err := w.store.Fetch(ctx, s.Token)
	if err != nil {
		return fmt.Errorf("failed to read remote log: %w", err)
	}
	if err := w.store.Put(ctx, s.Token, content, sha, w.message(code)); err != nil {
		return fmt.Errorf("failed to write remote log: %w", err)
	}
	return nil
}

// resync rebuilds the session log from the remote content plus entry and writes
// it with the sha that content was read at.
func (w *Writer) resync(ctx context.Context, s *Session, entry LogEntry) error {
	remoteText, sha, err := w.store.Fetch(ctx, s.Token)
	if err != nil {
		return fmt.Errorf("failed to read remote log: %w", err)
	}

	fresh := append(LogEntriesFromRecords(csvlog.Decode(remoteText, w.config.Delimiter)), entry)
	content, err := w.encode(fresh)
	if err != nil {
		return err
	}
	if err := w.store.Put(ctx, s.Token, content, sha, w.message(entry.SignNo)); err != nil {
		return fmt.Errorf("failed to write remote log: %w", err)
	}
	s.Log = fresh
	return nil
}

func (w *Writer) encode(entries []LogEntry) (string, error) {
	records := make([]csvlog.Record, 0, len(entries))
	for _, e := range entries {
		records = append(records, e.Record())
	}
	content, err := csvlog.Encode(records, w.config.Delimiter)
	if err != nil {
		return "", fmt.Errorf("failed to encode log: %w", err)
	}
	return content, nil
}

func (w *Writer) message(code string) string {
	if strings.Contains(w.config.CommitMessage, "%s") {
		return fmt.Sprintf(w.config.CommitMessage, code)
	}
	return w.config.CommitMessage
}
