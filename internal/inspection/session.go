// Package inspection implements the scan-to-log workflow: looking a scanned code
// up in the reference list, asking the operator to confirm, and appending the
// resulting event to the remote inspection log.
package inspection

import (
	"time"

	"github.com/google/uuid"
	"github.com/jo-hoe/signtracker/internal/csvlog"
)

const (
	FieldSignNo      = "SignNo"
	FieldStatus      = "Status"
	FieldComments    = "Comments"
	FieldTimeScanned = "TimeScanned"

	StatusOkay = "OKAY"
)

// LogEntry is one inspection event as stored in the remote log.
type LogEntry struct {
	SignNo      string `json:"signNo"`
	Status      string `json:"status"`
	Comments    string `json:"comments"`
	TimeScanned string `json:"timeScanned"`
}

func (e LogEntry) Record() csvlog.Record {
	return csvlog.NewRecord(
		FieldSignNo, e.SignNo,
		FieldStatus, e.Status,
		FieldComments, e.Comments,
		FieldTimeScanned, e.TimeScanned,
	)
}

func LogEntryFromRecord(r csvlog.Record) LogEntry {
	return LogEntry{
		SignNo:      r.Get(FieldSignNo),
		Status:      r.Get(FieldStatus),
		Comments:    r.Get(FieldComments),
		TimeScanned: r.Get(FieldTimeScanned),
	}
}

func LogEntriesFromRecords(records []csvlog.Record) []LogEntry {
	entries := make([]LogEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, LogEntryFromRecord(r))
	}
	return entries
}

// Prompt is the confirmation currently shown to the operator.
type Prompt struct {
	ID           string        `json:"id"`
	SignNo       string        `json:"signNo"`
	Entry        csvlog.Record `json:"entry"`
	ScannedToday bool          `json:"scannedToday"`
	Message      string        `json:"message"`
}

func (p Prompt) Title() string {
	return "Sign " + p.SignNo
}

// Session holds everything one operator's inspection round needs. It is created
// when the round starts and discarded when it ends.
type Session struct {
	ID        string          `json:"id"`
	Token     string          `json:"token"`
	Reference []csvlog.Record `json:"reference"`
	Log       []LogEntry      `json:"log"`
	Pending   *Prompt         `json:"pending,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

func NewSession(token string, now time.Time) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Token:     token,
		CreatedAt: now,
	}
}
