package journal

import "time"

type Outcome string

const (
	OutcomePersisted   Outcome = "persisted"
	OutcomeConflict    Outcome = "conflict"
	OutcomeFailed      Outcome = "failed"
	OutcomeCancelled   Outcome = "cancelled"
	OutcomeBlocked     Outcome = "blocked"
	OutcomeUnknownSign Outcome = "unknown_sign"
)

// Entry is one handled scan and what became of it.
type Entry struct {
	ID          string    `db:"id"`
	SessionID   string    `db:"session_id"`
	SignNo      string    `db:"sign_no"`
	Status      string    `db:"status"`
	Comments    string    `db:"comments"`
	TimeScanned string    `db:"time_scanned"`
	Outcome     Outcome   `db:"outcome"`
	Error       string    `db:"error"`
	RecordedAt  time.Time `db:"recorded_at"`
}
