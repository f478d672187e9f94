package journal

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLiteJournal(connectionString string) (JournalService, error) {
	db, err := sql.Open("sqlite", connectionString)
	if err != nil {
		return nil, err
	}
	// a single connection keeps ":memory:" databases shared across calls
	db.SetMaxOpenConns(1)

	return &SQLiteJournal{db: db}, nil
}

func (s *SQLiteJournal) CreateJournal() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS inspections (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		sign_no TEXT NOT NULL,
		status TEXT,
		comments TEXT,
		time_scanned TEXT,
		outcome TEXT NOT NULL,
		error TEXT,
		recorded_at TEXT NOT NULL
	)`)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_inspections_sign_no ON inspections(sign_no)`)
	return err
}

func (s *SQLiteJournal) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteJournal) Record(ctx context.Context, entry Entry) (string, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO inspections (id, session_id, sign_no, status, comments, time_scanned, outcome, error, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.SessionID, entry.SignNo, entry.Status, entry.Comments, entry.TimeScanned,
		string(entry.Outcome), entry.Error, entry.RecordedAt.UTC().Format(timeLayout))
	if err != nil {
		return "", err
	}
	return entry.ID, nil
}

func (s *SQLiteJournal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.query(ctx, `SELECT id, session_id, sign_no, status, comments, time_scanned, outcome, error, recorded_at
		FROM inspections ORDER BY recorded_at DESC, rowid DESC LIMIT ?`, limit)
}

func (s *SQLiteJournal) BySign(ctx context.Context, signNo string) ([]Entry, error) {
	return s.query(ctx, `SELECT id, session_id, sign_no, status, comments, time_scanned, outcome, error, recorded_at
		FROM inspections WHERE sign_no = ? ORDER BY recorded_at DESC, rowid DESC`, signNo)
}

func (s *SQLiteJournal) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			outcome    string
			status     sql.NullString
			comments   sql.NullString
			scanned    sql.NullString
			errText    sql.NullString
			recordedAt string
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.SignNo, &status, &comments, &scanned, &outcome, &errText, &recordedAt); err != nil {
			return nil, err
		}
		e.Status = status.String
		e.Comments = comments.String
		e.TimeScanned = scanned.String
		e.Outcome = Outcome(outcome)
		e.Error = errText.String
		if e.RecordedAt, err = time.Parse(timeLayout, recordedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
