package journal

import "context"

type JournalService interface {
	CreateJournal() error
	Close() error

	// Record stores an entry, assigning ID and RecordedAt when they are empty.
	Record(ctx context.Context, entry Entry) (string, error)
	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)
	// BySign returns all entries for one sign, newest first.
	BySign(ctx context.Context, signNo string) ([]Entry, error)
}
