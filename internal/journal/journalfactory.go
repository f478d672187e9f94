package journal

import (
	"fmt"
	"log/slog"
)

func NewJournal(journalType, connectionString string) (journal JournalService, err error) {
	switch journalType {
	case "sqlite":
		journal, err = NewSQLiteJournal(connectionString)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported journal driver: %s", journalType)
	}

	slog.Info("initializing journal schema", "type", journalType)
	if err = journal.CreateJournal(); err != nil {
		return nil, fmt.Errorf("failed to create journal: %w", err)
	}

	return journal, nil
}
