package inspection

import (
	"strings"
	"time"

	"github.com/jo-hoe/signtracker/internal/csvlog"
)

// Lookup returns the first reference entry whose SignNo equals code exactly.
func Lookup(code string, reference []csvlog.Record) (csvlog.Record, bool) {
	for _, r := range reference {
		if r.Get(FieldSignNo) == code {
			return r, true
		}
	}
	return csvlog.Record{}, false
}

// WasScannedToday reports whether log holds an entry for code whose TimeScanned
// starts with today (YYYY-MM-DD).
func WasScannedToday(code string, log []LogEntry, today string) bool {
	if len(today) != len(time.DateOnly) {
		return false
	}
	for _, e := range log {
		if e.SignNo == code && strings.HasPrefix(e.TimeScanned, today) {
			return true
		}
	}
	return false
}
