package inspection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jo-hoe/signtracker/internal/csvlog"
	"github.com/jo-hoe/signtracker/internal/journal"
	"github.com/jo-hoe/signtracker/internal/remote"
)

var testNow = time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

type staticLoader struct {
	reference []csvlog.Record
	log       []csvlog.Record
	err       error
}

func (l staticLoader) Load(ctx context.Context) ([]csvlog.Record, []csvlog.Record, error) {
	return l.reference, l.log, l.err
}

// memoryStore is a LogStore whose sha is a version counter.
type memoryStore struct {
	mu      sync.Mutex
	content string
	version int
	puts    []string
	// bumpBeforePut simulates that many concurrent edits landing between
	// Fetch and Put.
	bumpBeforePut int
	fetchErr      error
	// putGate, when set, holds every Put until it is closed; putEntered is
	// signalled when a Put starts waiting on it.
	putGate    chan struct{}
	putEntered chan struct{}
}

func (m *memoryStore) Fetch(ctx context.Context, token string) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetchErr != nil {
		return "", "", m.fetchErr
	}
	return m.content, fmt.Sprint(m.version), nil
}

func (m *memoryStore) Put(ctx context.Context, token, content, sha, message string) error {
	if m.putGate != nil {
		select {
		case m.putEntered <- struct{}{}:
		default:
		}
		<-m.putGate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bumpBeforePut > 0 {
		m.bumpBeforePut--
		m.version++
		m.content += "\n\"X1\",\"OKAY\",\"other station\",\"2026-10-19T09:00:00Z\""
	}
	if sha != fmt.Sprint(m.version) {
		return fmt.Errorf("%w: sha %s is stale", remote.ErrConflict, sha)
	}
	m.version++
	m.content = content
	m.puts = append(m.puts, message)
	return nil
}

type memoryJournal struct {
	entries []journal.Entry
}

func (j *memoryJournal) Record(ctx context.Context, entry journal.Entry) (string, error) {
	j.entries = append(j.entries, entry)
	return fmt.Sprint(len(j.entries)), nil
}

func (j *memoryJournal) outcomes() []journal.Outcome {
	var out []journal.Outcome
	for _, e := range j.entries {
		out = append(out, e.Outcome)
	}
	return out
}

type recordingNotifier struct {
	cues   []Cue
	alerts []string
}

func (n *recordingNotifier) Cue(cue Cue)          { n.cues = append(n.cues, cue) }
func (n *recordingNotifier) Alert(message string) { n.alerts = append(n.alerts, message) }

func newTestWriter(store LogStore, retries int) *Writer {
	return NewWriter(store, WriterConfig{
		ConflictRetries: retries,
		Location:        time.UTC,
		Now:             func() time.Time { return testNow },
	})
}

func referenceList(signs ...string) []csvlog.Record {
	var records []csvlog.Record
	for _, s := range signs {
		records = append(records, csvlog.NewRecord(FieldSignNo, s, "Location", "Depot "+s))
	}
	return records
}
