package inspection

import (
	"bytes"
	"context"
	"errors"
	"io"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jo-hoe/signtracker/internal/scanner"
)

// queueScanner delivers one queued code per Start and reports Done once empty.
type queueScanner struct {
	codes []string
	done  chan struct{}
}

func newQueueScanner(codes ...string) *queueScanner {
	return &queueScanner{codes: codes, done: make(chan struct{})}
}

func (q *queueScanner) Start(ctx context.Context, onDecode func(code string)) error {
	if len(q.codes) == 0 {
		select {
		case <-q.done:
		default:
			close(q.done)
		}
		return nil
	}
	code := q.codes[0]
	q.codes = q.codes[1:]
	onDecode(code)
	return nil
}

func (q *queueScanner) Stop() {}

func (q *queueScanner) Done() <-chan struct{} { return q.done }

// scriptedDialog answers prompts from a fixed list.
type scriptedDialog struct {
	decisions []Decision
	prompts   []Prompt
}

func (d *scriptedDialog) Ask(ctx context.Context, prompt Prompt) (Decision, error) {
	d.prompts = append(d.prompts, prompt)
	if len(d.decisions) == 0 {
		return Decision{}, errors.New("no scripted decision left")
	}
	next := d.decisions[0]
	d.decisions = d.decisions[1:]
	return next, nil
}

func TestStation_Run(t *testing.T) {
	store := &memoryStore{}
	wf, _ := newTestWorkflow(t, staticLoader{reference: referenceList("A1", "B2")}, store, DuplicateFlag)
	ctx := context.Background()
	s, err := wf.StartSession(ctx, "token")
	if err != nil {
		t.Fatalf("StartSession error: %v", err)
	}

	sc := newQueueScanner("A1", "Z9", "B2")
	dialog := &scriptedDialog{decisions: []Decision{
		{Confirmed: true, Comment: "fine"},
		{Confirmed: false},
	}}
	notifier := &recordingNotifier{}

	err = NewStation(wf, sc, dialog, notifier).Run(ctx, s)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected run to end with io.EOF, got %v", err)
	}

	if len(s.Log) != 1 || s.Log[0].SignNo != "A1" || s.Log[0].Comments != "fine" {
		t.Errorf("unexpected log %+v", s.Log)
	}
	if len(dialog.prompts) != 2 {
		t.Fatalf("expected 2 prompts, got %d", len(dialog.prompts))
	}

	wantCues := []Cue{CueDetected, CueSuccess, CueDetected, CueError, CueDetected}
	if !reflect.DeepEqual(notifier.cues, wantCues) {
		t.Errorf("cues = %v, want %v", notifier.cues, wantCues)
	}
	wantAlerts := []string{LoggedMessage("A1"), NotFoundMessage("Z9")}
	if !reflect.DeepEqual(notifier.alerts, wantAlerts) {
		t.Errorf("alerts = %v, want %v", notifier.alerts, wantAlerts)
	}
}

func TestStation_PersistFailureResumes(t *testing.T) {
	store := &memoryStore{bumpBeforePut: 1}
	wf, _ := newTestWorkflow(t, staticLoader{reference: referenceList("A1")}, store, DuplicateFlag)
	ctx := context.Background()
	s, _ := wf.StartSession(ctx, "token")

	sc := newQueueScanner("A1", "A1")
	dialog := &scriptedDialog{decisions: []Decision{{Confirmed: true}, {Confirmed: true}}}
	notifier := &recordingNotifier{}

	if err := NewStation(wf, sc, dialog, notifier).Run(ctx, s); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
	wantAlerts := []string{MessagePersistFailed, LoggedMessage("A1")}
	if !reflect.DeepEqual(notifier.alerts, wantAlerts) {
		t.Errorf("alerts = %v, want %v", notifier.alerts, wantAlerts)
	}
	if len(s.Log) != 2 {
		t.Errorf("expected both attempts in the local log, got %d", len(s.Log))
	}
}

func TestStation_ScannerUnavailable(t *testing.T) {
	wf, _ := newTestWorkflow(t, staticLoader{reference: referenceList("A1")}, &memoryStore{}, DuplicateFlag)
	s, _ := wf.StartSession(context.Background(), "token")

	sc := scanner.NewChannelScanner()
	sc.StartErr = scanner.ErrCameraUnavailable
	notifier := &recordingNotifier{}

	err := NewStation(wf, sc, &scriptedDialog{}, notifier).Run(context.Background(), s)
	if !errors.Is(err, scanner.ErrCameraUnavailable) {
		t.Fatalf("expected ErrCameraUnavailable, got %v", err)
	}
	if len(notifier.alerts) != 1 {
		t.Errorf("expected one warning, got %v", notifier.alerts)
	}
}

func TestStation_StopsOnContextCancel(t *testing.T) {
	wf, _ := newTestWorkflow(t, staticLoader{reference: referenceList("A1")}, &memoryStore{}, DuplicateFlag)
	s, _ := wf.StartSession(context.Background(), "token")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	sc := scanner.NewChannelScanner()
	err := NewStation(wf, sc, &scriptedDialog{}, &recordingNotifier{}).Run(ctx, s)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	if sc.Active() {
		t.Error("expected scanner to be stopped after Run returns")
	}
}

func TestTerminalDialog(t *testing.T) {
	prompt := Prompt{SignNo: "A1", Message: MessageFirstScan}

	tests := []struct {
		name  string
		input string
		want  Decision
	}{
		{"default confirms", "\nlooks good\n", Decision{Confirmed: true, Comment: "looks good"}},
		{"explicit yes", "y\n\n", Decision{Confirmed: true}},
		{"no cancels", "n\n", Decision{Confirmed: false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			d := NewTerminalDialog(strings.NewReader(tt.input), &out)
			got, err := d.Ask(context.Background(), prompt)
			if err != nil {
				t.Fatalf("Ask error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Ask = %+v, want %+v", got, tt.want)
			}
			if !strings.Contains(out.String(), "Sign A1") {
				t.Errorf("expected prompt title in output, got %q", out.String())
			}
		})
	}
}

func TestTerminalDialog_EndOfInput(t *testing.T) {
	d := NewTerminalDialog(strings.NewReader(""), io.Discard)
	if _, err := d.Ask(context.Background(), Prompt{SignNo: "A1"}); err == nil {
		t.Fatal("expected error when input is exhausted")
	}
}

// syncBuffer is a bytes.Buffer safe to read while the station writes to it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting until %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestStation_SharedTerminalDropsLinesDuringPersist(t *testing.T) {
	store := &memoryStore{putGate: make(chan struct{}), putEntered: make(chan struct{}, 1)}
	wf, _ := newTestWorkflow(t, staticLoader{reference: referenceList("A1", "B2")}, store, DuplicateFlag)
	ctx := context.Background()
	s, err := wf.StartSession(ctx, "token")
	if err != nil {
		t.Fatalf("StartSession error: %v", err)
	}

	in, inW := io.Pipe()
	lines := scanner.NewLineScanner(in)
	out := &syncBuffer{}
	notifier := &recordingNotifier{}
	station := NewStation(wf, lines, NewLineDialog(lines, out), notifier)

	result := make(chan error, 1)
	go func() { result <- station.Run(ctx, s) }()

	write := func(text string) {
		t.Helper()
		if _, err := inW.Write([]byte(text)); err != nil {
			t.Fatalf("write error: %v", err)
		}
	}
	asking := func(label string, n int) func() bool {
		return func() bool { return strings.Count(out.String(), label) == n && lines.Waiting() }
	}

	waitUntil(t, "scanner started", lines.Active)
	write("A1\n")
	waitUntil(t, "first confirmation", asking("Confirm?", 1))
	write("\n")
	waitUntil(t, "first comment", asking("Comment (optional):", 1))
	write("fine\n")

	select {
	case <-store.putEntered:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the log write")
	}
	// typed while the log is written: no scanner and no dialog is listening
	write("B2\n")
	write("\n")
	close(store.putGate)

	waitUntil(t, "scanner restarted", lines.Active)
	write("B2\n")
	waitUntil(t, "second confirmation", asking("Confirm?", 2))
	write("n\n")
	waitUntil(t, "scanner restarted after cancel", lines.Active)
	_ = inW.Close()

	select {
	case err := <-result:
		if !errors.Is(err, io.EOF) {
			t.Fatalf("expected run to end with io.EOF, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("station did not stop after input ended")
	}

	if len(s.Log) != 1 || s.Log[0].SignNo != "A1" || s.Log[0].Comments != "fine" {
		t.Errorf("unexpected log %+v", s.Log)
	}
	if !strings.Contains(out.String(), "Sign B2") {
		t.Errorf("expected a prompt for B2, got %q", out.String())
	}
	wantAlerts := []string{LoggedMessage("A1")}
	if !reflect.DeepEqual(notifier.alerts, wantAlerts) {
		t.Errorf("alerts = %v, want %v", notifier.alerts, wantAlerts)
	}
}
