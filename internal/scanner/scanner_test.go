package scanner

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestLineScanner_DeliversOncePerStart(t *testing.T) {
	pr, pw := io.Pipe()
	s := NewLineScanner(pr)

	codes := make(chan string, 4)
	if err := s.Start(context.Background(), func(code string) { codes <- code }); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	if _, err := pw.Write([]byte("  A1 \n")); err != nil {
		t.Fatalf("write error: %v", err)
	}
	select {
	case got := <-codes:
		if got != "A1" {
			t.Fatalf("expected trimmed code A1, got %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for code")
	}

	// paused after the first detection: this line must be dropped
	if _, err := pw.Write([]byte("B2\n")); err != nil {
		t.Fatalf("write error: %v", err)
	}
	// the blank line is only consumed once B2 has been handled
	if _, err := pw.Write([]byte("\n")); err != nil {
		t.Fatalf("write error: %v", err)
	}

	if err := s.Start(context.Background(), func(code string) { codes <- code }); err != nil {
		t.Fatalf("restart error: %v", err)
	}
	if _, err := pw.Write([]byte("C3\n")); err != nil {
		t.Fatalf("write error: %v", err)
	}
	select {
	case got := <-codes:
		if got != "C3" {
			t.Fatalf("expected C3 after restart, got %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for code after restart")
	}

	_ = pw.Close()
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("expected Done to close after input ended")
	}
	if err := s.Start(context.Background(), func(string) {}); !errors.Is(err, ErrCameraUnavailable) {
		t.Fatalf("expected ErrCameraUnavailable after input ended, got %v", err)
	}
}

func TestLineScanner_StartCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewLineScanner(strings.NewReader(""))
	if err := s.Start(ctx, func(string) {}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestChannelScanner_FeedStopsDetection(t *testing.T) {
	s := NewChannelScanner()
	if s.Feed("A1") {
		t.Fatal("expected Feed to fail before Start")
	}

	var got []string
	if err := s.Start(context.Background(), func(code string) { got = append(got, code) }); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if !s.Active() {
		t.Fatal("expected scanner to be active after Start")
	}
	if !s.Feed("A1") {
		t.Fatal("expected Feed to deliver while active")
	}
	if s.Active() {
		t.Fatal("expected scanner to pause after first detection")
	}
	if s.Feed("A1") {
		t.Fatal("expected duplicate feed to be dropped")
	}
	if len(got) != 1 || got[0] != "A1" {
		t.Fatalf("unexpected deliveries %v", got)
	}
}

func TestChannelScanner_StartError(t *testing.T) {
	s := NewChannelScanner()
	s.StartErr = ErrCameraUnavailable
	if err := s.Start(context.Background(), func(string) {}); !errors.Is(err, ErrCameraUnavailable) {
		t.Fatalf("expected ErrCameraUnavailable, got %v", err)
	}
	if s.Starts() != 0 {
		t.Fatalf("expected no successful starts, got %d", s.Starts())
	}
}

func TestValidateSymbologies(t *testing.T) {
	tests := []struct {
		name    string
		input   []Symbology
		wantErr bool
	}{
		{"defaults", DefaultSymbologies, false},
		{"empty", nil, true},
		{"unknown", []Symbology{"qr_reader"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSymbologies(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSymbologies(%v) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for condition")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestLineScanner_ReadLineOnlyGetsLaterLines(t *testing.T) {
	in, inW := io.Pipe()
	s := NewLineScanner(in)

	codes := make(chan string, 2)
	if err := s.Start(context.Background(), func(code string) { codes <- code }); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if _, err := inW.Write([]byte("A1\n")); err != nil {
		t.Fatalf("write error: %v", err)
	}
	if got := <-codes; got != "A1" {
		t.Fatalf("expected A1, got %q", got)
	}

	// nobody is reading answers: both lines must be dropped without blocking
	if _, err := inW.Write([]byte("B2\n")); err != nil {
		t.Fatalf("write error: %v", err)
	}
	if _, err := inW.Write([]byte("\n")); err != nil {
		t.Fatalf("write error: %v", err)
	}

	answers := make(chan string, 1)
	go func() {
		line, err := s.ReadLine(context.Background())
		if err != nil {
			line = "error: " + err.Error()
		}
		answers <- line
	}()
	waitUntil(t, s.Waiting)
	if _, err := inW.Write([]byte("yes\n")); err != nil {
		t.Fatalf("write error: %v", err)
	}
	select {
	case got := <-answers:
		if got != "yes" {
			t.Fatalf("expected answer yes, got %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for answer")
	}
	if s.Waiting() {
		t.Error("expected no pending reader after the answer")
	}

	if err := s.Start(context.Background(), func(code string) { codes <- code }); err != nil {
		t.Fatalf("restart error: %v", err)
	}
	if _, err := inW.Write([]byte("C3\n")); err != nil {
		t.Fatalf("write error: %v", err)
	}
	select {
	case got := <-codes:
		if got != "C3" {
			t.Fatalf("expected C3 after restart, got %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for code after restart")
	}
}

func TestLineScanner_ReadLineEndOfInput(t *testing.T) {
	s := NewLineScanner(strings.NewReader(""))
	if _, err := s.ReadLine(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestLineScanner_ReadLineCancelled(t *testing.T) {
	in, _ := io.Pipe()
	s := NewLineScanner(in)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.ReadLine(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if s.Waiting() {
		t.Error("expected pending reader to be cleared")
	}
}
