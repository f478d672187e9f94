package scanner

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// LineScanner reads codes from a keyboard-wedge barcode scanner, which types
// each decoded code followed by a newline. While paused, a line goes to a
// pending ReadLine call if there is one and is dropped otherwise.
type LineScanner struct {
	reader io.Reader

	once     sync.Once
	done     chan struct{}
	mu       sync.Mutex
	onDecode func(string)
	waiting  chan string
}

func NewLineScanner(reader io.Reader) *LineScanner {
	return &LineScanner{
		reader: reader,
		done:   make(chan struct{}),
	}
}

func (s *LineScanner) Start(ctx context.Context, onDecode func(code string)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.once.Do(func() { go s.read() })

	select {
	case <-s.done:
		return ErrCameraUnavailable
	default:
	}

	s.mu.Lock()
	s.onDecode = onDecode
	s.mu.Unlock()
	return nil
}

func (s *LineScanner) Stop() {
	s.mu.Lock()
	s.onDecode = nil
	s.mu.Unlock()
}

// Done is closed once the underlying input has ended.
func (s *LineScanner) Done() <-chan struct{} {
	return s.done
}

// Active reports whether the scanner is waiting for a code.
func (s *LineScanner) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.onDecode != nil
}

// Waiting reports whether a ReadLine call is waiting for a line.
func (s *LineScanner) Waiting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waiting != nil
}

// ReadLine returns the next line typed while the scanner is paused. It lets an
// operator answer prompts on the same terminal the scanner types into. Lines
// typed before the call are not returned.
func (s *LineScanner) ReadLine(ctx context.Context) (string, error) {
	s.once.Do(func() { go s.read() })

	line := make(chan string, 1)
	s.mu.Lock()
	s.waiting = line
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		if s.waiting == line {
			s.waiting = nil
		}
		s.mu.Unlock()
	}()

	select {
	case l := <-line:
		return l, nil
	case <-s.done:
		select {
		case l := <-line:
			return l, nil
		default:
			return "", io.EOF
		}
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *LineScanner) read() {
	defer close(s.done)

	lines := bufio.NewScanner(s.reader)
	for lines.Scan() {
		line := lines.Text()
		code := strings.TrimSpace(line)

		s.mu.Lock()
		onDecode := s.onDecode
		waiting := s.waiting
		switch {
		case onDecode != nil && code != "":
			s.onDecode = nil
		case onDecode == nil && waiting != nil:
			s.waiting = nil
		}
		s.mu.Unlock()

		switch {
		case onDecode != nil:
			if code != "" {
				onDecode(code)
			}
		case waiting != nil:
			// buffered, never blocks
			waiting <- line
		default:
			slog.Debug("LineScanner: line dropped while paused", "line", line)
		}
	}
	if err := lines.Err(); err != nil {
		slog.Error("LineScanner: input failed", "error", err)
	}
}
