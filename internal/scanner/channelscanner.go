package scanner

import (
	"context"
	"sync"
)

// ChannelScanner is driven programmatically through Feed. It is used where codes
// arrive from somewhere other than a local device, and in tests.
type ChannelScanner struct {
	// StartErr, when set, is returned by every Start call.
	StartErr error

	mu       sync.Mutex
	onDecode func(string)
	starts   int
}

func NewChannelScanner() *ChannelScanner {
	return &ChannelScanner{}
}

func (s *ChannelScanner) Start(ctx context.Context, onDecode func(code string)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.StartErr != nil {
		return s.StartErr
	}
	s.mu.Lock()
	s.onDecode = onDecode
	s.starts++
	s.mu.Unlock()
	return nil
}

func (s *ChannelScanner) Stop() {
	s.mu.Lock()
	s.onDecode = nil
	s.mu.Unlock()
}

// Feed delivers a code. It reports false when the scanner is not running.
func (s *ChannelScanner) Feed(code string) bool {
	s.mu.Lock()
	onDecode := s.onDecode
	s.onDecode = nil
	s.mu.Unlock()

	if onDecode == nil {
		return false
	}
	onDecode(code)
	return true
}

// Active reports whether the scanner is currently detecting.
func (s *ChannelScanner) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.onDecode != nil
}

// Starts returns how many times Start succeeded.
func (s *ChannelScanner) Starts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts
}
