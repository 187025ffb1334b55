package delay

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrCancelled = errors.New("delay cancelled")

// Signal is a single-shot, level-triggered cancellation flag. Once set it
// stays set until Clear is called; any number of goroutines may wait on it.
type Signal struct {
	mu  sync.Mutex
	ch  chan struct{}
	set bool
}

func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{})}
}

func (s *Signal) Set() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.set {
		return
	}
	s.set = true
	close(s.ch)
}

// Clear re-arms the signal. Waiters that already observed the set state are
// not affected.
func (s *Signal) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set {
		return
	}
	s.set = false
	s.ch = make(chan struct{})
}

func (s *Signal) IsSet() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set
}

// Done returns a channel closed when the signal is set. The channel belongs to
// the current arming; after Clear a new one is returned.
func (s *Signal) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch
}

// SetAfter sets the signal once d has elapsed. The returned func stops the
// pending set and reports whether it did so before it fired.
func (s *Signal) SetAfter(d time.Duration) (stop func() bool) {
	t := time.AfterFunc(d, s.Set)
	return t.Stop
}

// Delay waits for d to elapse. It returns ErrCancelled if sig is set first,
// including when sig is already set on entry, and ctx.Err() if ctx ends first.
// A nil sig only races the timer against ctx.
func Delay(ctx context.Context, d time.Duration, sig *Signal) error {
	var cancelled <-chan struct{}
	if sig != nil {
		cancelled = sig.Done()
		select {
		case <-cancelled:
			return ErrCancelled
		default:
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-cancelled:
		return ErrCancelled
	case <-ctx.Done():
		return ctx.Err()
	}
}
