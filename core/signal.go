package core

import (
	"sync/atomic"
	"time"
)

// Signal wakes a waiting foreground loop. Notify never blocks and may be
// called from interrupt context. A notification sent while nobody waits is
// remembered, so a waiter cannot miss a wake-up that raced its Wait call.
type Signal interface {
	// Notify wakes the waiter
	Notify()

	// Wait blocks until notified or until timeout elapses; timeout <= 0
	// waits indefinitely. It returns false on timeout.
	Wait(timeout time.Duration) bool
}

// ChanSignal implements Signal with a one-slot channel
type ChanSignal struct {
	ch chan struct{}
}

// NewChanSignal creates a ChanSignal
func NewChanSignal() *ChanSignal {
	return &ChanSignal{ch: make(chan struct{}, 1)}
}

func (s *ChanSignal) Notify() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

func (s *ChanSignal) Wait(timeout time.Duration) bool {
	if timeout <= 0 {
		<-s.ch
		return true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-s.ch:
		return true
	case <-timer.C:
		return false
	}
}

// PollSignal implements Signal with an atomic flag and short sleeps. It is
// for targets where channel operations are not allowed in interrupt handlers.
type PollSignal struct {
	flag     atomic.Bool
	Interval time.Duration
}

func (s *PollSignal) Notify() {
	s.flag.Store(true)
}

func (s *PollSignal) Wait(timeout time.Duration) bool {
	interval := s.Interval
	if interval <= 0 {
		interval = 50 * time.Microsecond
	}
	deadline := time.Now().Add(timeout)
	for !s.flag.Swap(false) {
		if timeout > 0 && !time.Now().Before(deadline) {
			return false
		}
		time.Sleep(interval)
	}
	return true
}
