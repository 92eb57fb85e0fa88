package core

import "time"

// DefaultTickPeriod is the liveness blink period while computing
const DefaultTickPeriod = 200 * time.Millisecond

// Indicator is the device's liveness output, typically an LED
type Indicator interface {
	Set(on bool)
}

// IndicatorFunc adapts a function to Indicator
type IndicatorFunc func(on bool)

func (f IndicatorFunc) Set(on bool) { f(on) }

type nopIndicator struct{}

func (nopIndicator) Set(bool) {}

// Heartbeat toggles an Indicator on a fixed period from the timer queue. It
// only reflects liveness; computation never waits for it.
type Heartbeat struct {
	timer     Timer
	indicator Indicator
	period    uint32
	on        bool
	running   bool
	toggles   uint32
}

// NewHeartbeat creates a stopped Heartbeat
func NewHeartbeat(ind Indicator, period time.Duration) *Heartbeat {
	if ind == nil {
		ind = nopIndicator{}
	}
	if period <= 0 {
		period = DefaultTickPeriod
	}
	h := &Heartbeat{
		indicator: ind,
		period:    TimerFromDuration(period),
	}
	h.timer.Handler = h.tick
	return h
}

// Start schedules the first toggle one period from now
func (h *Heartbeat) Start(q *TimerQueue, now uint32) {
	if h.running {
		return
	}
	h.running = true
	h.timer.WakeTime = now + h.period
	q.Schedule(&h.timer)
}

// Stop cancels the ticker and switches the indicator off
func (h *Heartbeat) Stop(q *TimerQueue) {
	q.Cancel(&h.timer)
	h.running = false
	h.on = false
	h.indicator.Set(false)
}

// Running reports whether the ticker is scheduled
func (h *Heartbeat) Running() bool {
	return h.running
}

// Toggles returns how many times the indicator has been toggled
func (h *Heartbeat) Toggles() uint32 {
	return h.toggles
}

func (h *Heartbeat) tick(t *Timer) uint8 {
	h.on = !h.on
	h.toggles++
	h.indicator.Set(h.on)
	t.WakeTime += h.period
	return SF_RESCHEDULE
}
