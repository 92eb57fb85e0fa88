package core

import "time"

// Timer ticks are microseconds
const (
	TimerFreq = 1000000
)

// Clock returns the current time in timer ticks
type Clock func() uint32

var bootTime = time.Now()

// MonotonicClock returns microseconds since boot, wrapping every ~71 minutes
func MonotonicClock() uint32 {
	return uint32(time.Since(bootTime) / time.Microsecond)
}

// TimerFromDuration converts a duration to timer ticks
func TimerFromDuration(d time.Duration) uint32 {
	return uint32(d / (time.Second / TimerFreq))
}

// TimerToDuration converts timer ticks to a duration
func TimerToDuration(ticks uint32) time.Duration {
	return time.Duration(ticks) * (time.Second / TimerFreq)
}
