//go:build !tinygo

package core

import "sync"

// irqLock stands in for the interrupt mask when the firmware core runs as a
// regular Go program (emulator, tests), where the "interrupt handlers" are
// goroutines. Critical sections must not nest.
var irqLock sync.Mutex

// State is a placeholder for interrupt state on regular Go
type State uintptr

// disableInterrupts enters the critical section shared with the pump goroutines
func disableInterrupts() State {
	irqLock.Lock()
	return 0
}

// restoreInterrupts leaves the critical section
func restoreInterrupts(state State) {
	irqLock.Unlock()
}
