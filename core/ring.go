package core

// Ring is a circular byte buffer shared between one interrupt-side party and
// the foreground loop. Exactly one side produces and the other consumes.
// Every access to the indices happens inside a short critical section, so
// neither side ever observes a half-updated pointer pair.
type Ring struct {
	buf   []byte
	read  int
	write int
	size  int

	overruns uint32 // bytes refused because the ring was full
}

// NewRing creates a Ring that can hold capacity-1 bytes
func NewRing(capacity int) *Ring {
	return &Ring{
		buf:  make([]byte, capacity),
		size: capacity,
	}
}

// Put appends one byte. It never blocks; false means the ring is full and
// the byte was not stored.
func (r *Ring) Put(b byte) bool {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	nextWrite := (r.write + 1) % r.size
	if nextWrite == r.read {
		r.overruns++
		return false
	}
	r.buf[r.write] = b
	r.write = nextWrite
	return true
}

// Get removes one byte. ok is false when the ring is empty.
func (r *Ring) Get() (b byte, ok bool) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	if r.read == r.write {
		return 0, false
	}
	b = r.buf[r.read]
	r.read = (r.read + 1) % r.size
	return b, true
}

// Available returns the number of bytes available for reading
func (r *Ring) Available() int {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	return r.available()
}

func (r *Ring) available() int {
	if r.write >= r.read {
		return r.write - r.read
	}
	return r.size - r.read + r.write
}

// Free returns the number of bytes available for writing
func (r *Ring) Free() int {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	return r.size - r.available() - 1
}

// IsEmpty returns true if the ring is empty
func (r *Ring) IsEmpty() bool {
	return r.Available() == 0
}

// Overruns returns how many bytes were refused because the ring was full
func (r *Ring) Overruns() uint32 {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	return r.overruns
}

// Reset clears the ring
func (r *Ring) Reset() {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	r.read = 0
	r.write = 0
}
