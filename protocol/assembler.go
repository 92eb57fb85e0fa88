package protocol

import "fmt"

// Assembler accumulates a byte stream into whole frames. The first byte of
// a frame is looked up in the size table; the remaining bytes are collected
// until the frame is complete and then decoded in one go.
type Assembler struct {
	buf  [FrameMax]byte
	n    int
	want int
}

// Feed adds one byte. It returns a decoded message once a frame completes.
// done reports that this byte ended a frame (successfully or not); a corrupt
// frame yields done=true with an error wrapping ErrCorruptFrame. An unknown
// type byte is rejected immediately and not buffered.
func (a *Assembler) Feed(b byte) (msg Message, done bool, err error) {
	if a.n == 0 {
		size, ok := FrameSize(b)
		if !ok {
			return nil, true, fmt.Errorf("%w: unknown message type 0x%02x", ErrCorruptFrame, b)
		}
		a.want = size
	}

	a.buf[a.n] = b
	a.n++
	if a.n < a.want {
		return nil, false, nil
	}

	msg, err = Decode(a.buf[:a.n])
	a.Reset()
	return msg, true, err
}

// Pending returns the number of bytes of a partially received frame
func (a *Assembler) Pending() int {
	return a.n
}

// Reset discards any partially received frame
func (a *Assembler) Reset() {
	a.n = 0
	a.want = 0
}
