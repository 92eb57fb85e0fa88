package protocol

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// ErrPartialFrame accompanies ErrTimeout when the timeout cut a frame short
var ErrPartialFrame = errors.New("partial frame discarded")

// HostTransport is the host end of the framed channel. It reads whole frames
// from a port whose Read returns a timeout error when the line is quiet, and
// writes whole frames under a lock so concurrent writers never interleave.
type HostTransport struct {
	// Serial I/O
	port io.ReadWriter

	// Read side, owned by the single reader goroutine
	readMutex sync.Mutex
	asm       Assembler
	readBuf   [64]byte
	pending   []byte

	// Write side
	writeMutex sync.Mutex
	writeBuf   [FrameMax]byte

	// Counters
	framesIn  atomic.Uint64
	framesOut atomic.Uint64
	corrupt   atomic.Uint64
	torn      atomic.Uint64

	closed atomic.Bool
}

// TransportStats is a snapshot of the transport counters
type TransportStats struct {
	FramesIn  uint64
	FramesOut uint64
	Corrupt   uint64
	Torn      uint64
}

// NewHostTransport creates a host-side transport over port
func NewHostTransport(port io.ReadWriter) *HostTransport {
	return &HostTransport{port: port}
}

// ReadFrame blocks until a complete frame arrives or the port times out.
//
// On timeout any partial frame is dropped and the error wraps ErrTimeout
// (and ErrPartialFrame if bytes were dropped). Corrupt frames return an error
// wrapping ErrCorruptFrame; reading can simply continue with the next call.
// Failures of the port itself wrap ErrTransport.
func (t *HostTransport) ReadFrame() (Message, error) {
	t.readMutex.Lock()
	defer t.readMutex.Unlock()

	for {
		for len(t.pending) > 0 {
			b := t.pending[0]
			t.pending = t.pending[1:]

			msg, done, err := t.asm.Feed(b)
			if !done {
				continue
			}
			if err != nil {
				t.corrupt.Add(1)
				return nil, err
			}
			t.framesIn.Add(1)
			return msg, nil
		}

		if t.closed.Load() {
			return nil, ErrClosed
		}

		n, err := t.port.Read(t.readBuf[:])
		if n > 0 {
			t.pending = t.readBuf[:n]
			continue
		}
		if err == nil || IsTimeout(err) {
			return nil, t.timeout()
		}
		if t.closed.Load() {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("%w: read: %w", ErrTransport, err)
	}
}

// timeout resets the assembler after the line went quiet
func (t *HostTransport) timeout() error {
	if dropped := t.asm.Pending(); dropped > 0 {
		t.asm.Reset()
		t.torn.Add(1)
		return fmt.Errorf("%w (%d bytes): %w", ErrPartialFrame, dropped, ErrTimeout)
	}
	return ErrTimeout
}

// WriteFrame encodes m and writes the whole frame to the port
func (t *HostTransport) WriteFrame(m Message) error {
	t.writeMutex.Lock()
	defer t.writeMutex.Unlock()

	if t.closed.Load() {
		return ErrClosed
	}

	frame := AppendFrame(t.writeBuf[:0], m)
	for written := 0; written < len(frame); {
		n, err := t.port.Write(frame[written:])
		if err != nil {
			return fmt.Errorf("%w: write %s: %w", ErrTransport, m.Kind(), err)
		}
		if n == 0 {
			return fmt.Errorf("%w: write %s: no progress after %d/%d bytes",
				ErrTransport, m.Kind(), written, len(frame))
		}
		written += n
	}
	t.framesOut.Add(1)
	return nil
}

// Drain reads and discards whatever is already on the line until the first
// timeout, returning the number of bytes thrown away
func (t *HostTransport) Drain() (int, error) {
	t.readMutex.Lock()
	defer t.readMutex.Unlock()

	discarded := len(t.pending) + t.asm.Pending()
	t.pending = nil
	t.asm.Reset()

	for {
		n, err := t.port.Read(t.readBuf[:])
		discarded += n
		if n > 0 {
			continue
		}
		if err == nil || IsTimeout(err) {
			return discarded, nil
		}
		return discarded, fmt.Errorf("%w: drain: %w", ErrTransport, err)
	}
}

// Stats returns a snapshot of the frame counters
func (t *HostTransport) Stats() TransportStats {
	return TransportStats{
		FramesIn:  t.framesIn.Load(),
		FramesOut: t.framesOut.Load(),
		Corrupt:   t.corrupt.Load(),
		Torn:      t.torn.Load(),
	}
}

// Close marks the transport closed and closes the port if it is closable.
// A reader blocked in ReadFrame returns ErrClosed once the port unblocks.
func (t *HostTransport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	if c, ok := t.port.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
