package protocol

import "errors"

var (
	// ErrCorruptFrame is returned for frames with an unknown type byte, a bad
	// length or a checksum mismatch. Such frames are discarded whole.
	ErrCorruptFrame = errors.New("corrupt frame")

	// ErrTimeout is returned by HostTransport.ReadFrame when the port went
	// quiet; any partially received frame has been discarded
	ErrTimeout = errors.New("read timeout")

	// ErrTransport wraps read/write failures of the underlying byte stream
	ErrTransport = errors.New("transport failure")

	// ErrClosed is returned after the transport has been closed
	ErrClosed = errors.New("transport closed")
)

// timeout is implemented by errors that denote an expired read deadline
// (net.Error, os.ErrDeadlineExceeded, serial.ErrTimeout)
type timeout interface {
	Timeout() bool
}

// IsTimeout reports whether err denotes a read timeout rather than a failure
func IsTimeout(err error) bool {
	if errors.Is(err, ErrTimeout) {
		return true
	}
	var t timeout
	return errors.As(err, &t) && t.Timeout()
}
