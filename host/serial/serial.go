package serial

import (
	"errors"
	"io"
	"time"
)

// Port represents a serial port interface
// This abstraction allows for different implementations:
// - Native serial (using github.com/tarm/serial)
// - In-memory pipe (for the emulator and tests)
type Port interface {
	io.ReadWriteCloser

	// Flush discards any data buffered but not yet read or sent
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate of the device UART
	Baud int

	// ReadTimeout bounds a single Read (0 = blocking). When it expires
	// Read returns an error for which IsTimeout is true.
	ReadTimeout time.Duration
}

// Link defaults shared with the firmware
const (
	DefaultBaud        = 115200
	DefaultReadTimeout = 500 * time.Millisecond
)

// DefaultConfig returns the configuration the firmware expects
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        DefaultBaud,
		ReadTimeout: DefaultReadTimeout,
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "serial read timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// ErrTimeout is returned by Read when the read timeout expired with no data
var ErrTimeout error = timeoutError{}

// IsTimeout reports whether err is a read timeout
func IsTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
