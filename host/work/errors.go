package work

import "errors"

var (
	// ErrConfiguration is returned when the grid cannot be split into the
	// configured chunks. The run is refused before any frame is sent.
	ErrConfiguration = errors.New("configuration error")

	// ErrProtocolViolation marks a frame that contradicts the scheduler's
	// state, such as a pixel for a chunk that is not in flight. The frame
	// is dropped and the run continues.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrBusy is reported when the device answered a request with Error
	ErrBusy = errors.New("device rejected request")

	// ErrRunInFlight is returned by operations that need an idle scheduler
	ErrRunInFlight = errors.New("run in progress")
)
