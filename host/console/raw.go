package console

import (
	"errors"
	"os"

	"github.com/mattn/go-isatty"
)

// ErrNotTerminal is returned by EnableRaw when f is not a terminal
var ErrNotTerminal = errors.New("console: not a terminal")

// EnableRaw switches the terminal on f to unbuffered, no-echo input so
// single keys arrive without Enter. Signals (Ctrl-C) keep working. The
// returned function restores the previous mode.
func EnableRaw(f *os.File) (func() error, error) {
	if !isatty.IsTerminal(f.Fd()) {
		return nil, ErrNotTerminal
	}
	return makeRaw(int(f.Fd()))
}
