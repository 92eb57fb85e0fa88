//go:build !linux

package console

import "errors"

func makeRaw(int) (func() error, error) {
	return nil, errors.New("console: raw mode not supported on this platform")
}
