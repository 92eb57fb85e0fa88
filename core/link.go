package core

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"fractalink/protocol"
)

// ErrLinkClosed is returned by Link operations after Close
var ErrLinkClosed = errors.New("link closed")

// LinkConfig configures a device-side Link
type LinkConfig struct {
	RxSize int // receive ring capacity
	TxSize int // transmit ring capacity

	// FrameTimeout bounds the wait for the rest of a frame once its first
	// byte arrived; 0 waits forever
	FrameTimeout time.Duration

	// RxReady is notified by the receive side whenever it stores a byte
	RxReady Signal

	// TxSpace is notified by the transmit side whenever it removes a byte
	TxSpace Signal

	// KickTx starts (or re-enables) the transmitter after bytes were queued
	KickTx func()
}

// Link is the device end of the framed channel. Bytes arrive in the receive
// ring from the receive interrupt and leave through the transmit ring, which
// the transmit interrupt drains. The engine only ever sees whole frames.
type Link struct {
	rx, tx       *Ring
	rxReady      Signal
	txSpace      Signal
	kickTx       func()
	frameTimeout time.Duration

	asm    protocol.Assembler
	outBuf [protocol.FrameMax]byte
	closed atomic.Bool
}

// NewLink creates a Link with its two rings
func NewLink(cfg LinkConfig) *Link {
	if cfg.RxSize <= 0 {
		cfg.RxSize = 255
	}
	if cfg.TxSize <= 0 {
		cfg.TxSize = 255
	}
	if cfg.RxReady == nil {
		cfg.RxReady = NewChanSignal()
	}
	if cfg.TxSpace == nil {
		cfg.TxSpace = NewChanSignal()
	}
	if cfg.KickTx == nil {
		cfg.KickTx = func() {}
	}
	return &Link{
		rx:           NewRing(cfg.RxSize),
		tx:           NewRing(cfg.TxSize),
		rxReady:      cfg.RxReady,
		txSpace:      cfg.TxSpace,
		kickTx:       cfg.KickTx,
		frameTimeout: cfg.FrameTimeout,
	}
}

// RX returns the receive ring (producer: receive interrupt)
func (l *Link) RX() *Ring { return l.rx }

// TX returns the transmit ring (consumer: transmit interrupt)
func (l *Link) TX() *Ring { return l.tx }

// Received is called by the receive interrupt for every incoming byte.
// It never blocks; a byte arriving into a full ring is dropped.
func (l *Link) Received(b byte) bool {
	ok := l.rx.Put(b)
	l.rxReady.Notify()
	return ok
}

// Transmit is called by the transmit interrupt to fetch the next byte
func (l *Link) Transmit() (byte, bool) {
	b, ok := l.tx.Get()
	if ok {
		l.txSpace.Notify()
	}
	return b, ok
}

// Pending reports whether received bytes are waiting to be read
func (l *Link) Pending() bool {
	return !l.rx.IsEmpty()
}

// ReadFrame reads one whole frame from the receive ring, waiting for more
// bytes while the ring is empty. If the frame timeout expires mid-frame the
// partial frame is dropped and an error wrapping protocol.ErrTimeout is
// returned. Corrupt frames return an error wrapping protocol.ErrCorruptFrame.
func (l *Link) ReadFrame() (protocol.Message, error) {
	for {
		if l.closed.Load() {
			return nil, ErrLinkClosed
		}

		b, ok := l.rx.Get()
		if !ok {
			if !l.rxReady.Wait(l.frameTimeout) && l.rx.IsEmpty() {
				if dropped := l.asm.Pending(); dropped > 0 {
					l.asm.Reset()
					return nil, fmt.Errorf("%w (%d bytes): %w",
						protocol.ErrPartialFrame, dropped, protocol.ErrTimeout)
				}
				return nil, protocol.ErrTimeout
			}
			continue
		}

		msg, done, err := l.asm.Feed(b)
		if done {
			return msg, err
		}
	}
}

// WriteFrame queues one whole frame on the transmit ring. When the ring is
// full it stalls until the transmitter frees space; queued bytes are never
// overwritten.
func (l *Link) WriteFrame(m protocol.Message) error {
	frame := protocol.AppendFrame(l.outBuf[:0], m)
	for _, b := range frame {
		for !l.tx.Put(b) {
			if l.closed.Load() {
				return ErrLinkClosed
			}
			l.kickTx()
			l.txSpace.Wait(10 * time.Millisecond)
		}
	}
	l.kickTx()
	return nil
}

// Flush waits until the transmitter has drained the transmit ring
func (l *Link) Flush() error {
	for !l.tx.IsEmpty() {
		if l.closed.Load() {
			return ErrLinkClosed
		}
		l.kickTx()
		l.txSpace.Wait(10 * time.Millisecond)
	}
	return nil
}

// Close releases anyone blocked in ReadFrame, WriteFrame or Flush
func (l *Link) Close() {
	l.closed.Store(true)
	l.rxReady.Notify()
	l.txSpace.Notify()
}
