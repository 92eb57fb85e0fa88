// Package mcu is the host's connection to the fractal device: it owns the
// serial port and the framed transport, and runs the device-frame reader.
package mcu

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"fractalink/host/events"
	"fractalink/host/serial"
	"fractalink/protocol"
)

// MCU represents a connection to the fractal device
type MCU struct {
	// Transport layer
	transport *protocol.HostTransport

	// Serial port
	port serial.Port

	log *zap.Logger
}

// New wraps an already open port
func New(port serial.Port, log *zap.Logger) *MCU {
	if log == nil {
		log = zap.NewNop()
	}
	return &MCU{
		transport: protocol.NewHostTransport(port),
		port:      port,
		log:       log,
	}
}

// Connect opens the serial device described by cfg
func Connect(cfg *serial.Config, log *zap.Logger) (*MCU, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}
	m := New(port, log)
	m.log.Info("serial port open",
		zap.String("device", cfg.Device),
		zap.Int("baud", cfg.Baud),
		zap.Duration("read_timeout", cfg.ReadTimeout))
	return m, nil
}

// Drain discards whatever the device sent before the host was listening
func (m *MCU) Drain() error {
	if err := m.port.Flush(); err != nil {
		m.log.Debug("flush failed", zap.Error(err))
	}
	n, err := m.transport.Drain()
	if err != nil {
		return err
	}
	if n > 0 {
		m.log.Info("stale input discarded", zap.Int("bytes", n))
	}
	return nil
}

// WriteFrame sends one frame to the device
func (m *MCU) WriteFrame(msg protocol.Message) error {
	if err := m.transport.WriteFrame(msg); err != nil {
		return err
	}
	m.log.Debug("frame out", zap.Stringer("kind", msg.Kind()))
	return nil
}

// ReadLoop is the device-frame reader. It pushes every valid frame to q
// until ctx is done, the transport closes or fails, or the queue closes.
// Read timeouts and corrupt frames are reported and reading continues; a
// transport failure is pushed as a shutdown event and returned.
func (m *MCU) ReadLoop(ctx context.Context, q *events.Queue) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		msg, err := m.transport.ReadFrame()
		switch {
		case err == nil:
			if msg.Kind() != protocol.KindPixelResult {
				m.log.Debug("frame in", zap.Stringer("kind", msg.Kind()))
			}
			if err := q.Push(events.FromDevice(msg)); err != nil {
				if errors.Is(err, events.ErrClosed) {
					return nil
				}
				m.log.Error("frame lost", zap.Error(err))
				q.Push(events.Shutdown(err))
				return err
			}

		case errors.Is(err, protocol.ErrPartialFrame):
			m.log.Warn("torn frame discarded", zap.Error(err))

		case protocol.IsTimeout(err):
			// quiet line

		case errors.Is(err, protocol.ErrCorruptFrame):
			m.log.Warn("corrupt frame discarded", zap.Error(err))

		case errors.Is(err, protocol.ErrClosed):
			return nil

		default:
			if ctx.Err() != nil {
				return nil
			}
			m.log.Error("device link failed", zap.Error(err))
			q.Push(events.Shutdown(err))
			return err
		}
	}
}

// Stats returns the transport counters
func (m *MCU) Stats() protocol.TransportStats {
	return m.transport.Stats()
}

// Close closes the connection to the device
func (m *MCU) Close() error {
	return m.transport.Close()
}
