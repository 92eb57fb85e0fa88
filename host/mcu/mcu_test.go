package mcu

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"fractalink/host/events"
	"fractalink/host/serial"
	"fractalink/protocol"
)

func TestReadLoopSkipsBadFrames(t *testing.T) {
	hostEnd, devEnd := serial.Pipe(20 * time.Millisecond)
	m := New(hostEnd, zaptest.NewLogger(t))
	q := events.NewQueue(4)

	done := make(chan error, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { done <- m.ReadLoop(ctx, q) }()

	corrupt := protocol.AppendFrame(nil, protocol.Done{})
	corrupt[len(corrupt)-1] ^= 0xFF
	devEnd.Write(corrupt)
	devEnd.Write([]byte{byte(protocol.KindPixelResult), 1}) // torn by the timeout
	time.Sleep(60 * time.Millisecond)
	devEnd.Write(protocol.AppendFrame(nil, protocol.PixelResult{ChunkID: 2, X: 1, Y: 1, Iterations: 9}))

	e, err := q.Pop()
	if err != nil {
		t.Fatal(err)
	}
	if e.Source != events.SourceDevice || e.Message != (protocol.PixelResult{ChunkID: 2, X: 1, Y: 1, Iterations: 9}) {
		t.Errorf("Unexpected event %v", e)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ReadLoop returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ReadLoop did not stop")
	}

	stats := m.Stats()
	if stats.Corrupt != 1 || stats.Torn != 1 || stats.FramesIn != 1 {
		t.Errorf("Unexpected stats %+v", stats)
	}
	if q.Len() != 0 {
		t.Errorf("Expected no other events, got %d", q.Len())
	}
}

func TestReadLoopReportsLineLoss(t *testing.T) {
	hostEnd, devEnd := serial.Pipe(20 * time.Millisecond)
	m := New(hostEnd, zaptest.NewLogger(t))
	q := events.NewQueue(4)

	devEnd.Close()
	err := m.ReadLoop(context.Background(), q)
	if !errors.Is(err, protocol.ErrTransport) {
		t.Fatalf("Expected transport error, got %v", err)
	}

	e, perr := q.Pop()
	if perr != nil || e.Source != events.SourceShutdown || !errors.Is(e.Err, protocol.ErrTransport) {
		t.Errorf("Expected a shutdown event, got %v, %v", e, perr)
	}
}

func TestReadLoopStopsOnClose(t *testing.T) {
	hostEnd, _ := serial.Pipe(20 * time.Millisecond)
	m := New(hostEnd, zaptest.NewLogger(t))
	q := events.NewQueue(4)

	done := make(chan error, 1)
	go func() { done <- m.ReadLoop(context.Background(), q) }()
	time.Sleep(30 * time.Millisecond)
	m.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected a clean stop, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ReadLoop did not stop")
	}
	if q.Len() != 0 {
		t.Error("Closing the link must not queue a shutdown")
	}
}

func TestWriteFrame(t *testing.T) {
	hostEnd, devEnd := serial.Pipe(time.Second)
	m := New(hostEnd, zaptest.NewLogger(t))

	go m.WriteFrame(protocol.GetVersion{})

	buf := make([]byte, 8)
	n, err := devEnd.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	want := protocol.AppendFrame(nil, protocol.GetVersion{})
	if string(buf[:n]) != string(want) {
		t.Errorf("Expected %x on the line, got %x", want, buf[:n])
	}
}
