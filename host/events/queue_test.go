package events

import (
	"errors"
	"sync"
	"testing"
	"time"

	"fractalink/protocol"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue(4)

	q.Push(FromUser(Command{Kind: CmdStart}))
	q.Push(FromDevice(protocol.Ok{}))
	q.Push(Shutdown(nil))

	want := []Source{SourceUser, SourceDevice, SourceShutdown}
	for i, src := range want {
		e, err := q.Pop()
		if err != nil {
			t.Fatalf("Pop %d failed: %v", i, err)
		}
		if e.Source != src {
			t.Errorf("Pop %d: expected %v, got %v", i, src, e.Source)
		}
	}
	if q.Len() != 0 {
		t.Errorf("Expected empty queue, got %d", q.Len())
	}
}

func TestQueueDefaultCapacity(t *testing.T) {
	if q := NewQueue(0); q.Cap() != DefaultCapacity {
		t.Errorf("Expected capacity %d, got %d", DefaultCapacity, q.Cap())
	}
}

func TestQueuePushBlocksWhileFull(t *testing.T) {
	q := NewQueue(2)
	q.Push(FromUser(Command{Kind: CmdStart}))
	q.Push(FromUser(Command{Kind: CmdAbort}))

	if ok, err := q.TryPush(FromUser(Command{Kind: CmdQuit})); ok || err != nil {
		t.Fatalf("TryPush on a full queue = %v, %v", ok, err)
	}

	pushed := make(chan error, 1)
	go func() {
		pushed <- q.Push(FromUser(Command{Kind: CmdQuit}))
	}()

	select {
	case <-pushed:
		t.Fatal("Push returned while the queue was full")
	case <-time.After(20 * time.Millisecond):
	}

	if e, _ := q.Pop(); e.Command.Kind != CmdStart {
		t.Errorf("Expected start first, got %v", e)
	}
	select {
	case err := <-pushed:
		if err != nil {
			t.Errorf("Push failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Push stayed blocked after Pop freed a slot")
	}

	if e, _ := q.Pop(); e.Command.Kind != CmdAbort {
		t.Errorf("Expected abort second, got %v", e)
	}
	if e, _ := q.Pop(); e.Command.Kind != CmdQuit {
		t.Errorf("Expected quit last, got %v", e)
	}
}

func TestQueuePopBlocksWhileEmpty(t *testing.T) {
	q := NewQueue(2)

	got := make(chan Event, 1)
	go func() {
		e, _ := q.Pop()
		got <- e
	}()

	select {
	case <-got:
		t.Fatal("Pop returned from an empty queue")
	case <-time.After(20 * time.Millisecond):
	}

	q.Push(FromDevice(protocol.Done{}))
	select {
	case e := <-got:
		if e.Message.Kind() != protocol.KindDone {
			t.Errorf("Expected Done, got %v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop stayed blocked after Push")
	}
}

func TestQueueClose(t *testing.T) {
	q := NewQueue(1)
	q.Push(FromUser(Command{Kind: CmdStart}))

	blocked := make(chan error, 1)
	go func() {
		blocked <- q.Push(FromUser(Command{Kind: CmdAbort}))
	}()
	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case err := <-blocked:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("Blocked Push after Close returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not release the blocked producer")
	}

	// Queued events survive Close
	e, err := q.Pop()
	if err != nil || e.Command.Kind != CmdStart {
		t.Errorf("Expected queued start after Close, got %v, %v", e, err)
	}
	if _, err := q.Pop(); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed from an empty closed queue, got %v", err)
	}
	if err := q.Push(Shutdown(nil)); !errors.Is(err, ErrClosed) {
		t.Errorf("Push after Close returned %v", err)
	}
}

func TestQueueRejectsEmptyDeviceEvent(t *testing.T) {
	q := NewQueue(1)
	if err := q.Push(Event{Source: SourceDevice}); !errors.Is(err, ErrAllocation) {
		t.Errorf("Expected ErrAllocation, got %v", err)
	}
}

func TestQueueDrain(t *testing.T) {
	q := NewQueue(4)
	q.Push(FromDevice(protocol.PixelResult{X: 1}))
	q.Push(FromDevice(protocol.PixelResult{X: 2}))

	left := q.Drain()
	if len(left) != 2 || left[1].Message.(protocol.PixelResult).X != 2 {
		t.Errorf("Unexpected drained events %v", left)
	}
	if q.Len() != 0 {
		t.Error("Drain should empty the queue")
	}
}

func TestQueueManyProducers(t *testing.T) {
	q := NewQueue(3)
	const producers, perProducer = 4, 200

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(FromDevice(protocol.PixelResult{ChunkID: uint8(p), X: uint8(i)}))
			}
		}(p)
	}

	last := make([]int, producers)
	for i := range last {
		last[i] = -1
	}
	for n := 0; n < producers*perProducer; n++ {
		e, err := q.Pop()
		if err != nil {
			t.Fatalf("Pop failed: %v", err)
		}
		pr := e.Message.(protocol.PixelResult)
		if int(pr.X) <= last[pr.ChunkID] {
			t.Fatalf("Producer %d out of order: %d after %d", pr.ChunkID, pr.X, last[pr.ChunkID])
		}
		last[pr.ChunkID] = int(pr.X)
	}
	wg.Wait()

	if s := q.Stats(); s.Pushed != producers*perProducer || s.Popped != s.Pushed {
		t.Errorf("Unexpected stats %+v", s)
	}
}

func TestEventString(t *testing.T) {
	tests := []struct {
		e    Event
		want string
	}{
		{FromDevice(protocol.Done{}), "device:done"},
		{FromUser(Command{Kind: CmdStart}), "user:start"},
		{FromUser(Command{Kind: CmdSet, Key: "iter", Value: "80"}), "user:set iter=80"},
		{Shutdown(nil), "shutdown"},
		{Shutdown(errors.New("boom")), "shutdown:boom"},
	}
	for _, tt := range tests {
		if got := tt.e.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
