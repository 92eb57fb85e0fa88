package core

import (
	"errors"
	"testing"
	"time"

	"fractalink/protocol"
)

type fakeClock struct {
	now uint32
}

func (c *fakeClock) read() uint32 { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now += TimerFromDuration(d) }

func newTestDevice(ind Indicator) (*Device, *Link, *fakeClock) {
	clock := &fakeClock{now: 1000}
	link := NewLink(LinkConfig{FrameTimeout: 10 * time.Millisecond})
	d := NewDevice(DeviceConfig{
		Link:      link,
		Indicator: ind,
		Clock:     clock.read,
	})
	return d, link, clock
}

// pollAll runs foreground cycles until the device has nothing left to do
func pollAll(t *testing.T, d *Device) {
	t.Helper()
	for i := 0; i < 10000; i++ {
		worked, err := d.Poll()
		if err != nil {
			t.Fatalf("Poll failed: %v", err)
		}
		if !worked {
			return
		}
	}
	t.Fatal("Device never went idle")
}

func kinds(msgs []protocol.Message) map[protocol.Kind]int {
	counts := make(map[protocol.Kind]int)
	for _, m := range msgs {
		counts[m.Kind()]++
	}
	return counts
}

func TestDeviceBoot(t *testing.T) {
	d, link, _ := newTestDevice(nil)

	if err := d.Boot(); err != nil {
		t.Fatalf("Boot failed: %v", err)
	}
	out := drain(t, link)
	if len(out) != 1 || out[0].Kind() != protocol.KindStartup {
		t.Fatalf("Expected a Startup frame, got %v", out)
	}
	if got := out[0].(protocol.Startup).Text(); got != Greeting {
		t.Errorf("Expected greeting %q, got %q", Greeting, got)
	}
}

func TestDeviceComputesChunk(t *testing.T) {
	d, link, _ := newTestDevice(nil)

	feed(link, protocol.Encode(testParams))
	feed(link, protocol.Encode(protocol.ChunkDescriptor{ChunkID: 0, OriginRe: -1.6, OriginIm: 1.1, Width: 4, Height: 4}))
	pollAll(t, d)

	out := drain(t, link)
	if len(out) != 19 {
		t.Fatalf("Expected 19 frames, got %d: %v", len(out), kinds(out))
	}
	if out[0].Kind() != protocol.KindOk || out[1].Kind() != protocol.KindOk {
		t.Errorf("Expected Ok for parameters and chunk, got %v %v", out[0].Kind(), out[1].Kind())
	}
	for i, m := range out[2:18] {
		pr, ok := m.(protocol.PixelResult)
		if !ok {
			t.Fatalf("Frame %d is %v, want pixel result", i+2, m.Kind())
		}
		if int(pr.X) != i%4 || int(pr.Y) != i/4 {
			t.Errorf("Pixel %d at (%d,%d)", i, pr.X, pr.Y)
		}
	}
	if out[18].Kind() != protocol.KindDone {
		t.Errorf("Expected Done last, got %v", out[18].Kind())
	}

	if d.State().Phase != PhaseIdle {
		t.Errorf("Expected idle, got %v", d.State().Phase)
	}
	stats := d.Stats()
	if stats.FramesIn != 2 || stats.FramesOut != 19 || stats.Pixels != 16 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestDeviceInboundBeforeCompute(t *testing.T) {
	d, link, _ := newTestDevice(nil)

	feed(link, protocol.Encode(testParams))
	feed(link, protocol.Encode(protocol.ChunkDescriptor{ChunkID: 0, Width: 4, Height: 4}))
	d.Poll()
	d.Poll()
	d.Poll() // first pixel

	// Abort arrives mid-chunk and is served before the next pixel
	feed(link, protocol.Encode(protocol.Abort{}))
	d.Poll()

	out := drain(t, link)
	last := out[len(out)-1]
	if last.Kind() != protocol.KindOk {
		t.Fatalf("Expected Ok for the abort, got %v", last.Kind())
	}
	if kinds(out)[protocol.KindPixelResult] != 1 {
		t.Errorf("Expected exactly one pixel before the abort, got %v", kinds(out))
	}
	if d.State().Phase != PhaseIdle {
		t.Errorf("Expected idle after host abort, got %v", d.State().Phase)
	}

	pollAll(t, d)
	if out := drain(t, link); len(out) != 0 {
		t.Errorf("No frames may follow an acknowledged abort, got %v", kinds(out))
	}
}

func TestDeviceLocalAbort(t *testing.T) {
	d, link, _ := newTestDevice(nil)

	feed(link, protocol.Encode(testParams))
	feed(link, protocol.Encode(protocol.ChunkDescriptor{ChunkID: 5, Width: 8, Height: 8}))
	d.Poll()
	d.Poll()
	d.Poll()
	d.Poll()

	d.RequestAbort()
	pollAll(t, d)

	out := drain(t, link)
	counts := kinds(out)
	if counts[protocol.KindAbort] != 1 {
		t.Fatalf("Expected one Abort frame, got %v", counts)
	}
	if out[len(out)-1].Kind() != protocol.KindAbort {
		t.Errorf("Abort must be the last frame, got %v", out[len(out)-1].Kind())
	}
	if counts[protocol.KindPixelResult] != 2 || counts[protocol.KindDone] != 0 {
		t.Errorf("Unexpected frames around local abort: %v", counts)
	}
}

func TestDeviceCorruptFrame(t *testing.T) {
	d, link, _ := newTestDevice(nil)

	frame := protocol.Encode(protocol.GetVersion{})
	frame[1]++
	feed(link, frame)

	_, err := d.Poll()
	if !errors.Is(err, protocol.ErrCorruptFrame) {
		t.Fatalf("Expected corrupt frame error, got %v", err)
	}

	out := drain(t, link)
	if len(out) != 1 || out[0].Kind() != protocol.KindError {
		t.Errorf("Expected an Error reply, got %v", out)
	}
	if d.Stats().Corrupt != 1 {
		t.Errorf("Expected one corrupt frame counted, got %d", d.Stats().Corrupt)
	}

	// The device keeps serving afterwards
	feed(link, protocol.Encode(protocol.GetVersion{}))
	pollAll(t, d)
	if out := drain(t, link); len(out) != 1 || out[0].Kind() != protocol.KindVersion {
		t.Errorf("Expected a Version reply, got %v", out)
	}
}

func TestDeviceTornFrameNotAnswered(t *testing.T) {
	d, link, _ := newTestDevice(nil)

	feed(link, protocol.Encode(testParams)[:7])
	_, err := d.Poll()
	if !errors.Is(err, protocol.ErrTimeout) {
		t.Fatalf("Expected timeout, got %v", err)
	}
	if out := drain(t, link); len(out) != 0 {
		t.Errorf("A torn frame must not be answered, got %v", out)
	}
}

func TestDeviceHeartbeat(t *testing.T) {
	var states []bool
	ind := IndicatorFunc(func(on bool) { states = append(states, on) })
	d, link, clock := newTestDevice(ind)

	feed(link, protocol.Encode(testParams))
	feed(link, protocol.Encode(protocol.ChunkDescriptor{Width: 2, Height: 2}))
	d.Poll()
	d.Poll()

	if !d.Heartbeat().Running() {
		t.Fatal("Heartbeat should run while computing")
	}

	// Two periods pass between pixels
	for i := 0; i < 2; i++ {
		clock.advance(DefaultTickPeriod)
		d.Poll()
	}
	if d.Heartbeat().Toggles() != 2 {
		t.Errorf("Expected 2 toggles, got %d", d.Heartbeat().Toggles())
	}

	pollAll(t, d)
	if d.Heartbeat().Running() {
		t.Error("Heartbeat should stop once the chunk is done")
	}
	if len(states) == 0 || states[len(states)-1] {
		t.Errorf("Indicator should end off, got %v", states)
	}
	drain(t, link)
}

func TestDeviceRun(t *testing.T) {
	link := NewLink(LinkConfig{FrameTimeout: 50 * time.Millisecond})
	d := NewDevice(DeviceConfig{Link: link})

	errc := make(chan error, 1)
	go func() { errc <- d.Run() }()

	feed(link, protocol.Encode(testParams))
	feed(link, protocol.Encode(protocol.ChunkDescriptor{ChunkID: 9, Width: 4, Height: 4}))

	var asm protocol.Assembler
	var got []protocol.Message
	deadline := time.After(2 * time.Second)
	for len(got) == 0 || got[len(got)-1].Kind() != protocol.KindDone {
		select {
		case <-deadline:
			t.Fatalf("Timed out after %v", kinds(got))
		default:
		}
		b, ok := link.Transmit()
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}
		if msg, done, _ := asm.Feed(b); done {
			got = append(got, msg)
		}
	}
	if kinds(got)[protocol.KindPixelResult] != 16 {
		t.Errorf("Expected 16 pixels, got %v", kinds(got))
	}

	d.Stop()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
}
