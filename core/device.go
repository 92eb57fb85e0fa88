package core

import (
	"errors"
	"sync/atomic"
	"time"

	"fractalink/protocol"
)

// DeviceConfig wires a Device to its board
type DeviceConfig struct {
	Link      *Link
	Kernel    Kernel
	Version   protocol.Version
	Greeting  string
	Indicator Indicator

	// TickPeriod is the liveness blink period (DefaultTickPeriod if zero)
	TickPeriod time.Duration

	// Wake is notified by every interrupt that may give the foreground work
	// (received byte, abort button). It should be the Link's RxReady signal.
	Wake Signal

	// Clock supplies timer ticks (MonotonicClock if nil)
	Clock Clock

	// Debug receives diagnostic lines; nil discards them
	Debug DebugWriter
}

// DeviceStats counts foreground activity
type DeviceStats struct {
	FramesIn  uint32
	FramesOut uint32
	Pixels    uint32
	Rejected  uint32
	Corrupt   uint32
}

// Device is the firmware foreground loop: it reads frames from the Link,
// runs them through the Engine, computes one pixel per cycle while a chunk
// is open and idles only when there is nothing to read and nothing to compute.
type Device struct {
	link      *Link
	engine    Engine
	greeting  string
	wake      Signal
	clock     Clock
	debug     DebugWriter
	timers    TimerQueue
	heartbeat *Heartbeat
	trace     Trace

	state DeviceState

	abortRequest atomic.Bool
	stopped      atomic.Bool

	framesIn  atomic.Uint32
	framesOut atomic.Uint32
	pixels    atomic.Uint32
	rejected  atomic.Uint32
	corrupt   atomic.Uint32
}

// NewDevice creates a Device in the Idle state
func NewDevice(cfg DeviceConfig) *Device {
	if cfg.Kernel == nil {
		cfg.Kernel = JuliaKernel{}
	}
	if cfg.Version == (protocol.Version{}) {
		cfg.Version = FirmwareVersion()
	}
	if cfg.Greeting == "" {
		cfg.Greeting = Greeting
	}
	if cfg.Wake == nil {
		cfg.Wake = cfg.Link.rxReady
	}
	if cfg.Clock == nil {
		cfg.Clock = MonotonicClock
	}
	if cfg.Debug == nil {
		cfg.Debug = func(string) {}
	}
	return &Device{
		link:      cfg.Link,
		engine:    Engine{Kernel: cfg.Kernel, Version: cfg.Version},
		greeting:  cfg.Greeting,
		wake:      cfg.Wake,
		clock:     cfg.Clock,
		debug:     cfg.Debug,
		heartbeat: NewHeartbeat(cfg.Indicator, cfg.TickPeriod),
	}
}

// RequestAbort is the local abort trigger. It only sets a flag and wakes
// the foreground, so it is safe to call from a pin interrupt.
func (d *Device) RequestAbort() {
	d.abortRequest.Store(true)
	d.wake.Notify()
}

// Stop makes Run return after the current cycle
func (d *Device) Stop() {
	d.stopped.Store(true)
	d.wake.Notify()
}

// Boot announces the device with a Startup frame
func (d *Device) Boot() error {
	return d.send(protocol.NewStartup(d.greeting))
}

// Run is the foreground loop. It returns when Stop is called or the link
// is closed.
func (d *Device) Run() error {
	for !d.stopped.Load() {
		worked, err := d.Poll()
		if err != nil {
			if errors.Is(err, ErrLinkClosed) {
				return err
			}
			d.debug("device: " + err.Error())
		}
		if !worked {
			d.wake.Wait(d.idleTimeout())
		}
	}
	return nil
}

// Poll runs one foreground cycle and reports whether it did any work.
// Inbound frames take precedence over computing the next pixel.
func (d *Device) Poll() (bool, error) {
	d.timers.Dispatch(d.clock())

	if d.abortRequest.Swap(false) {
		d.transition(d.engine.LocalAbort(d.state))
	}

	if d.link.Pending() {
		return true, d.receive()
	}

	if d.state.Busy() {
		prev := d.state
		next, out := d.engine.Step(d.state)
		d.transition(next)
		if out == nil {
			return true, nil
		}
		d.account(prev, out)
		return true, d.send(out)
	}

	return false, nil
}

// State returns the current state; only meaningful from the foreground
// goroutine or while Run is not executing
func (d *Device) State() DeviceState {
	return d.state
}

// Stats returns a snapshot of the activity counters
func (d *Device) Stats() DeviceStats {
	return DeviceStats{
		FramesIn:  d.framesIn.Load(),
		FramesOut: d.framesOut.Load(),
		Pixels:    d.pixels.Load(),
		Rejected:  d.rejected.Load(),
		Corrupt:   d.corrupt.Load(),
	}
}

// Heartbeat exposes the liveness ticker
func (d *Device) Heartbeat() *Heartbeat {
	return d.heartbeat
}

// Trace returns the recent event ring
func (d *Device) Trace() *Trace {
	return &d.trace
}

func (d *Device) receive() error {
	msg, err := d.link.ReadFrame()
	if err != nil {
		if errors.Is(err, ErrLinkClosed) {
			return err
		}
		d.corrupt.Add(1)
		d.trace.Record(EvtCorrupt, d.state.Chunk.ChunkID, d.clock(), 0)
		if errors.Is(err, protocol.ErrTimeout) {
			// torn frame: nothing to answer, the sender's frame never arrived
			return err
		}
		d.rejected.Add(1)
		if sendErr := d.send(protocol.Error{}); sendErr != nil {
			return sendErr
		}
		return err
	}

	d.framesIn.Add(1)
	d.trace.Record(EvtFrameIn, d.state.Chunk.ChunkID, d.clock(), uint32(msg.Kind()))

	prev := d.state
	next, replies := d.engine.Handle(d.state, msg)
	d.transition(next)

	switch {
	case !prev.Busy() && next.Busy():
		d.trace.Record(EvtChunkStart, next.Chunk.ChunkID, d.clock(), uint32(next.Chunk.Pixels()))
	case prev.Busy() && msg.Kind() == protocol.KindAbort:
		d.trace.Record(EvtAbortHost, prev.Chunk.ChunkID, d.clock(), uint32(prev.Cursor))
	}

	for _, r := range replies {
		if r.Kind() == protocol.KindError {
			d.rejected.Add(1)
			d.trace.Record(EvtRejected, d.state.Chunk.ChunkID, d.clock(), uint32(msg.Kind()))
		}
		if err := d.send(r); err != nil {
			return err
		}
	}
	return nil
}

// account records trace events for a frame produced by Step
func (d *Device) account(prev DeviceState, out protocol.Message) {
	switch out.(type) {
	case protocol.PixelResult:
		d.pixels.Add(1)
	case protocol.Done:
		d.trace.Record(EvtChunkDone, prev.Chunk.ChunkID, d.clock(), uint32(prev.Cursor))
	case protocol.Abort:
		d.trace.Record(EvtAbortLocal, prev.Chunk.ChunkID, d.clock(), uint32(prev.Cursor))
		d.debug("device: local abort")
	}
}

// transition installs the next state and keeps the heartbeat in step with
// whether a chunk is open
func (d *Device) transition(next DeviceState) {
	d.state = next
	if next.Phase == PhaseComputing {
		d.heartbeat.Start(&d.timers, d.clock())
	} else if d.heartbeat.Running() {
		d.heartbeat.Stop(&d.timers)
	}
}

func (d *Device) send(m protocol.Message) error {
	if err := d.link.WriteFrame(m); err != nil {
		return err
	}
	d.framesOut.Add(1)
	return nil
}

// idleTimeout is how long the foreground may sleep before the next timer
func (d *Device) idleTimeout() time.Duration {
	wake, ok := d.timers.NextWake()
	if !ok {
		return 0
	}
	delta := int32(wake - d.clock())
	if delta <= 0 {
		return time.Microsecond
	}
	return TimerToDuration(uint32(delta))
}
