// Package emulator runs the device firmware in-process, wired to the host
// through an in-memory serial line. It drives the same core.Device the
// boards run, with goroutines standing in for the UART interrupts.
package emulator

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"fractalink/core"
	"fractalink/host/serial"
)

// Options configures an Emulator
type Options struct {
	// ReadTimeout is the host end's read timeout
	ReadTimeout time.Duration

	// PixelDelay slows the kernel down to make runs observable
	PixelDelay time.Duration

	// Kernel overrides the escape-time kernel
	Kernel core.Kernel

	// TickPeriod is the heartbeat period
	TickPeriod time.Duration

	Log *zap.Logger
}

// Emulator is a running virtual device
type Emulator struct {
	log    *zap.Logger
	link   *core.Link
	device *core.Device
	kick   *core.ChanSignal

	host *serial.PipePort // handed to the host
	dev  *serial.PipePort // UART side

	led struct {
		sync.Mutex
		on      bool
		toggles int
	}

	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
	runErr   error
}

// rxPoll bounds how long the receive pump blocks, so it can notice Close
const rxPoll = 20 * time.Millisecond

// New creates a stopped emulator
func New(opts Options) *Emulator {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = serial.DefaultReadTimeout
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	kernel := opts.Kernel
	if kernel == nil {
		kernel = core.JuliaKernel{}
	}
	if opts.PixelDelay > 0 {
		inner, delay := kernel, opts.PixelDelay
		kernel = core.KernelFunc(func(z, c complex128, limit uint8) uint8 {
			time.Sleep(delay)
			return inner.Iterations(z, c, limit)
		})
	}

	e := &Emulator{
		log:  opts.Log,
		kick: core.NewChanSignal(),
		done: make(chan struct{}),
	}
	e.host, e.dev = serial.Pipe(opts.ReadTimeout)
	e.dev.SetReadTimeout(rxPoll)

	e.link = core.NewLink(core.LinkConfig{
		FrameTimeout: opts.ReadTimeout,
		KickTx:       e.kick.Notify,
	})
	e.device = core.NewDevice(core.DeviceConfig{
		Link:       e.link,
		Kernel:     kernel,
		Indicator:  core.IndicatorFunc(e.setLED),
		TickPeriod: opts.TickPeriod,
		Debug:      func(s string) { e.log.Debug(s) },
	})
	return e
}

// Port is the host end of the serial line
func (e *Emulator) Port() serial.Port {
	return e.host
}

// Device exposes the firmware loop, for inspection after Close
func (e *Emulator) Device() *core.Device {
	return e.device
}

// Start boots the device: the UART pumps start, the Startup frame is
// queued and the foreground loop begins
func (e *Emulator) Start() error {
	e.wg.Add(2)
	go e.rxPump()
	go e.txPump()
	if err := e.device.Boot(); err != nil {
		e.Close()
		return err
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		err := e.device.Run()
		if err != nil && !errors.Is(err, core.ErrLinkClosed) {
			e.runErr = err
		}
	}()
	e.log.Info("emulated device started")
	return nil
}

// PressButton triggers the device's local abort
func (e *Emulator) PressButton() {
	e.device.RequestAbort()
}

// LED reports the indicator state and how often it toggled
func (e *Emulator) LED() (on bool, toggles int) {
	e.led.Lock()
	defer e.led.Unlock()
	return e.led.on, e.led.toggles
}

// Close stops the device and tears down the line. The host end sees the
// line drop.
func (e *Emulator) Close() error {
	e.stopOnce.Do(func() {
		close(e.done)
		e.device.Stop()
		e.link.Close()
		e.kick.Notify()
		e.dev.Close()
		e.wg.Wait()
		e.log.Info("emulated device stopped", zap.Any("stats", e.device.Stats()))
	})
	return e.runErr
}

func (e *Emulator) setLED(on bool) {
	e.led.Lock()
	if on != e.led.on {
		e.led.toggles++
	}
	e.led.on = on
	e.led.Unlock()
}

func (e *Emulator) stopping() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

// rxPump plays the receive interrupt: every byte off the line goes into
// the receive ring
func (e *Emulator) rxPump() {
	defer e.wg.Done()
	buf := make([]byte, 64)
	for !e.stopping() {
		n, err := e.dev.Read(buf)
		for _, b := range buf[:n] {
			if !e.link.Received(b) {
				e.log.Warn("receive ring overrun")
			}
		}
		if err != nil && !serial.IsTimeout(err) {
			if !e.stopping() {
				e.log.Debug("rx pump stopped", zap.Error(err))
			}
			return
		}
	}
}

// txPump plays the transmit interrupt: whenever the firmware kicks the
// transmitter it drains the transmit ring onto the line
func (e *Emulator) txPump() {
	defer e.wg.Done()
	buf := make([]byte, 0, 64)
	for {
		e.kick.Wait(rxPoll)
		if e.stopping() {
			return
		}
		for {
			buf = buf[:0]
			for len(buf) < cap(buf) {
				b, ok := e.link.Transmit()
				if !ok {
					break
				}
				buf = append(buf, b)
			}
			if len(buf) == 0 {
				break
			}
			if _, err := e.dev.Write(buf); err != nil {
				if !e.stopping() {
					e.log.Debug("tx pump stopped", zap.Error(err))
				}
				return
			}
		}
	}
}
