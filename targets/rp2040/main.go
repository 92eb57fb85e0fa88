//go:build rp2040

package main

import (
	"image/color"
	"machine"
	"time"

	"tinygo.org/x/drivers/ws2812"

	"fractalink/core"
)

// Board wiring
const (
	baudRate    = 115200
	abortPin    = machine.GP15 // push button to ground
	neopixelPin = machine.GP16
)

var (
	uart = machine.UART0

	// Interrupt-safe wake-ups: channel sends are not allowed in handlers
	rxReady = &core.PollSignal{Interval: 20 * time.Microsecond}
	txSpace = &core.PollSignal{Interval: 20 * time.Microsecond}

	link   *core.Link
	device *core.Device

	rxOverruns uint32
)

func main() {
	// Disable watchdog on boot to clear any previous state
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0}); err != nil {
		return
	}

	if err := uart.Configure(machine.UARTConfig{
		BaudRate: baudRate,
		TX:       machine.UART0_TX_PIN,
		RX:       machine.UART0_RX_PIN,
	}); err != nil {
		return
	}

	link = core.NewLink(core.LinkConfig{
		RxSize:       255,
		TxSize:       255,
		FrameTimeout: 500 * time.Millisecond,
		RxReady:      rxReady,
		TxSpace:      txSpace,
		KickTx:       kickTx,
	})

	device = core.NewDevice(core.DeviceConfig{
		Link:      link,
		Indicator: newIndicator(),
		Wake:      rxReady,
		Clock:     GetHardwareTime,
	})

	abortPin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	abortPin.SetInterrupt(machine.PinFalling, func(machine.Pin) {
		device.RequestAbort()
	})

	// Start UART reader goroutine
	go uartReaderLoop()

	if err := device.Boot(); err != nil {
		return
	}

	// Main loop
	for {
		func() {
			// Recover from panics in the main loop to prevent a firmware crash
			defer func() {
				if r := recover(); r != nil {
					link.RX().Reset()
				}
			}()
			device.Run()
		}()
	}
}

// uartReaderLoop moves bytes from the UART's interrupt buffer into the
// receive ring
func uartReaderLoop() {
	for {
		for uart.Buffered() > 0 {
			b, err := uart.ReadByte()
			if err != nil {
				break
			}
			if !link.Received(b) {
				rxOverruns++
			}
		}
		// Yield to avoid a busy loop
		time.Sleep(50 * time.Microsecond)
	}
}

// kickTx drains the transmit ring onto the UART. The UART write blocks per
// byte, so the ring is empty when it returns.
func kickTx() {
	for {
		b, ok := link.Transmit()
		if !ok {
			return
		}
		uart.WriteByte(b)
	}
}

// newIndicator drives the on-board LED and the NeoPixel together
func newIndicator() core.Indicator {
	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})

	neopixelPin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	strip := ws2812.New(neopixelPin)
	busy := []color.RGBA{{R: 0x00, G: 0x20, B: 0x40}}
	off := []color.RGBA{{}}

	return core.IndicatorFunc(func(on bool) {
		led.Set(on)
		if on {
			strip.WriteColors(busy)
		} else {
			strip.WriteColors(off)
		}
	})
}
