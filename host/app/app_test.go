package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"fractalink/core"
	"fractalink/host/emulator"
	"fractalink/host/events"
	"fractalink/host/mcu"
	"fractalink/host/work"
	"fractalink/protocol"
)

// scriptInput hands commands from a channel to the queue
type scriptInput struct {
	q        *events.Queue
	commands chan events.Command
}

func (s *scriptInput) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case c := <-s.commands:
			if err := s.q.Push(events.FromUser(c)); err != nil {
				return nil
			}
		}
	}
}

// milestones turns observed events into channels a test can wait on
type milestones struct {
	startup, computing, complete, aborted chan struct{}
	once                                  [4]sync.Once
}

func newMilestones() *milestones {
	return &milestones{
		startup:   make(chan struct{}),
		computing: make(chan struct{}),
		complete:  make(chan struct{}),
		aborted:   make(chan struct{}),
	}
}

func (m *milestones) observe(e events.Event, st work.HostState) {
	if e.Source == events.SourceDevice {
		switch e.Message.Kind() {
		case protocol.KindStartup:
			m.once[0].Do(func() { close(m.startup) })
		case protocol.KindPixelResult:
			m.once[1].Do(func() { close(m.computing) })
		}
	}
	switch st.Phase {
	case work.PhaseComplete:
		m.once[2].Do(func() { close(m.complete) })
	case work.PhaseAborted:
		m.once[3].Do(func() { close(m.aborted) })
	}
}

func wait(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(10 * time.Second):
		t.Fatalf("Timed out waiting for %s", what)
	}
}

type harness struct {
	app    *App
	emu    *emulator.Emulator
	input  *scriptInput
	marks  *milestones
	result chan error
}

func setup(t *testing.T, settings work.Settings, opts emulator.Options) *harness {
	t.Helper()
	log := zaptest.NewLogger(t)
	opts.Log = log.Named("emulator")
	opts.ReadTimeout = 50 * time.Millisecond

	emu := emulator.New(opts)
	if err := emu.Start(); err != nil {
		t.Fatalf("Emulator start failed: %v", err)
	}
	t.Cleanup(func() { emu.Close() })

	link := mcu.New(emu.Port(), log.Named("mcu"))
	q := events.NewQueue(events.DefaultCapacity)
	h := &harness{
		emu:    emu,
		input:  &scriptInput{q: q, commands: make(chan events.Command)},
		marks:  newMilestones(),
		result: make(chan error, 1),
	}
	h.app = &App{
		Link:      link,
		Input:     h.input,
		Queue:     q,
		Scheduler: work.NewScheduler(settings, link, nil, log.Named("work")),
		Log:       log,
		Observe:   h.marks.observe,
	}
	return h
}

func (h *harness) run(ctx context.Context) {
	go func() { h.result <- h.app.Run(ctx) }()
}

func (h *harness) send(t *testing.T, k events.CommandKind) {
	t.Helper()
	select {
	case h.input.commands <- events.Command{Kind: k}:
	case <-time.After(5 * time.Second):
		t.Fatalf("Input not accepted: %s", k)
	}
}

func (h *harness) finish(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.result:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return")
		return nil
	}
}

func smallSettings() work.Settings {
	return work.Settings{
		Plan: work.Plan{Width: 4, Height: 4, ChunkWidth: 4, ChunkHeight: 4},
		Params: work.Params{
			CRe:          -0.4,
			CIm:          0.6,
			IterationCap: 5,
			Region:       work.Region{ReMin: -1.6, ReMax: 1.6, ImMin: -1.1, ImMax: 1.1},
		},
	}
}

func TestEndToEndRun(t *testing.T) {
	settings := smallSettings()
	h := setup(t, settings, emulator.Options{})
	h.run(context.Background())

	wait(t, h.marks.startup, "startup")
	h.send(t, events.CmdStart)
	wait(t, h.marks.complete, "run completion")
	h.send(t, events.CmdQuit)

	if err := h.finish(t); err != nil {
		t.Fatalf("Run returned %v", err)
	}

	sched := h.app.Scheduler
	if st := sched.State(); st.Phase != work.PhaseComplete || !st.Done {
		t.Errorf("Expected complete, got %+v", st)
	}

	g := sched.Grid()
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if n := g.Writes(x, y); n != 1 {
				t.Errorf("Pixel (%d,%d) written %d times", x, y, n)
			}
		}
	}

	want := work.NewGrid(4, 4)
	work.Render(want, settings.Plan, settings.Params, core.JuliaKernel{})
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if g.At(x, y) != want.At(x, y) {
				t.Errorf("Pixel (%d,%d): device %d, local %d", x, y, g.At(x, y), want.At(x, y))
			}
		}
	}

	h.emu.Close()
	if stats := h.emu.Device().Stats(); stats.Pixels != 16 {
		t.Errorf("Expected 16 pixels computed, got %+v", stats)
	}
}

func TestMultiChunkRun(t *testing.T) {
	settings := smallSettings()
	settings.Plan = work.Plan{Width: 8, Height: 6, ChunkWidth: 4, ChunkHeight: 3}
	h := setup(t, settings, emulator.Options{})
	h.run(context.Background())

	wait(t, h.marks.startup, "startup")
	h.send(t, events.CmdStart)
	wait(t, h.marks.complete, "run completion")
	h.send(t, events.CmdQuit)
	if err := h.finish(t); err != nil {
		t.Fatalf("Run returned %v", err)
	}

	if stats := h.app.Scheduler.Stats(); stats.Chunks != 4 || stats.Applied != 48 {
		t.Errorf("Unexpected run stats %+v", stats)
	}
	if n := h.app.Scheduler.Grid().Written(); n != 48 {
		t.Errorf("Expected 48 pixels written, got %d", n)
	}
}

func TestDeviceButtonAbortsRun(t *testing.T) {
	settings := smallSettings()
	settings.Plan = work.Plan{Width: 200, Height: 200, ChunkWidth: 200, ChunkHeight: 200}
	h := setup(t, settings, emulator.Options{PixelDelay: time.Millisecond})
	h.run(context.Background())

	wait(t, h.marks.startup, "startup")
	h.send(t, events.CmdStart)
	wait(t, h.marks.computing, "first pixel")
	h.emu.PressButton()
	wait(t, h.marks.aborted, "device abort")

	h.send(t, events.CmdQuit)
	if err := h.finish(t); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if st := h.app.Scheduler.State(); st.Phase != work.PhaseAborted || st.Done {
		t.Errorf("Expected aborted, got %+v", st)
	}
}

func TestDeviceLossEndsRun(t *testing.T) {
	h := setup(t, smallSettings(), emulator.Options{})
	h.run(context.Background())

	wait(t, h.marks.startup, "startup")
	h.emu.Close()

	err := h.finish(t)
	if !errors.Is(err, protocol.ErrTransport) {
		t.Fatalf("Expected a transport error, got %v", err)
	}
}

func TestCancelStopsEverything(t *testing.T) {
	h := setup(t, smallSettings(), emulator.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	h.run(ctx)

	wait(t, h.marks.startup, "startup")
	cancel()

	if err := h.finish(t); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if !h.app.Queue.Closed() {
		t.Error("Expected the queue closed after Run")
	}
	if err := h.app.Link.WriteFrame(protocol.GetVersion{}); !errors.Is(err, protocol.ErrClosed) {
		t.Errorf("Expected the link closed after Run, got %v", err)
	}
}

func TestInputEndRequestsShutdown(t *testing.T) {
	h := setup(t, smallSettings(), emulator.Options{})
	h.app.Input = InputFunc(func(ctx context.Context) error {
		return h.app.Queue.Push(events.Shutdown(nil))
	})
	h.run(context.Background())

	if err := h.finish(t); err != nil {
		t.Fatalf("Run returned %v", err)
	}
}
