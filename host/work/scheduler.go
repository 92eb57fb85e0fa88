// Package work drives runs on the device: it splits the grid into chunks,
// hands them out one at a time and collects the pixels that come back.
package work

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fractalink/host/events"
	"fractalink/protocol"
)

// Phase is the host work state
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseAwaitingChunk
	PhaseAborted
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingChunk:
		return "awaiting_chunk"
	case PhaseAborted:
		return "aborted"
	case PhaseComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// HostState is what the scheduler knows about the current run
type HostState struct {
	Phase   Phase
	ChunkID int       // chunk in flight while awaiting
	RunID   uuid.UUID // zero before the first run
	Done    bool      // last pixel of the last chunk has been applied
}

// Running reports whether a chunk is in flight
func (s HostState) Running() bool {
	return s.Phase == PhaseAwaitingChunk
}

// Sender writes frames to the device
type Sender interface {
	WriteFrame(m protocol.Message) error
}

// Exporter turns a grid into an image. It receives only the dimensions, the
// counts and the iteration cap they were computed with.
type Exporter interface {
	Export(width, height int, counts []uint8, iterationCap uint8) error
}

// ExporterFunc adapts a function to Exporter
type ExporterFunc func(width, height int, counts []uint8, iterationCap uint8) error

func (f ExporterFunc) Export(width, height int, counts []uint8, iterationCap uint8) error {
	return f(width, height, counts, iterationCap)
}

// Settings configure a Scheduler
type Settings struct {
	Plan   Plan
	Params Params
	Export bool // export after each completed run
}

// RunStats summarise the last run
type RunStats struct {
	RunID   uuid.UUID
	Chunks  int
	Applied int
	Dropped int
	Started time.Time
	Elapsed time.Duration
}

// NudgeStep is how far + and - move the constant c
const NudgeStep = 0.1

// Scheduler is the single consumer of the event queue. Grid and state are
// touched only from the goroutine calling its methods.
type Scheduler struct {
	log      *zap.Logger
	tx       Sender
	exporter Exporter

	plan        Plan
	params      Params
	paramsDirty bool
	export      bool

	grid  *Grid // displayed grid
	run   *Grid // pixels of the current run only
	state HostState
	stats RunStats

	// requests answered by Ok/Error, oldest first
	awaiting []protocol.Kind
}

// NewScheduler creates an idle scheduler. A nil exporter disables export.
func NewScheduler(s Settings, tx Sender, exporter Exporter, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	sc := &Scheduler{
		log:         log,
		tx:          tx,
		exporter:    exporter,
		params:      s.Params,
		paramsDirty: true,
		export:      s.Export && exporter != nil,
	}
	sc.setPlan(s.Plan)
	return sc
}

func (s *Scheduler) setPlan(p Plan) {
	s.plan = p
	if p.Width > 0 && p.Height > 0 {
		s.grid = NewGrid(p.Width, p.Height)
		s.run = NewGrid(p.Width, p.Height)
	} else {
		s.grid, s.run = NewGrid(0, 0), NewGrid(0, 0)
	}
	s.paramsDirty = true
}

// State returns the current host state
func (s *Scheduler) State() HostState { return s.state }

// Grid returns the displayed grid
func (s *Scheduler) Grid() *Grid { return s.grid }

// RunGrid returns the buffer holding only the current run's pixels
func (s *Scheduler) RunGrid() *Grid { return s.run }

// Plan returns the chunk plan
func (s *Scheduler) Plan() Plan { return s.plan }

// Params returns the fractal parameters
func (s *Scheduler) Params() Params { return s.params }

// Stats returns the statistics of the last run
func (s *Scheduler) Stats() RunStats { return s.stats }

// SetExport enables or disables export after completed runs
func (s *Scheduler) SetExport(on bool) {
	s.export = on && s.exporter != nil
}

func (s *Scheduler) runLog() *zap.Logger {
	return s.log.With(zap.String("run", s.state.RunID.String()))
}

func (s *Scheduler) send(m protocol.Message) error {
	if err := s.tx.WriteFrame(m); err != nil {
		return err
	}
	switch m.Kind() {
	case protocol.KindComputeParameters, protocol.KindChunkDescriptor, protocol.KindAbort:
		s.awaiting = append(s.awaiting, m.Kind())
	}
	return nil
}

// BeginRun validates the geometry and hands the first chunk to the device.
// Parameters are sent first if they changed since they were last sent.
func (s *Scheduler) BeginRun() error {
	if s.state.Running() {
		s.log.Warn("run already in progress", zap.Int("chunk", s.state.ChunkID))
		return ErrRunInFlight
	}
	if err := s.plan.Validate(); err != nil {
		s.log.Error("run refused", zap.Error(err))
		return err
	}
	if err := s.params.Validate(); err != nil {
		s.log.Error("run refused", zap.Error(err))
		return err
	}

	s.state = HostState{Phase: PhaseAwaitingChunk, ChunkID: 0, RunID: uuid.New()}
	s.stats = RunStats{RunID: s.state.RunID, Started: time.Now()}
	s.run.Clear()

	s.runLog().Info("run started",
		zap.Stringer("plan", s.plan),
		zap.Int("chunks", s.plan.ChunkCount()),
		zap.Uint8("iterations", s.params.IterationCap))

	if s.paramsDirty {
		if err := s.send(s.params.Message(s.plan.Width, s.plan.Height)); err != nil {
			return err
		}
		s.paramsDirty = false
	}
	return s.sendChunk()
}

func (s *Scheduler) sendChunk() error {
	d := s.params.Descriptor(s.plan, s.state.ChunkID)
	s.runLog().Debug("chunk sent",
		zap.Int("chunk", s.state.ChunkID),
		zap.Float64("origin_re", d.OriginRe),
		zap.Float64("origin_im", d.OriginIm))
	return s.send(d)
}

// AdvanceChunk moves to the next chunk, or completes the run after the last
func (s *Scheduler) AdvanceChunk() error {
	if !s.state.Running() {
		return fmt.Errorf("%w: advance while %s", ErrProtocolViolation, s.state.Phase)
	}
	s.stats.Chunks++
	s.state.ChunkID++
	if s.state.ChunkID < s.plan.ChunkCount() {
		return s.sendChunk()
	}
	return s.completeRun()
}

func (s *Scheduler) completeRun() error {
	s.state.Phase = PhaseComplete
	s.state.Done = true
	s.stats.Elapsed = time.Since(s.stats.Started)

	missing := s.plan.Width*s.plan.Height - s.run.Written()
	s.runLog().Info("run complete",
		zap.Int("pixels", s.stats.Applied),
		zap.Int("dropped", s.stats.Dropped),
		zap.Int("missing", missing),
		zap.Duration("elapsed", s.stats.Elapsed))

	if !s.export {
		return nil
	}
	return s.Export()
}

// ApplyPixelResult writes one pixel of the chunk in flight into the grid.
// Results for any other chunk, or outside the chunk, are dropped.
func (s *Scheduler) ApplyPixelResult(pr protocol.PixelResult) error {
	if !s.state.Running() {
		s.stats.Dropped++
		return fmt.Errorf("%w: pixel for chunk %d while %s",
			ErrProtocolViolation, pr.ChunkID, s.state.Phase)
	}
	if int(pr.ChunkID) != s.state.ChunkID {
		s.stats.Dropped++
		return fmt.Errorf("%w: pixel for chunk %d, chunk %d in flight",
			ErrProtocolViolation, pr.ChunkID, s.state.ChunkID)
	}
	if int(pr.X) >= s.plan.ChunkWidth || int(pr.Y) >= s.plan.ChunkHeight {
		s.stats.Dropped++
		return fmt.Errorf("%w: pixel (%d,%d) outside %dx%d chunk",
			ErrProtocolViolation, pr.X, pr.Y, s.plan.ChunkWidth, s.plan.ChunkHeight)
	}

	ox, oy := s.plan.Origin(s.state.ChunkID)
	x, y := ox+int(pr.X), oy+int(pr.Y)
	s.grid.Set(x, y, pr.Iterations)
	s.run.Set(x, y, pr.Iterations)
	s.stats.Applied++

	if s.state.ChunkID+1 == s.plan.ChunkCount() &&
		int(pr.X) == s.plan.ChunkWidth-1 && int(pr.Y) == s.plan.ChunkHeight-1 {
		s.state.Done = true
	}
	return nil
}

// OnDone reconciles the device's Done with the host's own bookkeeping: if
// the last pixel already completed the run it is exported, otherwise the
// next chunk goes out.
func (s *Scheduler) OnDone() error {
	if !s.state.Running() {
		return fmt.Errorf("%w: done while %s", ErrProtocolViolation, s.state.Phase)
	}
	if s.state.Done {
		s.stats.Chunks++
		return s.completeRun()
	}
	return s.AdvanceChunk()
}

// AbortRun tells the device to stop and returns to Idle. Pixels still on
// the wire are dropped until the next run.
func (s *Scheduler) AbortRun() error {
	wasRunning := s.state.Running()
	if err := s.send(protocol.Abort{}); err != nil {
		return err
	}
	if wasRunning {
		s.runLog().Info("run aborted", zap.Int("chunk", s.state.ChunkID))
		s.state.Phase = PhaseIdle
	}
	return nil
}

// Export hands the displayed grid to the exporter
func (s *Scheduler) Export() error {
	if s.exporter == nil {
		return nil
	}
	if err := s.exporter.Export(s.grid.Width, s.grid.Height, s.grid.Counts, s.params.IterationCap); err != nil {
		s.log.Error("export failed", zap.Error(err))
		return err
	}
	return nil
}

// HandleMessage reacts to one frame from the device
func (s *Scheduler) HandleMessage(m protocol.Message) error {
	switch v := m.(type) {
	case protocol.PixelResult:
		if err := s.ApplyPixelResult(v); err != nil {
			// pixels trailing an abort are expected; anything else is not
			if s.state.Phase == PhaseIdle || s.state.Phase == PhaseAborted {
				s.log.Debug("pixel dropped", zap.Error(err))
			} else {
				s.log.Warn("pixel dropped", zap.Error(err))
			}
			return err
		}
		return nil

	case protocol.Done:
		if err := s.OnDone(); err != nil {
			if errors.Is(err, ErrProtocolViolation) {
				s.log.Debug("done ignored", zap.Error(err))
			}
			return err
		}
		return nil

	case protocol.Ok:
		s.acknowledge(true)
		return nil

	case protocol.Error:
		rejected, known := s.acknowledge(false)
		if !known {
			s.log.Warn("device replied error")
			return ErrBusy
		}
		err := fmt.Errorf("%w: %s", ErrBusy, rejected)
		s.log.Warn("device replied error", zap.Stringer("request", rejected))
		if rejected == protocol.KindChunkDescriptor && s.state.Running() {
			s.runLog().Error("chunk refused, run stopped", zap.Int("chunk", s.state.ChunkID))
			s.state.Phase = PhaseIdle
		}
		if rejected == protocol.KindComputeParameters {
			s.paramsDirty = true
		}
		return err

	case protocol.Abort:
		if s.state.Running() {
			s.runLog().Warn("run aborted by device", zap.Int("chunk", s.state.ChunkID))
		} else {
			s.log.Info("device abort")
		}
		s.state.Phase = PhaseAborted
		return nil

	case protocol.Version:
		s.log.Info("device version", zap.String("version", v.String()))
		return nil

	case protocol.Startup:
		s.log.Info("device started", zap.String("greeting", v.Text()))
		s.awaiting = s.awaiting[:0]
		s.paramsDirty = true
		if s.state.Running() {
			s.runLog().Error("device restarted during run")
			s.state.Phase = PhaseAborted
		}
		return nil

	default:
		err := fmt.Errorf("%w: unexpected %s from device", ErrProtocolViolation, m.Kind())
		s.log.Warn("frame dropped", zap.Error(err))
		return err
	}
}

// acknowledge matches an Ok or Error to the oldest outstanding request
func (s *Scheduler) acknowledge(ok bool) (protocol.Kind, bool) {
	if len(s.awaiting) == 0 {
		s.log.Debug("unsolicited reply", zap.Bool("ok", ok))
		return 0, false
	}
	kind := s.awaiting[0]
	s.awaiting = s.awaiting[1:]
	if ok {
		s.log.Debug("request acknowledged", zap.Stringer("request", kind))
	}
	return kind, true
}

// HandleCommand carries out one user command. Quit and Help are left to the
// caller.
func (s *Scheduler) HandleCommand(c events.Command) error {
	switch c.Kind {
	case events.CmdStart:
		return s.BeginRun()
	case events.CmdAbort:
		return s.AbortRun()
	case events.CmdGetVersion:
		return s.send(protocol.GetVersion{})
	case events.CmdSetParams:
		return s.SendParams()
	case events.CmdCPU:
		return s.RenderCPU()
	case events.CmdIncrease:
		return s.Nudge(NudgeStep)
	case events.CmdDecrease:
		return s.Nudge(-NudgeStep)
	case events.CmdClearGrid:
		s.grid.Clear()
		return s.Export()
	case events.CmdRedraw:
		s.grid.CopyFrom(s.run)
		return s.Export()
	case events.CmdExport:
		return s.Export()
	case events.CmdSet:
		return s.Set(c.Key, c.Value)
	case events.CmdHelp, events.CmdQuit:
		return nil
	default:
		return fmt.Errorf("unknown command %s", c.Kind)
	}
}

// SendParams pushes the parameters to the device without starting a run
func (s *Scheduler) SendParams() error {
	if s.state.Running() {
		s.log.Warn("parameters not sent", zap.Error(ErrRunInFlight))
		return ErrRunInFlight
	}
	if err := s.send(s.params.Message(s.plan.Width, s.plan.Height)); err != nil {
		return err
	}
	s.paramsDirty = false
	return nil
}

// Nudge moves both parts of c by delta
func (s *Scheduler) Nudge(delta float64) error {
	if s.state.Running() {
		s.log.Warn("parameters not changed", zap.Error(ErrRunInFlight))
		return ErrRunInFlight
	}
	s.params.CRe += delta
	s.params.CIm += delta
	s.paramsDirty = true
	s.log.Info("parameters changed", zap.Float64("c_re", s.params.CRe), zap.Float64("c_im", s.params.CIm))
	return nil
}
