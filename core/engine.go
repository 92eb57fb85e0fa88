package core

import "fractalink/protocol"

// Phase is the device work state
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseComputing
	PhaseAbortPending
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseComputing:
		return "computing"
	case PhaseAbortPending:
		return "abort_pending"
	default:
		return "unknown"
	}
}

// DeviceState is everything the device knows about the current work. It is
// owned by the foreground loop and passed through the engine by value.
type DeviceState struct {
	Phase Phase

	// Params holds the last accepted parameters; HasParams is false until
	// the host has sent any
	Params    protocol.ComputeParameters
	HasParams bool

	// Chunk and Cursor are meaningful only while not idle. Cursor is the
	// linear index of the next pixel to compute.
	Chunk  protocol.ChunkDescriptor
	Cursor int
}

// Busy reports whether a chunk is in progress
func (s DeviceState) Busy() bool {
	return s.Phase != PhaseIdle
}

// Engine holds the fixed device behaviour. Its methods are pure: they take
// the current state and return the next state and the frames to send.
type Engine struct {
	Kernel  Kernel
	Version protocol.Version
}

// Handle reacts to one inbound message
func (e Engine) Handle(st DeviceState, m protocol.Message) (DeviceState, []protocol.Message) {
	switch v := m.(type) {
	case protocol.GetVersion:
		return st, reply(e.Version)

	case protocol.ComputeParameters:
		if st.Busy() {
			return st, reply(protocol.Error{})
		}
		st.Params = v
		st.HasParams = true
		return st, reply(protocol.Ok{})

	case protocol.ChunkDescriptor:
		if st.Busy() || !st.HasParams || v.Width == 0 || v.Height == 0 {
			return st, reply(protocol.Error{})
		}
		st.Phase = PhaseComputing
		st.Chunk = v
		st.Cursor = 0
		return st, reply(protocol.Ok{})

	case protocol.Abort:
		return idle(st), reply(protocol.Ok{})

	default:
		return st, reply(protocol.Error{})
	}
}

// Step performs one unit of work: one pixel while computing, the closing
// Done once the chunk is exhausted, or the Abort notice after a local abort.
// It returns nil when there is nothing to do.
func (e Engine) Step(st DeviceState) (DeviceState, protocol.Message) {
	switch st.Phase {
	case PhaseAbortPending:
		return idle(st), protocol.Abort{}

	case PhaseComputing:
		if st.Cursor >= st.Chunk.Pixels() {
			return idle(st), protocol.Done{}
		}
		w := int(st.Chunk.Width)
		x, y := st.Cursor%w, st.Cursor/w
		z := complex(
			st.Chunk.OriginRe+float64(x)*st.Params.DRe,
			st.Chunk.OriginIm+float64(y)*st.Params.DIm,
		)
		c := complex(st.Params.CRe, st.Params.CIm)

		result := protocol.PixelResult{
			ChunkID:    st.Chunk.ChunkID,
			X:          uint8(x),
			Y:          uint8(y),
			Iterations: e.Kernel.Iterations(z, c, st.Params.IterationCap),
		}
		st.Cursor++
		return st, result
	}
	return st, nil
}

// LocalAbort handles the device's own abort trigger. A computing device
// stops producing pixels at once and announces the abort on its next Step.
func (e Engine) LocalAbort(st DeviceState) DeviceState {
	if st.Phase == PhaseComputing {
		st.Phase = PhaseAbortPending
	}
	return st
}

func idle(st DeviceState) DeviceState {
	st.Phase = PhaseIdle
	st.Chunk = protocol.ChunkDescriptor{}
	st.Cursor = 0
	return st
}

func reply(m protocol.Message) []protocol.Message {
	return []protocol.Message{m}
}
