package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TraceEvent captures one protocol event for post-mortem analysis
type TraceEvent struct {
	EventType uint8  // Event type code
	ChunkID   uint8  // Chunk the event belongs to
	Clock     uint32 // Timer ticks at event
	Value     uint32 // Context-dependent value
}

// Event type codes
const (
	EvtFrameIn    = 1 // frame received (Value = kind)
	EvtCorrupt    = 2 // corrupt or torn frame dropped
	EvtChunkStart = 3 // chunk accepted (Value = pixel count)
	EvtChunkDone  = 4 // Done sent (Value = pixels sent)
	EvtAbortLocal = 5 // local abort announced (Value = cursor)
	EvtAbortHost  = 6 // host abort acknowledged (Value = cursor)
	EvtRejected   = 7 // Error replied (Value = kind)
)

const (
	TraceRingSize = 32 // Keep last 32 events for post-mortem
)

// Trace is a fixed ring of recent events. Recording never blocks and never
// allocates, so it is safe to leave on in the foreground loop.
type Trace struct {
	ring [TraceRingSize]TraceEvent
	head uint8
}

// Record captures an event, overwriting the oldest one
func (t *Trace) Record(eventType, chunkID uint8, clock, value uint32) {
	idx := t.head
	t.ring[idx] = TraceEvent{
		EventType: eventType,
		ChunkID:   chunkID,
		Clock:     clock,
		Value:     value,
	}
	t.head = (idx + 1) % TraceRingSize
}

// Events returns the recorded events, oldest first
func (t *Trace) Events() []TraceEvent {
	events := make([]TraceEvent, 0, TraceRingSize)
	for i := uint8(0); i < TraceRingSize; i++ {
		evt := t.ring[(t.head+i)%TraceRingSize]
		if evt.EventType == 0 {
			continue // Empty slot
		}
		events = append(events, evt)
	}
	return events
}

// Dump writes the trace through w, oldest first
func (t *Trace) Dump(w DebugWriter) {
	if w == nil {
		return
	}

	w("[TRACE] === Trace Dump ===")
	for _, evt := range t.Events() {
		var name string
		switch evt.EventType {
		case EvtFrameIn:
			name = "FRAME_IN"
		case EvtCorrupt:
			name = "CORRUPT!"
		case EvtChunkStart:
			name = "CHUNK_START"
		case EvtChunkDone:
			name = "CHUNK_DONE"
		case EvtAbortLocal:
			name = "ABORT_LOCAL"
		case EvtAbortHost:
			name = "ABORT_HOST"
		case EvtRejected:
			name = "REJECTED"
		default:
			name = "UNKNOWN"
		}

		w("[TRACE] " + name +
			" chunk=" + itoa(int(evt.ChunkID)) +
			" clock=" + utoa(evt.Clock) +
			" v=" + utoa(evt.Value))
	}
	w("[TRACE] === End Dump ===")
}

// Clear empties the trace
func (t *Trace) Clear() {
	for i := range t.ring {
		t.ring[i] = TraceEvent{}
	}
	t.head = 0
}

// utoa formats n in decimal without pulling fmt into the firmware
func utoa(n uint32) string {
	var buf [10]byte
	i := len(buf)
	for {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
		if n == 0 {
			break
		}
	}
	return string(buf[i:])
}

func itoa(n int) string {
	if n < 0 {
		return "-" + utoa(uint32(-n))
	}
	return utoa(uint32(n))
}
