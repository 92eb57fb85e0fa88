// Package protocol implements the fixed-layout frame protocol spoken between
// the fractal host and the compute device.
//
// Every frame is [type][payload...][checksum]. The type byte alone determines
// the total frame length, so a reader knows how many bytes to wait for as soon
// as it has seen the first one.
package protocol

// Kind identifies a message type on the wire
type Kind uint8

// Message kinds, in wire order
const (
	KindOk                Kind = iota // acknowledge of the received message
	KindError                         // error on the previously received command
	KindAbort                         // abort from the user button or the host
	KindDone                          // requested chunk has been computed
	KindGetVersion                    // request firmware version
	KindVersion                       // firmware version major.minor.patch
	KindStartup                       // greeting sent by the device at boot
	KindComputeParameters             // set computation parameters
	KindChunkDescriptor               // request computation of one chunk
	KindPixelResult                   // one computed pixel
	kindCount
)

// Frame layout constants
const (
	HeaderSize  = 1 // type byte
	TrailerSize = 1 // checksum byte
	FrameMin    = HeaderSize + TrailerSize

	// GreetingLen is the fixed length of the startup greeting
	GreetingLen = 9

	// FrameMax is the size of the largest frame (ComputeParameters)
	FrameMax = HeaderSize + 4*8 + 1 + TrailerSize
)

// frameSizes maps a type byte to the total frame length
var frameSizes = [kindCount]int{
	KindOk:                FrameMin,
	KindError:             FrameMin,
	KindAbort:             FrameMin,
	KindDone:              FrameMin,
	KindGetVersion:        FrameMin,
	KindVersion:           FrameMin + 3,
	KindStartup:           FrameMin + GreetingLen,
	KindComputeParameters: FrameMin + 4*8 + 1,
	KindChunkDescriptor:   FrameMin + 1 + 2*8 + 2,
	KindPixelResult:       FrameMin + 4,
}

// FrameSize returns the total frame length for a type byte.
// ok is false when the type byte is not a known message kind.
func FrameSize(typ byte) (size int, ok bool) {
	if typ >= byte(kindCount) {
		return 0, false
	}
	return frameSizes[typ], true
}

// Size returns the total frame length of a kind
func (k Kind) Size() int {
	size, _ := FrameSize(byte(k))
	return size
}

// Valid reports whether k is a known message kind
func (k Kind) Valid() bool {
	return k < kindCount
}

func (k Kind) String() string {
	switch k {
	case KindOk:
		return "ok"
	case KindError:
		return "error"
	case KindAbort:
		return "abort"
	case KindDone:
		return "done"
	case KindGetVersion:
		return "get_version"
	case KindVersion:
		return "version"
	case KindStartup:
		return "startup"
	case KindComputeParameters:
		return "compute_parameters"
	case KindChunkDescriptor:
		return "chunk_descriptor"
	case KindPixelResult:
		return "pixel_result"
	default:
		return "unknown"
	}
}
