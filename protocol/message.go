package protocol

import "fmt"

// Message is one protocol message. The concrete type is the tag, so the kind
// and the payload can never disagree.
type Message interface {
	Kind() Kind
}

// Ok acknowledges the previously received message
type Ok struct{}

// Error reports that the previously received message was rejected
type Error struct{}

// Abort stops the computation in progress
type Abort struct{}

// Done reports that the requested chunk has been fully computed
type Done struct{}

// GetVersion requests the firmware version
type GetVersion struct{}

// Version carries the firmware version
type Version struct {
	Major uint8
	Minor uint8
	Patch uint8
}

// Startup is the greeting the device sends once at boot
type Startup struct {
	Greeting [GreetingLen]byte
}

// ComputeParameters sets the recurrence constant c, the per-pixel coordinate
// step d and the iteration cap
type ComputeParameters struct {
	CRe          float64
	CIm          float64
	DRe          float64
	DIm          float64
	IterationCap uint8
}

// ChunkDescriptor requests computation of one rectangular chunk whose
// top-left pixel sits at (OriginRe, OriginIm)
type ChunkDescriptor struct {
	ChunkID  uint8
	OriginRe float64
	OriginIm float64
	Width    uint8
	Height   uint8
}

// PixelResult is the iteration count of one pixel, addressed within its chunk
type PixelResult struct {
	ChunkID    uint8
	X          uint8
	Y          uint8
	Iterations uint8
}

func (Ok) Kind() Kind                { return KindOk }
func (Error) Kind() Kind             { return KindError }
func (Abort) Kind() Kind             { return KindAbort }
func (Done) Kind() Kind              { return KindDone }
func (GetVersion) Kind() Kind        { return KindGetVersion }
func (Version) Kind() Kind           { return KindVersion }
func (Startup) Kind() Kind           { return KindStartup }
func (ComputeParameters) Kind() Kind { return KindComputeParameters }
func (ChunkDescriptor) Kind() Kind   { return KindChunkDescriptor }
func (PixelResult) Kind() Kind       { return KindPixelResult }

// NewStartup builds a Startup message, truncating or zero-padding the text
// to the fixed greeting length
func NewStartup(text string) Startup {
	var s Startup
	copy(s.Greeting[:], text)
	return s
}

// Text returns the greeting with trailing zero padding removed
func (s Startup) Text() string {
	n := len(s.Greeting)
	for n > 0 && s.Greeting[n-1] == 0 {
		n--
	}
	return string(s.Greeting[:n])
}

// String formats the version the way the host console prints it:
// "1.1" or "1.1-p2" when a patch level is set
func (v Version) String() string {
	if v.Patch > 0 {
		return fmt.Sprintf("%d.%d-p%d", v.Major, v.Minor, v.Patch)
	}
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Pixels returns the number of pixels in the chunk
func (c ChunkDescriptor) Pixels() int {
	return int(c.Width) * int(c.Height)
}
