package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Encode returns the complete wire frame for m
func Encode(m Message) []byte {
	return AppendFrame(make([]byte, 0, m.Kind().Size()), m)
}

// AppendFrame appends the wire frame for m to dst and returns the extended slice
func AppendFrame(dst []byte, m Message) []byte {
	start := len(dst)
	dst = append(dst, byte(m.Kind()))

	switch v := m.(type) {
	case Version:
		dst = append(dst, v.Major, v.Minor, v.Patch)
	case Startup:
		dst = append(dst, v.Greeting[:]...)
	case ComputeParameters:
		dst = appendFloat(dst, v.CRe)
		dst = appendFloat(dst, v.CIm)
		dst = appendFloat(dst, v.DRe)
		dst = appendFloat(dst, v.DIm)
		dst = append(dst, v.IterationCap)
	case ChunkDescriptor:
		dst = append(dst, v.ChunkID)
		dst = appendFloat(dst, v.OriginRe)
		dst = appendFloat(dst, v.OriginIm)
		dst = append(dst, v.Width, v.Height)
	case PixelResult:
		dst = append(dst, v.ChunkID, v.X, v.Y, v.Iterations)
	}

	return append(dst, Checksum(dst[start:]))
}

// Decode parses one complete frame. Any malformed input yields an error
// wrapping ErrCorruptFrame and no message.
func Decode(frame []byte) (Message, error) {
	if len(frame) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrCorruptFrame)
	}
	size, ok := FrameSize(frame[0])
	if !ok {
		return nil, fmt.Errorf("%w: unknown message type 0x%02x", ErrCorruptFrame, frame[0])
	}
	if len(frame) != size {
		return nil, fmt.Errorf("%w: %s frame is %d bytes, want %d",
			ErrCorruptFrame, Kind(frame[0]), len(frame), size)
	}
	if !ValidChecksum(frame) {
		return nil, fmt.Errorf("%w: checksum mismatch on %s frame (got 0x%02x want 0x%02x)",
			ErrCorruptFrame, Kind(frame[0]), frame[size-1], Checksum(frame[:size-1]))
	}

	p := frame[HeaderSize : size-TrailerSize]
	switch Kind(frame[0]) {
	case KindOk:
		return Ok{}, nil
	case KindError:
		return Error{}, nil
	case KindAbort:
		return Abort{}, nil
	case KindDone:
		return Done{}, nil
	case KindGetVersion:
		return GetVersion{}, nil
	case KindVersion:
		return Version{Major: p[0], Minor: p[1], Patch: p[2]}, nil
	case KindStartup:
		var s Startup
		copy(s.Greeting[:], p)
		return s, nil
	case KindComputeParameters:
		return ComputeParameters{
			CRe:          readFloat(p[0:]),
			CIm:          readFloat(p[8:]),
			DRe:          readFloat(p[16:]),
			DIm:          readFloat(p[24:]),
			IterationCap: p[32],
		}, nil
	case KindChunkDescriptor:
		return ChunkDescriptor{
			ChunkID:  p[0],
			OriginRe: readFloat(p[1:]),
			OriginIm: readFloat(p[9:]),
			Width:    p[17],
			Height:   p[18],
		}, nil
	case KindPixelResult:
		return PixelResult{ChunkID: p[0], X: p[1], Y: p[2], Iterations: p[3]}, nil
	}

	// unreachable while frameSizes covers every kind
	return nil, fmt.Errorf("%w: unhandled message type 0x%02x", ErrCorruptFrame, frame[0])
}

func appendFloat(dst []byte, f float64) []byte {
	return binary.LittleEndian.AppendUint64(dst, math.Float64bits(f))
}

func readFloat(b []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}
