package protocol

import (
	"errors"
	"testing"
)

func sampleMessages() []Message {
	return []Message{
		Ok{},
		Error{},
		Abort{},
		Done{},
		GetVersion{},
		Version{Major: 1, Minor: 1, Patch: 0},
		NewStartup("hello dev"),
		ComputeParameters{CRe: -0.4, CIm: 0.6, DRe: 0.005, DIm: -0.0045833, IterationCap: 60},
		ChunkDescriptor{ChunkID: 49, OriginRe: 1.28, OriginIm: -0.66, Width: 64, Height: 48},
		PixelResult{ChunkID: 7, X: 63, Y: 47, Iterations: 255},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, m := range sampleMessages() {
		frame := Encode(m)

		if len(frame) != m.Kind().Size() {
			t.Errorf("%s: frame is %d bytes, want %d", m.Kind(), len(frame), m.Kind().Size())
		}
		if frame[0] != byte(m.Kind()) {
			t.Errorf("%s: type byte 0x%02x", m.Kind(), frame[0])
		}

		got, err := Decode(frame)
		if err != nil {
			t.Errorf("%s: decode failed: %v", m.Kind(), err)
			continue
		}
		if got != m {
			t.Errorf("%s: round trip mismatch: got %#v, want %#v", m.Kind(), got, m)
		}
	}
}

func TestFrameSizes(t *testing.T) {
	testCases := []struct {
		kind Kind
		size int
	}{
		{KindOk, 2},
		{KindError, 2},
		{KindAbort, 2},
		{KindDone, 2},
		{KindGetVersion, 2},
		{KindVersion, 5},
		{KindStartup, 11},
		{KindComputeParameters, 35},
		{KindChunkDescriptor, 21},
		{KindPixelResult, 6},
	}

	for _, tc := range testCases {
		size, ok := FrameSize(byte(tc.kind))
		if !ok || size != tc.size {
			t.Errorf("FrameSize(%s) = %d, %v; want %d", tc.kind, size, ok, tc.size)
		}
	}

	if _, ok := FrameSize(byte(kindCount)); ok {
		t.Error("FrameSize accepted an unknown type byte")
	}
	if FrameMax != KindComputeParameters.Size() {
		t.Errorf("FrameMax = %d, want %d", FrameMax, KindComputeParameters.Size())
	}
}

func TestDecodeCorruptChecksum(t *testing.T) {
	for _, m := range sampleMessages() {
		frame := Encode(m)
		for i := range frame {
			bad := append([]byte(nil), frame...)
			bad[i] ^= 0x01

			got, err := Decode(bad)
			if !errors.Is(err, ErrCorruptFrame) {
				t.Errorf("%s byte %d: expected ErrCorruptFrame, got %v", m.Kind(), i, err)
			}
			if got != nil {
				t.Errorf("%s byte %d: corrupt frame decoded to %#v", m.Kind(), i, got)
			}
		}
	}
}

func TestDecodeUnknownType(t *testing.T) {
	frame := []byte{0x42, 0x00}
	frame[1] = Checksum(frame[:1])

	if _, err := Decode(frame); !errors.Is(err, ErrCorruptFrame) {
		t.Errorf("expected ErrCorruptFrame for unknown type, got %v", err)
	}
}

func TestDecodeWrongLength(t *testing.T) {
	frame := Encode(PixelResult{ChunkID: 1, X: 2, Y: 3, Iterations: 4})

	if _, err := Decode(frame[:len(frame)-1]); !errors.Is(err, ErrCorruptFrame) {
		t.Errorf("short frame: expected ErrCorruptFrame, got %v", err)
	}
	if _, err := Decode(append(frame, 0)); !errors.Is(err, ErrCorruptFrame) {
		t.Errorf("long frame: expected ErrCorruptFrame, got %v", err)
	}
	if _, err := Decode(nil); !errors.Is(err, ErrCorruptFrame) {
		t.Errorf("empty frame: expected ErrCorruptFrame, got %v", err)
	}
}

func TestChecksumSumsToFF(t *testing.T) {
	for _, m := range sampleMessages() {
		var sum byte
		for _, b := range Encode(m) {
			sum += b
		}
		if sum != 0xFF {
			t.Errorf("%s: frame sums to 0x%02X, want 0xFF", m.Kind(), sum)
		}
	}
}

func TestAppendFrameKeepsPrefix(t *testing.T) {
	dst := []byte{0xAA, 0xBB}
	dst = AppendFrame(dst, Done{})

	if len(dst) != 4 || dst[0] != 0xAA || dst[1] != 0xBB {
		t.Fatalf("AppendFrame clobbered prefix: %v", dst)
	}
	if _, err := Decode(dst[2:]); err != nil {
		t.Errorf("appended frame does not decode: %v", err)
	}
}

func TestStartupText(t *testing.T) {
	s := NewStartup("hi")
	if s.Text() != "hi" {
		t.Errorf("Text() = %q, want %q", s.Text(), "hi")
	}

	long := NewStartup("0123456789abc")
	if long.Text() != "012345678" {
		t.Errorf("long greeting not truncated: %q", long.Text())
	}
}

func TestVersionString(t *testing.T) {
	if s := (Version{Major: 1, Minor: 1}).String(); s != "1.1" {
		t.Errorf("got %q", s)
	}
	if s := (Version{Major: 2, Minor: 0, Patch: 3}).String(); s != "2.0-p3" {
		t.Errorf("got %q", s)
	}
}
