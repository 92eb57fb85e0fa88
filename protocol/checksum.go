package protocol

// Checksum returns the checksum byte for the frame bytes preceding it.
// The byte is chosen so that the sum of the whole frame, checksum included,
// is 0xFF modulo 256.
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return 0xFF - sum
}

// ValidChecksum reports whether a complete frame carries a matching checksum
func ValidChecksum(frame []byte) bool {
	if len(frame) < FrameMin {
		return false
	}
	return Checksum(frame[:len(frame)-TrailerSize]) == frame[len(frame)-1]
}
