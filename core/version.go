package core

import "fractalink/protocol"

// Firmware version reported in reply to GetVersion
const (
	VersionMajor = 1
	VersionMinor = 1
	VersionPatch = 0
)

// Greeting is sent in the Startup frame at boot (9 bytes of UTF-8)
const Greeting = "ツツツ"

// FirmwareVersion returns the version as a protocol message
func FirmwareVersion() protocol.Version {
	return protocol.Version{Major: VersionMajor, Minor: VersionMinor, Patch: VersionPatch}
}
