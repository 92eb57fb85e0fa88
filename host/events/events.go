// Package events carries everything the scheduler reacts to through one
// bounded queue: frames from the device, commands from the user and the
// shutdown request.
package events

import (
	"fmt"

	"fractalink/protocol"
)

// Source identifies who produced an event
type Source uint8

const (
	SourceDevice Source = iota + 1
	SourceUser
	SourceShutdown
)

func (s Source) String() string {
	switch s {
	case SourceDevice:
		return "device"
	case SourceUser:
		return "user"
	case SourceShutdown:
		return "shutdown"
	default:
		return fmt.Sprintf("source(%d)", uint8(s))
	}
}

// CommandKind is a decoded user command
type CommandKind uint8

const (
	CmdStart      CommandKind = iota + 1 // start a device run
	CmdAbort                             // abort the run in flight
	CmdGetVersion                        // ask the device for its version
	CmdSetParams                         // push parameters without starting
	CmdCPU                               // render the grid locally
	CmdIncrease                          // nudge c up
	CmdDecrease                          // nudge c down
	CmdClearGrid                         // blank the displayed grid
	CmdRedraw                            // show the current run's pixels
	CmdExport                            // export the displayed grid now
	CmdSet                               // change one parameter (Key=Value)
	CmdHelp                              // print the key map
	CmdQuit                              // shut down
)

var commandNames = map[CommandKind]string{
	CmdStart:      "start",
	CmdAbort:      "abort",
	CmdGetVersion: "version",
	CmdSetParams:  "params",
	CmdCPU:        "cpu",
	CmdIncrease:   "increase",
	CmdDecrease:   "decrease",
	CmdClearGrid:  "clear",
	CmdRedraw:     "redraw",
	CmdExport:     "export",
	CmdSet:        "set",
	CmdHelp:       "help",
	CmdQuit:       "quit",
}

func (k CommandKind) String() string {
	if name, ok := commandNames[k]; ok {
		return name
	}
	return fmt.Sprintf("command(%d)", uint8(k))
}

// Command is one user request. Key and Value are only used by CmdSet.
type Command struct {
	Kind  CommandKind
	Key   string
	Value string
}

func (c Command) String() string {
	if c.Kind == CmdSet {
		return fmt.Sprintf("set %s=%s", c.Key, c.Value)
	}
	return c.Kind.String()
}

// Event is one queue slot. The slot owns Message until Pop hands it to the
// consumer; producers must not touch it after Push.
type Event struct {
	Source  Source
	Message protocol.Message // SourceDevice
	Command Command          // SourceUser
	Err     error            // SourceShutdown: why, nil for a clean quit
}

// FromDevice wraps an inbound frame
func FromDevice(m protocol.Message) Event {
	return Event{Source: SourceDevice, Message: m}
}

// FromUser wraps a decoded command
func FromUser(c Command) Event {
	return Event{Source: SourceUser, Command: c}
}

// Shutdown asks the consumer to stop. err records a fatal cause.
func Shutdown(err error) Event {
	return Event{Source: SourceShutdown, Err: err}
}

func (e Event) String() string {
	switch e.Source {
	case SourceDevice:
		if e.Message == nil {
			return "device:<nil>"
		}
		return "device:" + e.Message.Kind().String()
	case SourceUser:
		return "user:" + e.Command.String()
	case SourceShutdown:
		if e.Err != nil {
			return "shutdown:" + e.Err.Error()
		}
		return "shutdown"
	default:
		return e.Source.String()
	}
}
