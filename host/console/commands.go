// Package console turns keyboard input into scheduler commands.
package console

import (
	"fmt"
	"strings"

	"github.com/google/shlex"

	"fractalink/host/events"
)

// KeyBinding pairs a key with the command it issues
type KeyBinding struct {
	Key     byte
	Command events.CommandKind
	Help    string
}

// Keys is the single-key map, in help order
var Keys = []KeyBinding{
	{'1', events.CmdStart, "start a run on the device"},
	{'a', events.CmdAbort, "abort the run"},
	{'g', events.CmdGetVersion, "get the device version"},
	{'s', events.CmdSetParams, "send parameters to the device"},
	{'c', events.CmdCPU, "render on this computer"},
	{'+', events.CmdIncrease, "increase c by 0.1"},
	{'-', events.CmdDecrease, "decrease c by 0.1"},
	{'l', events.CmdClearGrid, "clear the image"},
	{'p', events.CmdRedraw, "redraw the current run"},
	{'e', events.CmdExport, "export the image now"},
	{'h', events.CmdHelp, "show this help"},
	{'q', events.CmdQuit, "quit"},
}

// TranslateKey maps one key press to a command
func TranslateKey(b byte) (events.Command, bool) {
	for _, k := range Keys {
		if k.Key == b {
			return events.Command{Kind: k.Command}, true
		}
	}
	return events.Command{}, false
}

var lineCommands = map[string]events.CommandKind{
	"start":    events.CmdStart,
	"run":      events.CmdStart,
	"abort":    events.CmdAbort,
	"version":  events.CmdGetVersion,
	"params":   events.CmdSetParams,
	"cpu":      events.CmdCPU,
	"increase": events.CmdIncrease,
	"decrease": events.CmdDecrease,
	"clear":    events.CmdClearGrid,
	"redraw":   events.CmdRedraw,
	"export":   events.CmdExport,
	"help":     events.CmdHelp,
	"quit":     events.CmdQuit,
	"exit":     events.CmdQuit,
}

// ParseLine parses one line of typed input. A single character is treated
// as a key press; otherwise the first word names the command, and
// "set KEY VALUE" or "set KEY=VALUE" changes a setting.
func ParseLine(line string) (events.Command, bool, error) {
	words, err := shlex.Split(line)
	if err != nil {
		return events.Command{}, false, fmt.Errorf("parse %q: %w", line, err)
	}
	if len(words) == 0 {
		return events.Command{}, false, nil
	}

	if len(words) == 1 && len(words[0]) == 1 {
		cmd, ok := TranslateKey(words[0][0])
		if !ok {
			return events.Command{}, false, fmt.Errorf("unknown key %q", words[0])
		}
		return cmd, true, nil
	}

	name := strings.ToLower(words[0])
	if name == "set" {
		return parseSet(words[1:])
	}
	kind, ok := lineCommands[name]
	if !ok {
		return events.Command{}, false, fmt.Errorf("unknown command %q", words[0])
	}
	if len(words) > 1 {
		return events.Command{}, false, fmt.Errorf("%s takes no arguments", name)
	}
	return events.Command{Kind: kind}, true, nil
}

func parseSet(args []string) (events.Command, bool, error) {
	var key, value string
	switch len(args) {
	case 1:
		var ok bool
		key, value, ok = strings.Cut(args[0], "=")
		if !ok {
			return events.Command{}, false, fmt.Errorf("set %s: missing value", args[0])
		}
	case 2:
		key, value = args[0], args[1]
	default:
		return events.Command{}, false, fmt.Errorf("usage: set KEY VALUE")
	}
	if key == "" {
		return events.Command{}, false, fmt.Errorf("usage: set KEY VALUE")
	}
	return events.Command{Kind: events.CmdSet, Key: key, Value: value}, true, nil
}
