package console

import (
	"bufio"
	"context"
	"errors"
	"io"

	"go.uber.org/zap"

	"fractalink/host/events"
)

// Mode selects how input is read
type Mode uint8

const (
	ModeLine Mode = iota // one command per line
	ModeKey              // one command per byte, raw terminal
)

// Reader is the user-input producer. It owns nothing but its input; every
// command is handed to the queue.
type Reader struct {
	In    io.Reader
	Out   io.Writer // help and status; nil discards
	Queue *events.Queue
	Log   *zap.Logger
	Mode  Mode
}

// Run reads commands until ctx is done, the user quits, input ends or the
// queue closes. End of input requests shutdown.
func (r *Reader) Run(ctx context.Context) error {
	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}
	out := r.Out
	if out == nil {
		out = io.Discard
	}

	// The pump may stay blocked in Read after Run returns; it only ever
	// hands input to Run and never touches the queue.
	items := make(chan input)
	go r.pump(ctx, items)

	for {
		var in input
		select {
		case <-ctx.Done():
			return nil
		case in = <-items:
		}

		if in.err != nil {
			if errors.Is(in.err, io.EOF) {
				log.Info("input closed")
				return r.push(events.Shutdown(nil))
			}
			log.Error("input failed", zap.Error(in.err))
			return r.push(events.Shutdown(in.err))
		}

		cmd, ok, err := r.decode(in)
		if err != nil {
			Warn(out, "%v (h for help)", err)
			continue
		}
		if !ok {
			continue
		}
		if cmd.Kind == events.CmdHelp {
			PrintHelp(out)
		}

		log.Debug("command", zap.Stringer("command", cmd))
		if err := r.push(events.FromUser(cmd)); err != nil {
			return err
		}
		if cmd.Kind == events.CmdQuit {
			return nil
		}
	}
}

func (r *Reader) decode(in input) (events.Command, bool, error) {
	if r.Mode == ModeKey {
		switch in.key {
		case '\r', '\n', ' ', '\t':
			return events.Command{}, false, nil
		}
		cmd, ok := TranslateKey(in.key)
		if !ok {
			return cmd, false, errors.New("unknown key " + string(rune(in.key)))
		}
		return cmd, true, nil
	}
	return ParseLine(in.line)
}

// push delivers to the queue; a closed queue means shutdown is under way
func (r *Reader) push(e events.Event) error {
	if err := r.Queue.Push(e); err != nil && !errors.Is(err, events.ErrClosed) {
		return err
	}
	return nil
}

type input struct {
	key  byte
	line string
	err  error
}

func (r *Reader) pump(ctx context.Context, items chan<- input) {
	send := func(in input) bool {
		select {
		case items <- in:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if r.Mode == ModeKey {
		buf := make([]byte, 1)
		for {
			n, err := r.In.Read(buf)
			if n == 1 && !send(input{key: buf[0]}) {
				return
			}
			if err != nil {
				send(input{err: err})
				return
			}
		}
	}

	sc := bufio.NewScanner(r.In)
	for sc.Scan() {
		if !send(input{line: sc.Text()}) {
			return
		}
	}
	err := sc.Err()
	if err == nil {
		err = io.EOF
	}
	send(input{err: err})
}
