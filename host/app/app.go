// Package app runs the host: a device-frame reader, a user-input reader and
// the scheduler, joined by one event queue.
package app

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"fractalink/host/events"
	"fractalink/host/work"
	"fractalink/protocol"
)

// Link is the device connection as the host sees it
type Link interface {
	work.Sender
	ReadLoop(ctx context.Context, q *events.Queue) error
	Close() error
}

// Input produces user commands onto the queue until ctx is done
type Input interface {
	Run(ctx context.Context) error
}

// InputFunc adapts a function to Input
type InputFunc func(ctx context.Context) error

func (f InputFunc) Run(ctx context.Context) error { return f(ctx) }

// Observer is called on the scheduler goroutine after every event
type Observer func(e events.Event, st work.HostState)

// App owns the three host goroutines and the resources they share
type App struct {
	Link      Link
	Input     Input
	Queue     *events.Queue
	Scheduler *work.Scheduler
	Log       *zap.Logger
	Observe   Observer
}

// Run starts the host and blocks until the user quits, input ends, the
// device link fails or ctx is cancelled. Every goroutine has returned and
// the link is closed when Run returns. The returned error is the fatal
// link or queue error that ended the session, if any.
func (a *App) Run(ctx context.Context) error {
	log := a.Log
	if log == nil {
		log = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := a.Link.ReadLoop(ctx, a.Queue); err != nil {
			log.Debug("device reader stopped", zap.Error(err))
		}
	}()
	go func() {
		defer wg.Done()
		if a.Input == nil {
			return
		}
		if err := a.Input.Run(ctx); err != nil {
			log.Debug("input reader stopped", zap.Error(err))
		}
	}()

	// Closing the queue is what releases a producer blocked in Push, so it
	// must happen when the consumer stops, whatever stopped it.
	stop := context.AfterFunc(ctx, a.Queue.Close)
	defer stop()

	done := make(chan error, 1)
	go func() {
		err := a.consume(log)
		cancel()
		a.Queue.Close()
		done <- err
	}()

	err := <-done
	wg.Wait()

	if left := a.Queue.Drain(); len(left) > 0 {
		log.Debug("events dropped at shutdown", zap.Int("count", len(left)))
	}
	if cerr := a.Link.Close(); cerr != nil && !errors.Is(cerr, protocol.ErrClosed) {
		log.Debug("link close", zap.Error(cerr))
	}
	return err
}

// consume is the scheduler loop: the only code that touches scheduler state
func (a *App) consume(log *zap.Logger) error {
	sched := a.Scheduler
	for {
		e, err := a.Queue.Pop()
		if err != nil {
			if errors.Is(err, events.ErrClosed) {
				a.quiesce(log)
				return nil
			}
			return err
		}

		switch e.Source {
		case events.SourceDevice:
			err = sched.HandleMessage(e.Message)

		case events.SourceUser:
			if e.Command.Kind == events.CmdQuit {
				log.Info("quit requested")
				a.quiesce(log)
				a.observe(e)
				return nil
			}
			err = sched.HandleCommand(e.Command)
			if err != nil && !fatal(err) {
				log.Info("command failed", zap.Stringer("command", e.Command), zap.Error(err))
			}

		case events.SourceShutdown:
			if e.Err != nil {
				log.Error("shutting down", zap.Error(e.Err))
			} else {
				log.Info("shutting down")
			}
			a.quiesce(log)
			a.observe(e)
			return e.Err
		}

		a.observe(e)
		if err != nil && fatal(err) {
			log.Error("device link lost", zap.Error(err))
			return err
		}
	}
}

// quiesce leaves the device idle when the host stops mid-run
func (a *App) quiesce(log *zap.Logger) {
	if !a.Scheduler.State().Running() {
		return
	}
	if err := a.Scheduler.AbortRun(); err != nil {
		log.Debug("abort at shutdown", zap.Error(err))
	}
}

func (a *App) observe(e events.Event) {
	if a.Observe != nil {
		a.Observe(e, a.Scheduler.State())
	}
}

// fatal reports whether err means the device link is gone
func fatal(err error) bool {
	return errors.Is(err, protocol.ErrTransport) ||
		errors.Is(err, protocol.ErrClosed) ||
		errors.Is(err, events.ErrAllocation)
}
