// File: cmd/coreparker/follow.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Game log following. A read failure is logged and the log is reopened;
// only cancellation ends the loop.

package main

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/momentics/coreparker/api"
	"github.com/momentics/coreparker/internal/detect"
	"github.com/momentics/coreparker/internal/gamedir"
	"github.com/momentics/coreparker/internal/tail"
)

// lineSource is the part of tail.Tailer the consume loop needs.
type lineSource interface {
	Next(ctx context.Context) (string, error)
}

// eventHandler receives classified log events.
type eventHandler interface {
	Handle(ctx context.Context, ev api.Event)
}

type follower struct {
	gameDir    string
	logDir     string
	candidates []string
	poll       time.Duration
	retry      time.Duration
	log        *slog.Logger

	cur         atomic.Pointer[tail.Tailer]
	prevSkipped atomic.Uint64
	prevLines   atomic.Uint64
}

// Path returns the log currently followed, or "".
func (f *follower) Path() string {
	if t := f.cur.Load(); t != nil {
		return t.Path()
	}
	return ""
}

// Skipped counts dropped lines across every reopen.
func (f *follower) Skipped() uint64 {
	n := f.prevSkipped.Load()
	if t := f.cur.Load(); t != nil {
		n += t.Skipped()
	}
	return n
}

// Delivered counts accepted lines across every reopen.
func (f *follower) Delivered() uint64 {
	n := f.prevLines.Load()
	if t := f.cur.Load(); t != nil {
		n += t.Delivered()
	}
	return n
}

// open waits for a candidate log and opens it at its end. Failures are
// logged and retried; the only error returned is ctx's.
func (f *follower) open(ctx context.Context) (*tail.Tailer, error) {
	for {
		path, err := gamedir.WaitForLog(ctx, f.gameDir, f.logDir, f.candidates, f.log)
		if err != nil {
			return nil, err
		}
		t, err := tail.Open(path, tail.WithPollInterval(f.poll))
		if err == nil {
			f.cur.Store(t)
			f.log.Info("tailing game log", "path", path)
			return t, nil
		}
		f.log.Error("could not open the game log, retrying", "path", path, "err", err)
		if err := sleep(ctx, f.retry); err != nil {
			return nil, err
		}
	}
}

// release closes t and folds its counters into the running totals.
func (f *follower) release(t *tail.Tailer) {
	f.prevSkipped.Add(t.Skipped())
	f.prevLines.Add(t.Delivered())
	f.cur.CompareAndSwap(t, nil)
	_ = t.Close()
}

// run consumes t, then keeps reopening the log after read failures.
func (f *follower) run(ctx context.Context, t *tail.Tailer, h eventHandler) error {
	for {
		err := consume(ctx, t, h)
		f.release(t)
		if ctx.Err() != nil {
			return nil
		}
		f.log.Error("game log read failed, reopening", "path", t.Path(), "err", err)
		if err := sleep(ctx, f.retry); err != nil {
			return nil
		}
		if t, err = f.open(ctx); err != nil {
			return nil
		}
	}
}

// consume classifies lines from src until it fails or ctx ends.
func consume(ctx context.Context, src lineSource, h eventHandler) error {
	for {
		line, err := src.Next(ctx)
		if err != nil {
			return err
		}
		if ev, ok := detect.Classify(line); ok {
			h.Handle(ctx, ev)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
