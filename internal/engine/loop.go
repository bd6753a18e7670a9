// Package engine runs the single goroutine that owns every store. All reads
// and mutations of claims, modes, invitations, reputation and PVP areas go
// through Do or Post.
package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"peaceclaims.dev/internal/protocol"
)

type Config struct {
	Logger *log.Logger
	// InboxSize bounds queued closures; Post blocks when it is full.
	InboxSize int
	// SweepEvery is the period of OnSweep; zero disables it.
	SweepEvery time.Duration
	OnSweep    func(now time.Time)
	Now        func() time.Time
}

type task struct {
	fn   func()
	done chan struct{}
}

type Loop struct {
	cfg   Config
	inbox chan task
	stop  chan struct{}
	once  sync.Once
}

func New(cfg Config) *Loop {
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = 1024
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Loop{
		cfg:   cfg,
		inbox: make(chan task, cfg.InboxSize),
		stop:  make(chan struct{}),
	}
}

// Run executes queued closures in submission order until ctx is done or Stop
// is called.
func (l *Loop) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if l.cfg.SweepEvery > 0 && l.cfg.OnSweep != nil {
		ticker := time.NewTicker(l.cfg.SweepEvery)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.stop:
			return nil
		case t := <-l.inbox:
			l.run("task", t.fn)
			if t.done != nil {
				close(t.done)
			}
		case <-tick:
			now := l.cfg.Now()
			l.run("sweep", func() { l.cfg.OnSweep(now) })
		}
	}
}

func (l *Loop) Stop() { l.once.Do(func() { close(l.stop) }) }

// Do runs fn on the loop and waits for it. It must not be called from the
// loop itself. If ctx expires first, fn may still run later.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	t := task{fn: fn, done: make(chan struct{})}
	select {
	case l.inbox <- t:
	case <-ctx.Done():
		return protocol.ErrTimedOut
	case <-l.stop:
		return protocol.New(protocol.ErrInternal, "engine_stopped")
	}
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return protocol.ErrTimedOut
	case <-l.stop:
		return protocol.New(protocol.ErrInternal, "engine_stopped")
	}
}

// Post queues fn without waiting for it. It reports false once the loop is
// stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case l.inbox <- task{fn: fn}:
		return true
	case <-l.stop:
		return false
	}
}

func (l *Loop) run(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil && l.cfg.Logger != nil {
			l.cfg.Logger.Printf("%s panic: %v", what, fmt.Sprint(r))
		}
	}()
	fn()
}
