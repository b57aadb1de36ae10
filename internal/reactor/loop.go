// Package reactor provides the single logical thread on which all mirror
// deliveries, session transitions and mutation read phases run.
package reactor

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

var ErrStopped = errors.New("reactor stopped")

// Loop runs reactions one at a time, in the order they were posted.
// State touched only from reactions needs no locking.
type Loop struct {
	reactions chan func()
	stopped   chan struct{}
	stopOnce  sync.Once
	log       *zap.SugaredLogger
}

func New(buffer int, log *zap.SugaredLogger) *Loop {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Loop{
		reactions: make(chan func(), buffer),
		stopped:   make(chan struct{}),
		log:       log,
	}
}

// Run drains reactions until ctx is done. Pending reactions are dropped.
func (l *Loop) Run(ctx context.Context) {
	defer l.stopOnce.Do(func() { close(l.stopped) })

	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-l.reactions:
			l.react(fn)
		}
	}
}

func (l *Loop) react(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Errorw("reaction panicked", "panic", r)
		}
	}()
	fn()
}

// Post enqueues fn from outside the loop. It reports false when the loop
// has stopped. It must not be called from a reaction.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.stopped:
		return false
	default:
	}
	select {
	case l.reactions <- fn:
		return true
	case <-l.stopped:
		return false
	}
}

// Do runs fn on the loop and waits for it to finish.
// It must not be called from a reaction.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}

	select {
	case l.reactions <- wrapped:
	case <-l.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-l.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stopped is closed once Run has returned.
func (l *Loop) Stopped() <-chan struct{} {
	return l.stopped
}
