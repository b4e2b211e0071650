// Package routines runs the wrapper's long-lived goroutines under one
// shared context.
//   - Named goroutines (for logging/debug)
//   - Panic recovery
//   - Optional cancel-on-first-error
//   - Graceful stop with timeout-aware waiting
package routines

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	logx "during/pkg/logx"
)

type Group struct {
	ctx    context.Context
	cancel context.CancelFunc

	active int64

	log         logx.Logger
	cancelOnErr bool
	errOnce     sync.Once
	firstErr    atomic.Value // stores error
	doneOnce    sync.Once
	doneCh      chan struct{}
	wg          sync.WaitGroup
}

type Option func(*Group)

func WithLogger(log logx.Logger) Option {
	return func(g *Group) { g.log = log }
}

// If enabled, the first non-nil error from any goroutine cancels the group context.
func WithCancelOnError(enabled bool) Option {
	return func(g *Group) { g.cancelOnErr = enabled }
}

func New(parent context.Context, opts ...Option) *Group {
	ctx, cancel := context.WithCancel(parent)
	g := &Group{
		ctx:    ctx,
		cancel: cancel,
		doneCh: make(chan struct{}),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *Group) Context() context.Context { return g.ctx }

// Cancel cancels the group context without waiting for goroutines to exit.
func (g *Group) Cancel() { g.cancel() }

// Active is a best-effort count of running goroutines.
func (g *Group) Active() int64 { return atomic.LoadInt64(&g.active) }

func (g *Group) Err() error {
	v := g.firstErr.Load()
	if v == nil {
		return nil
	}
	if err, ok := v.(error); ok {
		return err
	}
	return nil
}

func (g *Group) Go(name string, fn func(ctx context.Context) error) {
	if fn == nil {
		return
	}
	atomic.AddInt64(&g.active, 1)
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer atomic.AddInt64(&g.active, -1)

		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("panic in %s: %v", name, r)
				g.log.Error("goroutine panicked", logx.String("name", name), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
				g.fail(err)
			}
		}()

		g.log.Debug("goroutine started", logx.String("name", name))
		err := fn(g.ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			g.fail(fmt.Errorf("%s: %w", name, err))
		}
		g.log.Debug("goroutine stopped", logx.String("name", name))
	}()
}

func (g *Group) Go0(name string, fn func(ctx context.Context)) {
	if fn == nil {
		return
	}
	g.Go(name, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}

func (g *Group) Stop(ctx context.Context) error {
	g.cancel()
	return g.Wait(ctx)
}

func (g *Group) Wait(ctx context.Context) error {
	g.doneOnce.Do(func() {
		go func() {
			g.wg.Wait()
			close(g.doneCh)
		}()
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-g.doneCh:
		return g.Err()
	}
}

func (g *Group) fail(err error) {
	g.errOnce.Do(func() { g.firstErr.Store(err) })
	if g.cancelOnErr {
		g.cancel()
	}
}
