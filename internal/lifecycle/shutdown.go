package lifecycle

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"golang.org/x/sync/errgroup"
)

// CleanupFunc is one independent teardown step, run in parallel with the
// others during shutdown.
type CleanupFunc func() error

// Controller coordinates graceful shutdown: it sets shuttingDown, runs every
// registered cleanup step in parallel, then either exits or re-execs.
type Controller struct {
	shuttingDown atomic.Bool
	cleanups     []CleanupFunc
}

// NewController returns an empty shutdown coordinator.
func NewController() *Controller {
	return &Controller{}
}

// OnShutdown registers a cleanup step. Steps run concurrently, so each must
// be independent (voice worker teardown, Agent supervisor shutdown, closing
// the database, destroying the gateway client).
func (c *Controller) OnShutdown(fn CleanupFunc) {
	c.cleanups = append(c.cleanups, fn)
}

// ShuttingDown reports whether shutdown has started.
func (c *Controller) ShuttingDown() bool {
	return c.shuttingDown.Load()
}

// runCleanups marks shuttingDown and runs every registered step in
// parallel, returning the first error (if any) after all steps finish.
func (c *Controller) runCleanups() error {
	c.shuttingDown.Store(true)
	var g errgroup.Group
	for _, fn := range c.cleanups {
		fn := fn
		g.Go(fn)
	}
	return g.Wait()
}

// Wait blocks until a termination or self-restart signal arrives, runs
// cleanup, and then either returns (caller should exit) or re-execs the
// process in place with the original argv and environment.
//
// SIGINT/SIGTERM: cleanup then return.
// SIGUSR2: cleanup then re-exec, never returning on success.
func (c *Controller) Wait(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR2)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
		return c.runCleanups()
	case sig := <-sigCh:
		if err := c.runCleanups(); err != nil {
			return err
		}
		if sig == syscall.SIGUSR2 {
			return c.reexec()
		}
		return nil
	}
}

// reexec replaces the running process image with a fresh copy of itself,
// same argv and environment, skipping the normal exit path.
func (c *Controller) reexec() error {
	self, err := os.Executable()
	if err != nil {
		return err
	}
	return syscall.Exec(self, os.Args, os.Environ())
}
