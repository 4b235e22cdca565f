// Package supervisor provides restart-on-crash fault isolation for the
// engine's long-running actors. A fault inside one child never cascades to
// its siblings.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RestartPolicy controls what happens when a supervised child stops.
type RestartPolicy string

const (
	// Permanent children are always restarted until the context ends.
	// Used for critical singletons (scheduler, pool, reconciler).
	Permanent RestartPolicy = "permanent"
	// Transient children are restarted only after an error or panic.
	Transient RestartPolicy = "transient"
	// Temporary children are never restarted.
	Temporary RestartPolicy = "temporary"
)

// Logger is the minimal logging surface the supervisor needs.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Supervisor owns a set of child goroutines and their restart policies.
type Supervisor struct {
	logger  Logger
	backoff time.Duration
	wg      sync.WaitGroup
}

// New returns a supervisor restarting children after the given backoff.
// Restart latency is kept small: a crashed actor must be back before the
// next reconciliation period elapses.
func New(logger Logger, backoff time.Duration) *Supervisor {
	if backoff <= 0 {
		backoff = 50 * time.Millisecond
	}
	return &Supervisor{logger: logger, backoff: backoff}
}

// Supervise launches run under the given policy. An OnRestart hook, when
// non-nil, runs before each relaunch so the child can reconstruct itself
// from its last durable checkpoint instead of empty state.
func (s *Supervisor) Supervise(ctx context.Context, name string, policy RestartPolicy, run func(context.Context) error, onRestart func() error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			err := s.runOnce(ctx, name, run)
			if ctx.Err() != nil {
				s.logger.Infof("Supervised %s stopped: context done", name)
				return
			}
			switch {
			case policy == Temporary:
				return
			case policy == Transient && err == nil:
				return
			}
			if err != nil {
				s.logger.Errorf("Supervised %s crashed: %v; restarting in %s", name, err, s.backoff)
			} else {
				s.logger.Warnf("Supervised %s exited; restarting in %s", name, s.backoff)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.backoff):
			}
			if onRestart != nil {
				if rerr := onRestart(); rerr != nil {
					s.logger.Errorf("Restart hook for %s failed: %v", name, rerr)
				}
			}
		}
	}()
}

func (s *Supervisor) runOnce(ctx context.Context, name string, run func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", name, r)
		}
	}()
	return run(ctx)
}

// Wait blocks until every supervised child has stopped for good.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}
