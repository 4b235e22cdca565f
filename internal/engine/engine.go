// Package engine wires the scheduler, worker pool, reconciliation loop and
// event store into one supervised process and owns recovery: on start it
// loads the latest valid checkpoint and replays the events recorded after
// it.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/lprior-repo/oya-sub002/internal/config"
	"github.com/lprior-repo/oya-sub002/pkg/models"
	"github.com/lprior-repo/oya-sub002/pkg/reconciler"
	"github.com/lprior-repo/oya-sub002/pkg/scheduler"
	"github.com/lprior-repo/oya-sub002/pkg/storage"
	"github.com/lprior-repo/oya-sub002/pkg/supervisor"
	"github.com/lprior-repo/oya-sub002/pkg/worker"
)

// Logger is the minimal logging surface the engine needs.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Engine owns the component actors and the recovery procedure.
type Engine struct {
	cfg    config.Config
	logger Logger
	store  storage.Store
	sched  *scheduler.Scheduler
	pool   *worker.Pool
	loop   *reconciler.Loop
}

// New builds the engine on an already opened store and restores state from
// the latest valid checkpoint plus event replay.
func New(cfg config.Config, store storage.Store, logger Logger) (*Engine, error) {
	sched := scheduler.NewScheduler(store, logger)
	pool := worker.NewPool(worker.Config{
		HeartbeatTimeout: cfg.HeartbeatTimeout,
		MaxFailures:      cfg.MaxFailures,
	}, store, logger)
	loop := reconciler.NewLoop(reconciler.Config{
		TickPeriod:     cfg.TickPeriod,
		StuckThreshold: cfg.StuckThreshold,
	}, sched, pool, store, logger)
	return &Engine{
		cfg:    cfg,
		logger: logger,
		store:  store,
		sched:  sched,
		pool:   pool,
		loop:   loop,
	}, nil
}

// Run starts every actor under a permanent-restart supervision tree and
// blocks until the context ends.
func (e *Engine) Run(ctx context.Context) error {
	sup := supervisor.New(e.logger, 50*time.Millisecond)
	sup.Supervise(ctx, "scheduler", supervisor.Permanent, e.sched.Run, nil)
	sup.Supervise(ctx, "worker-pool", supervisor.Permanent, e.pool.Run, nil)

	if err := e.restore(); err != nil {
		return errors.Wrap(err, "restore state")
	}
	for i := 0; i < e.cfg.Workers; i++ {
		if _, err := e.pool.Spawn(); err != nil {
			return errors.Wrap(err, "spawn worker")
		}
	}

	sup.Supervise(ctx, "reconciler", supervisor.Permanent, e.loop.Run, nil)
	sup.Supervise(ctx, "dispatcher", supervisor.Permanent, e.dispatchLoop, nil)
	sup.Supervise(ctx, "checkpointer", supervisor.Permanent, e.checkpointLoop, nil)

	e.logger.Infof("Engine running with %d workers, tick period %s", e.cfg.Workers, e.cfg.TickPeriod)
	sup.Wait()
	return ctx.Err()
}

// restore loads the latest valid checkpoint and replays only the events
// recorded after its tagged id. With no usable checkpoint the whole log is
// replayed from the start.
func (e *Engine) restore() error {
	cp, err := e.store.LatestCheckpoint()
	if err != nil {
		return errors.Wrap(err, "load checkpoint")
	}
	var replayFrom int64
	if cp != nil {
		var state models.CheckpointState
		if err := json.Unmarshal(cp.State, &state); err != nil {
			return errors.Wrapf(err, "decode checkpoint %d", cp.ID)
		}
		if err := e.sched.Restore(state.Workflows); err != nil {
			return err
		}
		replayFrom = cp.LastEventID
		e.logger.Infof("Restored checkpoint %d (events through %d)", cp.ID, cp.LastEventID)
	}
	events, err := e.store.Events(replayFrom)
	if err != nil {
		return errors.Wrap(err, "read events for replay")
	}
	if len(events) > 0 {
		if err := e.sched.Replay(events); err != nil {
			return err
		}
		e.logger.Infof("Replayed %d events after id %d", len(events), replayFrom)
	}
	return nil
}

// dispatchLoop pairs ready beads with idle workers. Claim failures are
// benign races against the pool's own state machine and are retried on the
// next pass.
func (e *Engine) dispatchLoop(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.DispatchPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.dispatchOnce()
		}
	}
}

func (e *Engine) dispatchOnce() {
	idle := e.pool.IdleWorkers()
	if len(idle) == 0 {
		return
	}
	for _, wf := range e.sched.Workflows() {
		if len(idle) == 0 {
			return
		}
		ready, err := e.sched.ReadyBeads(wf.ID)
		if err != nil {
			e.logger.Warnf("Dispatch skipped workflow %s: %v", wf.ID, err)
			continue
		}
		for _, bead := range ready {
			if len(idle) == 0 {
				return
			}
			w := idle[0]
			if err := e.pool.Claim(w.ID, bead.ID); err != nil {
				var taken *worker.BeadAlreadyAssignedError
				if errors.As(err, &taken) {
					// The bead is held elsewhere; the worker stays available
					// for the next candidate.
					continue
				}
				e.logger.Warnf("Claim of worker %s for bead %s failed: %v", w.ID, bead.ID, err)
				idle = idle[1:]
				continue
			}
			if err := e.sched.Assign(wf.ID, bead.ID, w.ID); err != nil {
				e.logger.Warnf("Assign of bead %s to worker %s failed: %v", bead.ID, w.ID, err)
				if rerr := e.pool.Release(w.ID); rerr != nil {
					e.logger.Errorf("Release of worker %s after failed assign: %v", w.ID, rerr)
				}
				continue
			}
			idle = idle[1:]
		}
	}
}

// checkpointLoop periodically snapshots engine state and prunes superseded
// checkpoints.
func (e *Engine) checkpointLoop(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.CheckpointInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := e.Checkpoint(); err != nil {
				e.logger.Errorf("Checkpoint failed: %v", err)
			}
		}
	}
}

// Checkpoint snapshots {workflow states, worker assignments, completed sets}
// tagged with the last included event id.
func (e *Engine) Checkpoint() error {
	lastID, err := e.store.LastEventID()
	if err != nil {
		return errors.Wrap(err, "last event id")
	}
	state := models.CheckpointState{
		Workflows:         e.sched.CheckpointWorkflows(),
		WorkerAssignments: make(map[string]string),
	}
	for _, w := range e.pool.Workers() {
		if w.AssignedBead != "" {
			state.WorkerAssignments[w.ID] = w.AssignedBead
		}
	}
	id, err := e.store.SaveCheckpoint(state, lastID)
	if err != nil {
		return err
	}
	if _, err := e.store.AppendEvent(models.Event{
		Kind:    models.CheckpointSavedEvent,
		Payload: fmt.Sprintf(`{"checkpoint_id":%d}`, id),
	}); err != nil {
		e.logger.Errorf("Failed to record checkpoint event: %v", err)
	}
	return e.store.PruneCheckpoints(e.cfg.CheckpointRetention)
}

// Scheduler exposes the scheduler for upstream producers.
func (e *Engine) Scheduler() *scheduler.Scheduler { return e.sched }

// Pool exposes the worker pool for worker-facing transports.
func (e *Engine) Pool() *worker.Pool { return e.pool }
