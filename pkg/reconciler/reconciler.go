// Package reconciler runs the periodic control loop that diffs declared
// state (assignments) against observed state (heartbeats, the event-log
// tail) and emits idempotent corrective actions through the scheduler and
// worker pool interfaces. The loop never mutates state directly and never
// stops ticking because one dependency was briefly unreachable.
package reconciler

import (
	"context"
	"time"

	"github.com/lprior-repo/oya-sub002/pkg/models"
)

// Logger is the minimal logging surface the loop needs.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// SchedulerClient is the slice of the scheduler the loop acts through.
type SchedulerClient interface {
	Assignments() ([]models.Assignment, error)
	Reschedule(workflowID, beadID string) error
	CancelAndReschedule(workflowID, beadID string) error
}

// PoolClient is the slice of the worker pool the loop acts through.
type PoolClient interface {
	Workers() []models.WorkerHandle
	CheckHealth(now time.Time) []models.WorkerHandle
	Replace(deadID string) (models.WorkerHandle, bool, error)
}

// EventTail reads the event log incrementally for progress signals.
type EventTail interface {
	Events(fromID int64) ([]models.Event, error)
}

// Config carries the loop's tunables. Thresholds are configuration, not
// constants; the acceptance target is a corrective action within two seconds
// of detection at the default one-second period.
type Config struct {
	TickPeriod     time.Duration
	StuckThreshold time.Duration
}

func (c Config) withDefaults() Config {
	if c.TickPeriod <= 0 {
		c.TickPeriod = time.Second
	}
	if c.StuckThreshold <= 0 {
		c.StuckThreshold = 30 * time.Second
	}
	return c
}

// Loop is the reconciliation control loop. It is single-threaded: all state
// belongs to the goroutine running Run (or to the test calling Tick).
type Loop struct {
	cfg    Config
	sched  SchedulerClient
	pool   PoolClient
	events EventTail
	logger Logger

	lastEventID  int64
	lastProgress map[string]time.Time // bead id -> local observation time
	pending      map[string]time.Time // action key -> emission time
}

// NewLoop wires the loop to its collaborators.
func NewLoop(cfg Config, sched SchedulerClient, pool PoolClient, events EventTail, logger Logger) *Loop {
	return &Loop{
		cfg:          cfg.withDefaults(),
		sched:        sched,
		pool:         pool,
		events:       events,
		logger:       logger,
		lastProgress: make(map[string]time.Time),
		pending:      make(map[string]time.Time),
	}
}

// Run ticks on a fixed period until the context ends. A panic inside a tick
// propagates to the supervisor, which restarts the loop with no missed-tick
// gap beyond one period.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.TickPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.Tick(time.Now())
		}
	}
}

// Tick performs one reconciliation pass. Exported so tests can drive the
// loop deterministically.
func (l *Loop) Tick(now time.Time) {
	// Observed state, part 1: the event-log tail. A query failure ends the
	// tick early; the loop itself keeps ticking.
	if err := l.consumeTail(now); err != nil {
		l.logger.Warnf("Reconcile tick aborted: event tail query failed: %v", err)
		return
	}

	// Observed state, part 2: heartbeat sweep through the pool's own
	// public operation.
	l.pool.CheckHealth(now)
	workers := l.pool.Workers()

	// Declared state.
	assignments, err := l.sched.Assignments()
	if err != nil {
		l.logger.Warnf("Reconcile tick aborted: assignments query failed: %v", err)
		return
	}

	actions := l.diff(now, assignments, workers)
	l.prunePending(now)
	for _, a := range actions {
		l.apply(now, a)
	}
}

func (l *Loop) consumeTail(now time.Time) error {
	events, err := l.events.Events(l.lastEventID)
	if err != nil {
		return err
	}
	for _, e := range events {
		if e.ID > l.lastEventID {
			l.lastEventID = e.ID
		}
		switch e.Kind {
		case models.BeadProgressEvent, models.BeadAssignedEvent:
			l.lastProgress[e.BeadID] = now
		case models.BeadCompletedEvent, models.BeadFailedEvent, models.BeadCancelledEvent, models.BeadReleasedEvent:
			delete(l.lastProgress, e.BeadID)
		}
	}
	return nil
}

// diff computes one corrective action per discrepancy.
func (l *Loop) diff(now time.Time, assignments []models.Assignment, workers []models.WorkerHandle) []models.CorrectiveAction {
	alive := make(map[string]bool, len(workers))
	for _, w := range workers {
		switch w.State {
		case models.DeadWorkerState, models.TerminatedWorkerState:
		default:
			alive[w.ID] = true
		}
	}

	var actions []models.CorrectiveAction
	for _, a := range assignments {
		if !alive[a.WorkerID] {
			// Orphaned bead: its worker is gone or dead.
			actions = append(actions, models.CorrectiveAction{
				Kind:       models.RescheduleAction,
				WorkflowID: a.WorkflowID,
				BeadID:     a.BeadID,
			})
			continue
		}
		ref, seen := l.lastProgress[a.BeadID]
		if !seen {
			ref = a.Since
		}
		if now.Sub(ref) > l.cfg.StuckThreshold {
			actions = append(actions, models.CorrectiveAction{
				Kind:       models.CancelAndRescheduleAction,
				WorkflowID: a.WorkflowID,
				BeadID:     a.BeadID,
			})
		}
	}
	for _, w := range workers {
		if w.State == models.DeadWorkerState {
			actions = append(actions, models.CorrectiveAction{
				Kind:     models.RespawnWorkerAction,
				WorkerID: w.ID,
			})
		}
	}
	return actions
}

// apply emits one action. A still-pending identical action is skipped: all
// actions are idempotent, but re-emitting before the first takes effect is
// pointless churn. An application failure is logged and retried on the next
// tick, never immediately.
func (l *Loop) apply(now time.Time, a models.CorrectiveAction) {
	if _, inflight := l.pending[a.Key()]; inflight {
		return
	}
	var err error
	switch a.Kind {
	case models.RescheduleAction:
		err = l.sched.Reschedule(a.WorkflowID, a.BeadID)
	case models.CancelAndRescheduleAction:
		err = l.sched.CancelAndReschedule(a.WorkflowID, a.BeadID)
		if err == nil {
			delete(l.lastProgress, a.BeadID)
		}
	case models.RespawnWorkerAction:
		var (
			fresh    models.WorkerHandle
			replaced bool
		)
		fresh, replaced, err = l.pool.Replace(a.WorkerID)
		if err == nil && replaced {
			l.logger.Infof("Respawned worker %s as %s", a.WorkerID, fresh.ID)
		}
	}
	if err != nil {
		l.logger.Warnf("Corrective action failed, will retry next tick: %s: %v", a, err)
		return
	}
	l.pending[a.Key()] = now
	l.logger.Infof("Applied corrective action: %s", a)
}

// prunePending forgets applied actions once their effect has had two periods
// to land, so a genuinely recurring discrepancy is re-corrected.
func (l *Loop) prunePending(now time.Time) {
	ttl := 2 * l.cfg.TickPeriod
	for key, at := range l.pending {
		if now.Sub(at) > ttl {
			delete(l.pending, key)
		}
	}
}
