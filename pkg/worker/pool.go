// Package worker manages the pool of worker handles and their health state
// machine. The pool runs as an actor: all state is owned by the run loop
// goroutine and reached only through queued requests, processed in strict
// arrival order.
package worker

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/lprior-repo/oya-sub002/pkg/models"
	"github.com/lprior-repo/oya-sub002/pkg/storage"
)

// Logger is the minimal logging surface the pool needs.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Config carries the pool's health thresholds.
type Config struct {
	// HeartbeatTimeout is how long a worker may go silent before a sweep
	// counts a missed heartbeat.
	HeartbeatTimeout time.Duration
	// MaxFailures is the number of consecutive missed heartbeats a worker
	// survives. Death requires strictly more than MaxFailures misses: the
	// N-th miss leaves the worker Unhealthy, the (N+1)-th kills it.
	MaxFailures int
}

// Pool owns the worker handle map. Aggregate statistics are derived on
// demand and cached; every mutation invalidates the cache before the next
// read, so a reader never observes pre-mutation counts it causally depends
// on.
type Pool struct {
	cfg      Config
	logger   Logger
	store    storage.Store
	requests chan func()

	// Owned exclusively by the run loop.
	workers    map[string]*models.WorkerHandle
	statsCache *models.PoolStats
}

// NewPool returns a stopped pool; call Run to start processing requests.
func NewPool(cfg Config, store storage.Store, logger Logger) *Pool {
	if cfg.HeartbeatTimeout <= 0 {
		cfg.HeartbeatTimeout = 3 * time.Second
	}
	return &Pool{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		requests: make(chan func(), 64),
		workers:  make(map[string]*models.WorkerHandle),
	}
}

// Run processes queued requests until the context ends. Safe to re-enter
// after a supervisor restart: the handle map survives the crash.
func (p *Pool) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-p.requests:
			req()
		}
	}
}

func (p *Pool) do(fn func()) {
	done := make(chan struct{})
	p.requests <- func() {
		defer close(done)
		fn()
	}
	<-done
}

// Spawn creates a fresh Idle worker handle.
func (p *Pool) Spawn() (models.WorkerHandle, error) {
	var handle models.WorkerHandle
	p.do(func() {
		now := time.Now()
		w := &models.WorkerHandle{
			ID:            uuid.NewString(),
			State:         models.IdleWorkerState,
			LastHeartbeat: now,
			SpawnedAt:     now,
		}
		p.workers[w.ID] = w
		p.statsCache = nil
		p.appendEvent(models.WorkerSpawnedEvent, "", w.ID)
		handle = *w
	})
	return handle, nil
}

// Claim assigns a bead to an Idle worker. A worker in any other state fails
// with AlreadyClaimedError; a bead already held by another worker fails with
// BeadAlreadyAssignedError so at most one worker ever holds it.
func (p *Pool) Claim(workerID, beadID string) error {
	var err error
	p.do(func() {
		w, ok := p.workers[workerID]
		if !ok {
			err = &WorkerNotFoundError{ID: workerID}
			return
		}
		if w.State == models.ClaimedWorkerState && w.AssignedBead == beadID {
			return // idempotent re-claim of the same bead
		}
		if w.State != models.IdleWorkerState {
			err = &AlreadyClaimedError{ID: workerID, State: w.State}
			return
		}
		for _, other := range p.workers {
			if other.State == models.ClaimedWorkerState && other.AssignedBead == beadID {
				err = &BeadAlreadyAssignedError{BeadID: beadID, WorkerID: other.ID}
				return
			}
		}
		w.State = models.ClaimedWorkerState
		w.AssignedBead = beadID
		p.statsCache = nil
	})
	return err
}

// Release returns a Claimed worker to Idle.
func (p *Pool) Release(workerID string) error {
	var err error
	p.do(func() {
		w, ok := p.workers[workerID]
		if !ok {
			err = &WorkerNotFoundError{ID: workerID}
			return
		}
		if w.State != models.ClaimedWorkerState {
			err = &NotClaimedError{ID: workerID, State: w.State}
			return
		}
		w.State = models.IdleWorkerState
		w.AssignedBead = ""
		p.statsCache = nil
	})
	return err
}

// Heartbeat records liveness. An Unhealthy worker recovers to its pre-degrade
// state; a Dead worker stays dead.
func (p *Pool) Heartbeat(workerID string) error {
	var err error
	p.do(func() {
		w, ok := p.workers[workerID]
		if !ok {
			err = &WorkerNotFoundError{ID: workerID}
			return
		}
		if w.State == models.DeadWorkerState || w.State == models.TerminatedWorkerState {
			return
		}
		w.LastHeartbeat = time.Now()
		w.ConsecutiveFailures = 0
		if w.State == models.UnhealthyWorkerState {
			if w.AssignedBead != "" {
				w.State = models.ClaimedWorkerState
			} else {
				w.State = models.IdleWorkerState
			}
		}
		p.statsCache = nil
	})
	return err
}

// CheckHealth sweeps heartbeats against now and advances the state machine:
// a silent Idle/Claimed worker degrades to Unhealthy, and an Unhealthy worker
// whose consecutive misses strictly exceed MaxFailures becomes Dead. The
// comparison uses the monotonic clock carried by time.Time. Returns the
// workers that died in this sweep.
func (p *Pool) CheckHealth(now time.Time) []models.WorkerHandle {
	var died []models.WorkerHandle
	p.do(func() {
		mutated := false
		for _, w := range p.workers {
			switch w.State {
			case models.IdleWorkerState, models.ClaimedWorkerState, models.UnhealthyWorkerState:
			default:
				continue
			}
			if now.Sub(w.LastHeartbeat) <= p.cfg.HeartbeatTimeout {
				continue
			}
			w.ConsecutiveFailures++
			mutated = true
			if w.State != models.UnhealthyWorkerState {
				p.logger.Warnf("Worker %s missed heartbeat (%d consecutive), marking UNHEALTHY", w.ID, w.ConsecutiveFailures)
				w.State = models.UnhealthyWorkerState
			}
			if w.ConsecutiveFailures > p.cfg.MaxFailures {
				p.logger.Errorf("Worker %s exceeded %d consecutive failures, marking DEAD", w.ID, p.cfg.MaxFailures)
				w.State = models.DeadWorkerState
				p.appendEvent(models.WorkerDiedEvent, w.AssignedBead, w.ID)
				died = append(died, *w)
			}
		}
		if mutated {
			p.statsCache = nil
		}
	})
	sort.Slice(died, func(i, j int) bool { return died[i].ID < died[j].ID })
	return died
}

// Replace removes a Dead worker and spawns its replacement. Dead handles are
// never resurrected in place. Replacing an id that is already gone is a
// no-op, so re-emitting the action cannot double-spawn.
func (p *Pool) Replace(deadID string) (models.WorkerHandle, bool, error) {
	var (
		handle   models.WorkerHandle
		replaced bool
	)
	p.do(func() {
		w, ok := p.workers[deadID]
		if !ok || w.State != models.DeadWorkerState {
			return
		}
		delete(p.workers, deadID)
		now := time.Now()
		fresh := &models.WorkerHandle{
			ID:            uuid.NewString(),
			State:         models.IdleWorkerState,
			LastHeartbeat: now,
			SpawnedAt:     now,
		}
		p.workers[fresh.ID] = fresh
		p.statsCache = nil
		p.appendEvent(models.WorkerSpawnedEvent, "", fresh.ID)
		handle = *fresh
		replaced = true
	})
	return handle, replaced, nil
}

// Shutdown marks a worker as draining; Terminate finishes the lifecycle and
// removes the handle.
func (p *Pool) Shutdown(workerID string) error {
	var err error
	p.do(func() {
		w, ok := p.workers[workerID]
		if !ok {
			err = &WorkerNotFoundError{ID: workerID}
			return
		}
		w.State = models.ShuttingDownWorkerState
		p.statsCache = nil
	})
	return err
}

// Terminate removes a worker handle from the pool.
func (p *Pool) Terminate(workerID string) error {
	var err error
	p.do(func() {
		w, ok := p.workers[workerID]
		if !ok {
			err = &WorkerNotFoundError{ID: workerID}
			return
		}
		w.State = models.TerminatedWorkerState
		delete(p.workers, workerID)
		p.statsCache = nil
	})
	return err
}

// Worker returns a copy of one handle.
func (p *Pool) Worker(workerID string) (models.WorkerHandle, error) {
	var (
		handle models.WorkerHandle
		err    error
	)
	p.do(func() {
		w, ok := p.workers[workerID]
		if !ok {
			err = &WorkerNotFoundError{ID: workerID}
			return
		}
		handle = *w
	})
	return handle, err
}

// Workers returns copies of all live handles, sorted by id.
func (p *Pool) Workers() []models.WorkerHandle {
	var out []models.WorkerHandle
	p.do(func() {
		for _, w := range p.workers {
			out = append(out, *w)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IdleWorkers returns copies of the Idle handles, sorted by id.
func (p *Pool) IdleWorkers() []models.WorkerHandle {
	var out []models.WorkerHandle
	p.do(func() {
		for _, w := range p.workers {
			if w.State == models.IdleWorkerState {
				out = append(out, *w)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Stats returns the aggregate counts. The cached value is recomputed only
// after a mutation invalidated it; because cache and mutations live on the
// same queue, Idle+Busy+NeedingAttention always equals Total.
func (p *Pool) Stats() models.PoolStats {
	var stats models.PoolStats
	p.do(func() {
		if p.statsCache == nil {
			s := models.PoolStats{}
			for _, w := range p.workers {
				switch w.State {
				case models.IdleWorkerState:
					s.Idle++
				case models.ClaimedWorkerState:
					s.Busy++
				default:
					s.NeedingAttention++
				}
				s.Total++
			}
			p.statsCache = &s
		}
		stats = *p.statsCache
	})
	return stats
}

func (p *Pool) appendEvent(kind models.EventKind, beadID, workerID string) {
	if p.store == nil {
		return
	}
	if _, err := p.store.AppendEvent(models.Event{
		BeadID:  beadID,
		Kind:    kind,
		Payload: `{"worker_id":"` + workerID + `"}`,
	}); err != nil {
		p.logger.Errorf("Failed to append %s event for worker %s: %v", kind, workerID, err)
	}
}
