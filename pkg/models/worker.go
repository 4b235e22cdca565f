package models

import "time"

type WorkerState string

const (
	IdleWorkerState         WorkerState = "IDLE"
	ClaimedWorkerState      WorkerState = "CLAIMED"
	UnhealthyWorkerState    WorkerState = "UNHEALTHY"
	DeadWorkerState         WorkerState = "DEAD"
	ShuttingDownWorkerState WorkerState = "SHUTTING_DOWN"
	TerminatedWorkerState   WorkerState = "TERMINATED"
)

// WorkerHandle tracks one worker process. A worker executes at most one bead
// at a time; a Dead handle is removed and replaced, never resurrected.
type WorkerHandle struct {
	ID                  string      `json:"id" db:"id"`
	State               WorkerState `json:"state" db:"state"`
	AssignedBead        string      `json:"assigned_bead,omitempty" db:"assigned_bead"` // Empty when not Claimed
	LastHeartbeat       time.Time   `json:"last_heartbeat" db:"last_heartbeat"`
	ConsecutiveFailures int         `json:"consecutive_failures" db:"consecutive_failures"`
	SpawnedAt           time.Time   `json:"spawned_at" db:"spawned_at"`
}

// PoolStats are the aggregate counts derived from the live worker map.
// Idle + Busy + NeedingAttention always equals Total.
type PoolStats struct {
	Idle             int `json:"idle"`
	Busy             int `json:"busy"`
	NeedingAttention int `json:"needing_attention"` // Unhealthy, Dead, ShuttingDown handles still in the map
	Total            int `json:"total"`
}
