package storage

import "github.com/lprior-repo/oya-sub002/pkg/models"

// Store is the durable append-only event log plus checkpoint storage. It is
// the sole source of truth for recovery. Implementations permit exactly one
// writer process but any number of concurrent snapshot readers; every read
// returns a copy and never observes a partial write.
type Store interface {
	// Event operations
	AppendEvent(e models.Event) (int64, error)
	Events(fromID int64) ([]models.Event, error)
	EventsForBead(beadID string) ([]models.Event, error)
	LastEventID() (int64, error)

	// Checkpoint operations
	SaveCheckpoint(state models.CheckpointState, lastEventID int64) (int64, error)
	LatestCheckpoint() (*models.Checkpoint, error)
	PruneCheckpoints(keep int) error

	Close() error
}
