package storage

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/lprior-repo/oya-sub002/pkg/models"
)

// mockStore implements storage.Store with in-memory storage
type mockStore struct {
	mu          sync.RWMutex
	events      []models.Event
	checkpoints []models.Checkpoint
	nextEventID int64
	nextCkptID  int64
	closed      bool
}

func NewMockStore() Store {
	return &mockStore{}
}

func (m *mockStore) AppendEvent(e models.Event) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, errors.New("store closed")
	}
	m.nextEventID++
	e.ID = m.nextEventID
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	m.events = append(m.events, e)
	return e.ID, nil
}

func (m *mockStore) Events(fromID int64) ([]models.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Event
	for _, e := range m.events {
		if e.ID > fromID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockStore) EventsForBead(beadID string) ([]models.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Event
	for _, e := range m.events {
		if e.BeadID == beadID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockStore) LastEventID() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.nextEventID, nil
}

func (m *mockStore) SaveCheckpoint(state models.CheckpointState, lastEventID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	blob, err := json.Marshal(state)
	if err != nil {
		return 0, errors.Wrap(err, "serialize checkpoint")
	}
	m.nextCkptID++
	m.checkpoints = append(m.checkpoints, models.Checkpoint{
		ID:          m.nextCkptID,
		LastEventID: lastEventID,
		State:       blob,
		CreatedAt:   time.Now(),
	})
	return m.nextCkptID, nil
}

func (m *mockStore) LatestCheckpoint() (*models.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.checkpoints) == 0 {
		return nil, nil
	}
	cp := m.checkpoints[len(m.checkpoints)-1]
	return &cp, nil
}

func (m *mockStore) PruneCheckpoints(keep int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if keep < 0 {
		return errors.New("keep must be non-negative")
	}
	if len(m.checkpoints) > keep {
		m.checkpoints = append([]models.Checkpoint(nil), m.checkpoints[len(m.checkpoints)-keep:]...)
	}
	return nil
}

func (m *mockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
