package storage

import (
	"database/sql"
	"embed"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/lprior-repo/oya-sub002/pkg/models"
	"github.com/lprior-repo/oya-sub002/pkg/storage"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Logger is the minimal logging surface the store needs.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// SQLiteStore is the durable single-writer event store. Appends are
// serialized through one mutex; reads run concurrently against WAL snapshots
// and copy rows out, so no reader observes a partial write.
type SQLiteStore struct {
	db      *sqlx.DB
	lock    *fileLock
	logger  Logger
	writeMu sync.Mutex
}

// Open initializes the store under dir, acquiring the exclusive write lock
// and applying schema migrations. A second live instance against the same
// dir fails fast with AlreadyRunningError.
func Open(dir string, logger Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrapf(err, "create data dir %s", dir)
	}
	lock, err := acquireLock(dir)
	if err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, "events.db")
	db, err := sqlx.Open("sqlite3", "file:"+dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		_ = lock.release()
		return nil, errors.Wrapf(err, "open %s", dbPath)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		_ = lock.release()
		return nil, errors.Wrapf(err, "ping %s", dbPath)
	}
	if err := applyMigrations(db); err != nil {
		_ = db.Close()
		_ = lock.release()
		return nil, err
	}
	return &SQLiteStore{db: db, lock: lock, logger: logger}, nil
}

func applyMigrations(db *sqlx.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return errors.Wrap(err, "load embedded migrations")
	}
	driver, err := sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	if err != nil {
		return errors.Wrap(err, "init migration driver")
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return errors.Wrap(err, "init migrations")
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return errors.Wrap(err, "apply migrations")
	}
	return nil
}

// AppendEvent appends one event and returns its monotonically increasing id.
func (s *SQLiteStore) AppendEvent(e models.Event) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	res, err := s.db.Exec(
		"INSERT INTO events (timestamp, bead_id, kind, payload) VALUES (?, ?, ?, ?)",
		e.Timestamp, e.BeadID, e.Kind, e.Payload)
	if err != nil {
		return 0, errors.Wrap(err, "append event")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "append event id")
	}
	return id, nil
}

// Events returns a copied snapshot of all events with id greater than fromID.
func (s *SQLiteStore) Events(fromID int64) ([]models.Event, error) {
	var out []models.Event
	if err := s.db.Select(&out, "SELECT * FROM events WHERE id > ? ORDER BY id", fromID); err != nil {
		return nil, errors.Wrap(err, "read events")
	}
	return out, nil
}

// EventsForBead returns a copied snapshot of the events of one bead.
func (s *SQLiteStore) EventsForBead(beadID string) ([]models.Event, error) {
	var out []models.Event
	if err := s.db.Select(&out, "SELECT * FROM events WHERE bead_id = ? ORDER BY id", beadID); err != nil {
		return nil, errors.Wrap(err, "read bead events")
	}
	return out, nil
}

// LastEventID returns the id of the newest event, 0 for an empty log.
func (s *SQLiteStore) LastEventID() (int64, error) {
	var id sql.NullInt64
	if err := s.db.Get(&id, "SELECT MAX(id) FROM events"); err != nil {
		return 0, errors.Wrap(err, "read last event id")
	}
	return id.Int64, nil
}

// SaveCheckpoint serializes the state snapshot tagged with the last included
// event id.
func (s *SQLiteStore) SaveCheckpoint(state models.CheckpointState, lastEventID int64) (int64, error) {
	blob, err := json.Marshal(state)
	if err != nil {
		return 0, errors.Wrap(err, "serialize checkpoint")
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	res, err := s.db.Exec(
		"INSERT INTO checkpoints (last_event_id, state, created_at) VALUES (?, ?, ?)",
		lastEventID, blob, time.Now())
	if err != nil {
		return 0, errors.Wrap(err, "save checkpoint")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "save checkpoint id")
	}
	s.logger.Infof("Saved checkpoint %d at event %d", id, lastEventID)
	return id, nil
}

// LatestCheckpoint returns the newest checkpoint whose state deserializes
// cleanly. Corrupt checkpoints are skipped with a logged warning; if none
// are valid the caller falls back to full replay from the start of the log.
func (s *SQLiteStore) LatestCheckpoint() (*models.Checkpoint, error) {
	var cps []models.Checkpoint
	if err := s.db.Select(&cps, "SELECT * FROM checkpoints ORDER BY id DESC"); err != nil {
		return nil, errors.Wrap(err, "read checkpoints")
	}
	for i := range cps {
		var state models.CheckpointState
		if err := json.Unmarshal(cps[i].State, &state); err != nil {
			s.logger.Warnf("Checkpoint %d is corrupt, skipping: %v", cps[i].ID, err)
			continue
		}
		return &cps[i], nil
	}
	if len(cps) > 0 {
		s.logger.Warnf("No valid checkpoint found among %d, falling back to full replay", len(cps))
	}
	return nil, nil
}

// PruneCheckpoints deletes all but the newest keep checkpoints.
func (s *SQLiteStore) PruneCheckpoints(keep int) error {
	if keep < 0 {
		return errors.New("keep must be non-negative")
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.db.Exec(
		"DELETE FROM checkpoints WHERE id NOT IN (SELECT id FROM checkpoints ORDER BY id DESC LIMIT ?)",
		keep)
	return errors.Wrap(err, "prune checkpoints")
}

// Close releases the database and the write lock.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		_ = s.lock.release()
		return errors.Wrap(err, "close db")
	}
	return s.lock.release()
}

var _ storage.Store = (*SQLiteStore)(nil)
