// Package store archives finished runs and their event logs in a bbolt file.
package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/abdazzam00/biz-dev-agent/pkg/events"
	"github.com/abdazzam00/biz-dev-agent/pkg/executor"
	"github.com/abdazzam00/biz-dev-agent/pkg/synth"
	"github.com/abdazzam00/biz-dev-agent/pkg/task"
)

// Bucket names.
const (
	BucketRuns   = "runs"
	BucketEvents = "events"
	BucketMeta   = "meta"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

// Archive is everything kept about one finished run.
type Archive struct {
	Run        task.RunRecord   `json:"run"`
	Outcome    executor.Outcome `json:"outcome"`
	Workflow   string           `json:"workflow,omitempty"`
	Scratchpad string           `json:"scratchpad,omitempty"`
	// Report holds the options the run was first reported with.
	Report    synth.Options `json:"report_options"`
	Narrative string        `json:"narrative,omitempty"`
}

// Summary is the listing view of an archived run.
type Summary struct {
	ID        string    `json:"id"`
	Goal      string    `json:"goal"`
	Workflow  string    `json:"workflow,omitempty"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	Steps     int       `json:"steps"`
	Done      int       `json:"done"`
	Failed    int       `json:"failed"`
}

// BoltStore is a bbolt-backed run archive.
type BoltStore struct {
	db *bolt.DB
}

// Open opens or creates the archive at path.
func Open(path string) (*BoltStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{BucketRuns, BucketEvents, BucketMeta} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// SaveRun writes or replaces an archive and records it as the latest run.
func (s *BoltStore) SaveRun(a Archive) error {
	if a.Run.ID == "" {
		return errors.New("save run: empty run id")
	}
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket([]byte(BucketRuns)).Put([]byte(a.Run.ID), data); err != nil {
			return err
		}
		return tx.Bucket([]byte(BucketMeta)).Put([]byte("latest"), []byte(a.Run.ID))
	})
}

// GetRun loads an archive. The id "latest" resolves to the last saved run.
func (s *BoltStore) GetRun(id string) (Archive, error) {
	var a Archive
	err := s.db.View(func(tx *bolt.Tx) error {
		if id == "latest" {
			latest := tx.Bucket([]byte(BucketMeta)).Get([]byte("latest"))
			if latest == nil {
				return fmt.Errorf("run latest: %w", ErrNotFound)
			}
			id = string(latest)
		}
		data := tx.Bucket([]byte(BucketRuns)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("run %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &a)
	})
	return a, err
}

// ListRuns returns summaries, newest first.
func (s *BoltStore) ListRuns() ([]Summary, error) {
	var out []Summary
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(BucketRuns)).ForEach(func(k, v []byte) error {
			var a Archive
			if err := json.Unmarshal(v, &a); err != nil {
				return fmt.Errorf("unmarshal run %s: %w", string(k), err)
			}
			out = append(out, Summary{
				ID: a.Run.ID, Goal: a.Run.Goal, Workflow: a.Workflow,
				StartedAt: a.Run.StartedAt, EndedAt: a.Run.EndedAt, Steps: a.Run.Steps,
				Done: a.Outcome.Counts[task.StatusDone], Failed: a.Outcome.Counts[task.StatusFailed],
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

// DeleteRun removes an archive and its events.
func (s *BoltStore) DeleteRun(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		runs := tx.Bucket([]byte(BucketRuns))
		if runs.Get([]byte(id)) == nil {
			return fmt.Errorf("run %s: %w", id, ErrNotFound)
		}
		if err := runs.Delete([]byte(id)); err != nil {
			return err
		}
		evs := tx.Bucket([]byte(BucketEvents))
		if evs.Bucket([]byte(id)) != nil {
			return evs.DeleteBucket([]byte(id))
		}
		return nil
	})
}

// AppendEvent adds an event to a run's log in sequence order.
func (s *BoltStore) AppendEvent(runID string, e events.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.Bucket([]byte(BucketEvents)).CreateBucketIfNotExists([]byte(runID))
		if err != nil {
			return err
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return b.Put(key, data)
	})
}

// Events returns a run's log in append order.
func (s *BoltStore) Events(runID string) ([]events.Event, error) {
	var out []events.Event
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketEvents)).Bucket([]byte(runID))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var e events.Event
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			out = append(out, e)
			return nil
		})
	})
	return out, err
}

// EventSink returns a sink appending to runID's log. Write errors are logged.
func (s *BoltStore) EventSink(runID string, logger *slog.Logger) events.Sink {
	return &eventSink{store: s, runID: runID, logger: logger}
}

type eventSink struct {
	store  *BoltStore
	runID  string
	logger *slog.Logger
}

func (k *eventSink) Publish(e events.Event) {
	if err := k.store.AppendEvent(k.runID, e); err != nil && k.logger != nil {
		k.logger.Warn("archive event", "run_id", k.runID, "error", err)
	}
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
