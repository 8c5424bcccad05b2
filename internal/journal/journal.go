// Package journal keeps a local history of sync run reports in badger.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/yourorg/hubsync/internal/types"
)

const (
	runPrefix = "run/"
	idPrefix  = "id/"
)

// Journal is a badger-backed run history. Safe for concurrent use.
type Journal struct {
	db *badger.DB
}

// Open opens (or creates) the journal in dir. An empty dir keeps the
// journal in memory.
func Open(dir string) (*Journal, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close releases the database.
func (j *Journal) Close() error { return j.db.Close() }

// runKey orders reports by start time, then id.
func runKey(rep types.RunReport) []byte {
	return []byte(fmt.Sprintf("%s%020d/%s", runPrefix, rep.StartedAt.UnixNano(), rep.RunID))
}

// Record stores rep, replacing an earlier report with the same run id.
func (j *Journal) Record(rep types.RunReport) error {
	if rep.RunID == "" {
		return ErrNoRunID
	}
	val, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	key := runKey(rep)
	idKey := []byte(idPrefix + rep.RunID)
	return j.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(idKey)
		switch {
		case err == nil:
			old, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := txn.Delete(old); err != nil {
				return err
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		if err := txn.Set(key, val); err != nil {
			return err
		}
		return txn.Set(idKey, key)
	})
}

// Get returns the report recorded for runID.
func (j *Journal) Get(runID string) (types.RunReport, error) {
	var rep types.RunReport
	err := j.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(idPrefix + runID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		key, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		item, err = txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error { return json.Unmarshal(v, &rep) })
	})
	return rep, err
}

// List returns up to limit reports, newest first. limit <= 0 returns all.
func (j *Journal) List(limit int) ([]types.RunReport, error) {
	var out []types.RunReport
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(runPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		// Reverse iteration seeks to the largest key <= the seek key.
		for it.Seek([]byte(runPrefix + "\xff")); it.Valid(); it.Next() {
			var rep types.RunReport
			if err := it.Item().Value(func(v []byte) error { return json.Unmarshal(v, &rep) }); err != nil {
				return err
			}
			out = append(out, rep)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return nil
	})
	return out, err
}
