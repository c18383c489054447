// Package storage provides the diagnostic journal of the strategy feed.
// It uses BoltDB to keep a time-ordered record of transport and decode
// failures so that flaky feeds can be investigated after the fact.
//
// The journal never stores strategies or other received state and nothing
// in it is loaded back into a session.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	diagnosticsBucket = "diagnostics" // Bucket name for diagnostic entries
	dbFile            = "feed-diagnostics.db"
)

// Entry kinds
const (
	KindTransport = "transport"
	KindDecode    = "decode"
)

// Entry is a single diagnostic record.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Session   string    `json:"session"`
	Kind      string    `json:"kind"`
	Op        string    `json:"op,omitempty"`
	Error     string    `json:"error"`
	Raw       string    `json:"raw,omitempty"` // truncated frame for decode failures
}

// Journal persists diagnostic entries in BoltDB.
type Journal struct {
	db *bbolt.DB
}

// New opens (or creates) the journal database under dataPath.
func New(dataPath string) (*Journal, error) {
	dbPath := filepath.Join(dataPath, dbFile)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(diagnosticsBucket)); err != nil {
			return fmt.Errorf("create diagnostics bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Journal{db: db}, nil
}

// Close closes the database. Closing twice is harmless.
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// Record appends an entry. Entries sharing a timestamp keep insertion order.
func (j *Journal) Record(e Entry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return j.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(diagnosticsBucket))

		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("next sequence: %w", err)
		}

		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal entry: %w", err)
		}

		return b.Put(entryKey(e.Timestamp, seq), data)
	})
}

// Entries returns the entries recorded within [start, end], oldest first.
func (j *Journal) Entries(start, end time.Time) ([]Entry, error) {
	var entries []Entry

	err := j.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(diagnosticsBucket)).Cursor()
		endKey := entryKey(end, ^uint64(0))

		for k, v := c.Seek(entryKey(start, 0)); k != nil && bytes.Compare(k, endKey) <= 0; k, v = c.Next() {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				continue // Skip malformed records
			}
			entries = append(entries, e)
		}
		return nil
	})

	return entries, err
}

// Prune deletes every entry older than before and returns how many were removed.
func (j *Journal) Prune(before time.Time) (int, error) {
	removed := 0
	err := j.db.Update(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(diagnosticsBucket)).Cursor()
		limit := entryKey(before, 0)

		for k, _ := c.First(); k != nil && bytes.Compare(k, limit) < 0; k, _ = c.First() {
			if err := c.Delete(); err != nil {
				return fmt.Errorf("delete entry: %w", err)
			}
			removed++
		}
		return nil
	})
	return removed, err
}

// entryKey sorts lexically by time then sequence.
func entryKey(ts time.Time, seq uint64) []byte {
	return []byte(fmt.Sprintf("%020d_%020d", ts.UnixNano(), seq))
}
