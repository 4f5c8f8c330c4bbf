package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/bryanwahyu/friendlens/internal/domain/history"
)

const (
	historyBucket = "history"
	idIndexBucket = "ids"
)

// Store keeps one nested bucket per username, keyed by an insertion
// sequence so a reverse cursor walks newest-first. A global id index maps
// record id to its owner bucket and key; append and eviction happen inside
// a single Update transaction, so there is no lost-update window.
type Store struct {
	db        *bbolt.DB
	retention int
}

// New opens (or creates) the database file at path.
func New(path string, retention int) (*Store, error) {
	if retention <= 0 {
		retention = history.DefaultRetention
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, e := tx.CreateBucketIfNotExists([]byte(historyBucket)); e != nil {
			return e
		}
		if _, e := tx.CreateBucketIfNotExists([]byte(idIndexBucket)); e != nil {
			return e
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, retention: retention}, nil
}

// Close releases database resources.
func (s *Store) Close() error {
	return s.db.Close()
}

// indexEntry locates a record from the global id index.
type indexEntry struct {
	Username string `json:"username"`
	Key      []byte `json:"key"`
}

// Insert implements history.Repository.
func (s *Store) Insert(ctx context.Context, rec history.Record) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		users := tx.Bucket([]byte(historyBucket))
		index := tx.Bucket([]byte(idIndexBucket))

		if index.Get([]byte(rec.ID)) != nil {
			return fmt.Errorf("duplicate record id %s", rec.ID)
		}

		user, err := users.CreateBucketIfNotExists([]byte(rec.Username))
		if err != nil {
			return err
		}
		seq, err := user.NextSequence()
		if err != nil {
			return err
		}
		key := itob(seq)

		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := user.Put(key, data); err != nil {
			return err
		}
		entry, err := json.Marshal(indexEntry{Username: rec.Username, Key: key})
		if err != nil {
			return err
		}
		if err := index.Put([]byte(rec.ID), entry); err != nil {
			return err
		}

		return s.evictOldest(user, index)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", history.ErrWrite, err)
	}
	return nil
}

// evictOldest trims the owner's bucket down to the retention cap, removing
// evicted ids from the index as well.
func (s *Store) evictOldest(user, index *bbolt.Bucket) error {
	count := 0
	c := user.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		count++
	}
	excess := count - s.retention
	if excess <= 0 {
		return nil
	}

	for k, v := c.First(); k != nil && excess > 0; k, v = c.Next() {
		var rec history.Record
		if err := json.Unmarshal(v, &rec); err != nil {
			return err
		}
		if err := index.Delete([]byte(rec.ID)); err != nil {
			return err
		}
		if err := c.Delete(); err != nil {
			return err
		}
		excess--
	}
	return nil
}

// List implements history.Repository, walking the owner's bucket backwards
// so the newest insertion comes first.
func (s *Store) List(ctx context.Context, username string) ([]history.Record, error) {
	out := []history.Record{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		user := tx.Bucket([]byte(historyBucket)).Bucket([]byte(username))
		if user == nil {
			return nil
		}
		c := user.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var rec history.Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("%w: %v", history.ErrCorrupt, err)
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get implements history.Repository.
func (s *Store) Get(ctx context.Context, username string, id history.RecordID) (*history.Record, error) {
	var rec *history.Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(idIndexBucket)).Get([]byte(id))
		if data == nil {
			return history.ErrNotFound
		}
		var entry indexEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			return fmt.Errorf("%w: %v", history.ErrCorrupt, err)
		}
		// Ownership mismatch must look exactly like absence.
		if entry.Username != username {
			return history.ErrNotFound
		}
		user := tx.Bucket([]byte(historyBucket)).Bucket([]byte(entry.Username))
		if user == nil {
			return history.ErrNotFound
		}
		value := user.Get(entry.Key)
		if value == nil {
			return history.ErrNotFound
		}
		var r history.Record
		if err := json.Unmarshal(value, &r); err != nil {
			return fmt.Errorf("%w: %v", history.ErrCorrupt, err)
		}
		rec = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// DeleteOne implements history.Repository.
func (s *Store) DeleteOne(ctx context.Context, username string, id history.RecordID) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		index := tx.Bucket([]byte(idIndexBucket))
		data := index.Get([]byte(id))
		if data == nil {
			return history.ErrNotFound
		}
		var entry indexEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			return fmt.Errorf("%w: %v", history.ErrCorrupt, err)
		}
		if entry.Username != username {
			return history.ErrNotFound
		}
		user := tx.Bucket([]byte(historyBucket)).Bucket([]byte(entry.Username))
		if user == nil || user.Get(entry.Key) == nil {
			return history.ErrNotFound
		}
		if err := user.Delete(entry.Key); err != nil {
			return err
		}
		return index.Delete([]byte(id))
	})
}

// DeleteAll implements history.Repository; a missing bucket is a no-op.
func (s *Store) DeleteAll(ctx context.Context, username string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		users := tx.Bucket([]byte(historyBucket))
		index := tx.Bucket([]byte(idIndexBucket))
		user := users.Bucket([]byte(username))
		if user == nil {
			return nil
		}
		c := user.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec history.Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("%w: %v", history.ErrCorrupt, err)
			}
			if err := index.Delete([]byte(rec.ID)); err != nil {
				return err
			}
		}
		if err := users.DeleteBucket([]byte(username)); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		return nil
	})
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
