package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bryanwahyu/friendlens/internal/domain/history"
)

// Store persists the full record collection as one flat JSON document.
// Mutations are whole-document read-modify-write, serialized behind a
// mutex so concurrent writers cannot lose each other's updates.
type Store struct {
	path      string
	retention int
	mu        sync.Mutex
}

func New(path string, retention int) *Store {
	if retention <= 0 {
		retention = history.DefaultRetention
	}
	return &Store{path: path, retention: retention}
}

type document struct {
	Items []history.Record `json:"items"`
}

// Load returns all records in stored order, creating an empty document on
// first access. Content that cannot be read yields history.ErrRead;
// content that reads but does not parse yields history.ErrCorrupt. The
// file is never reset.
func (s *Store) Load() ([]history.Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := s.writeDocument(document{Items: []history.Record{}}); err != nil {
				return nil, err
			}
			return []history.Record{}, nil
		}
		return nil, fmt.Errorf("%w: %v", history.ErrRead, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", history.ErrCorrupt, err)
	}
	if doc.Items == nil {
		doc.Items = []history.Record{}
	}
	return doc.Items, nil
}

// SaveAll replaces the persisted collection with records, in the given
// order. The write goes through a temp file and rename so a crash cannot
// leave a half-written document behind.
func (s *Store) SaveAll(records []history.Record) error {
	if records == nil {
		records = []history.Record{}
	}
	return s.writeDocument(document{Items: records})
}

func (s *Store) writeDocument(doc document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", history.ErrWrite, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", history.ErrWrite, err)
	}
	tmp, err := os.CreateTemp(dir, ".history-*.json")
	if err != nil {
		return fmt.Errorf("%w: %v", history.ErrWrite, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", history.ErrWrite, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", history.ErrWrite, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", history.ErrWrite, err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", history.ErrWrite, err)
	}
	return nil
}

// Insert implements history.Repository: prepend the record to the owner's
// partition, truncate that partition to the retention cap, recombine with
// the other owners' records in their original order.
func (s *Store) Insert(ctx context.Context, rec history.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.Load()
	if err != nil {
		return err
	}

	mine := make([]history.Record, 0, s.retention+1)
	others := make([]history.Record, 0, len(all))
	mine = append(mine, rec)
	for _, r := range all {
		if r.Username == rec.Username {
			mine = append(mine, r)
		} else {
			others = append(others, r)
		}
	}
	if len(mine) > s.retention {
		mine = mine[:s.retention]
	}

	return s.SaveAll(append(mine, others...))
}

// List implements history.Repository.
func (s *Store) List(ctx context.Context, username string) ([]history.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.Load()
	if err != nil {
		return nil, err
	}
	out := []history.Record{}
	for _, r := range all {
		if r.Username == username {
			out = append(out, r)
		}
	}
	return out, nil
}

// Get implements history.Repository. An id owned by another user is not
// distinguishable from a missing one.
func (s *Store) Get(ctx context.Context, username string, id history.RecordID) (*history.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.Load()
	if err != nil {
		return nil, err
	}
	for _, r := range all {
		if r.Username == username && r.ID == id {
			rec := r
			return &rec, nil
		}
	}
	return nil, history.ErrNotFound
}

// DeleteOne implements history.Repository.
func (s *Store) DeleteOne(ctx context.Context, username string, id history.RecordID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.Load()
	if err != nil {
		return err
	}
	kept := make([]history.Record, 0, len(all))
	found := false
	for _, r := range all {
		if !found && r.Username == username && r.ID == id {
			found = true
			continue
		}
		kept = append(kept, r)
	}
	if !found {
		return history.ErrNotFound
	}
	return s.SaveAll(kept)
}

// DeleteAll implements history.Repository; deleting zero records succeeds.
func (s *Store) DeleteAll(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.Load()
	if err != nil {
		return err
	}
	kept := make([]history.Record, 0, len(all))
	for _, r := range all {
		if r.Username != username {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(all) {
		return nil
	}
	return s.SaveAll(kept)
}
