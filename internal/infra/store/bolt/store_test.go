package bolt

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/bryanwahyu/friendlens/internal/domain/history"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "history.db"), 50)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func rec(username, id string) history.Record {
	return history.Record{
		ID:         history.RecordID(id),
		Username:   username,
		ImageCount: 5,
		Text:       "report " + id,
		CreatedAt:  time.Now().UTC(),
	}
}

func TestStore_InsertListNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.Insert(ctx, rec("alice", fmt.Sprintf("a%d", i))); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	items, err := s.List(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 records, got %d", len(items))
	}
	if items[0].ID != "a2" || items[2].ID != "a0" {
		t.Errorf("wrong order: %s, %s, %s", items[0].ID, items[1].ID, items[2].ID)
	}
}

func TestStore_ListUnknownUser(t *testing.T) {
	s := newTestStore(t)
	items, err := s.List(context.Background(), "nobody")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Errorf("expected empty list, got %d", len(items))
	}
}

func TestStore_RetentionCap(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Insert(ctx, rec("bob", "b1")); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 51; i++ {
		if err := s.Insert(ctx, rec("alice", fmt.Sprintf("a%d", i))); err != nil {
			t.Fatal(err)
		}
	}

	items, err := s.List(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 50 {
		t.Fatalf("expected 50 records, got %d", len(items))
	}
	if items[0].ID != "a50" {
		t.Errorf("expected newest at index 0, got %s", items[0].ID)
	}

	// Evicted record is gone from the id index too.
	if _, err := s.Get(ctx, "alice", "a0"); !errors.Is(err, history.ErrNotFound) {
		t.Errorf("evicted record still resolvable: %v", err)
	}
	bobs, _ := s.List(ctx, "bob")
	if len(bobs) != 1 {
		t.Error("bob's records must be unaffected by alice's eviction")
	}
}

func TestStore_CrossUserIsolation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Insert(ctx, rec("alice", "a1")); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Get(ctx, "bob", "a1"); !errors.Is(err, history.ErrNotFound) {
		t.Errorf("foreign get must be NotFound, got %v", err)
	}
	if err := s.DeleteOne(ctx, "bob", "a1"); !errors.Is(err, history.ErrNotFound) {
		t.Errorf("foreign delete must be NotFound, got %v", err)
	}
	if err := s.DeleteAll(ctx, "bob"); err != nil {
		t.Errorf("deleteAll for a user without records should succeed: %v", err)
	}
	if items, _ := s.List(ctx, "alice"); len(items) != 1 {
		t.Error("alice's record must survive bob's operations")
	}
}

func TestStore_DeleteOneThenGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Insert(ctx, rec("alice", "a1")); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteOne(ctx, "alice", "a1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "alice", "a1"); !errors.Is(err, history.ErrNotFound) {
		t.Errorf("expected NotFound after delete, got %v", err)
	}
}

func TestStore_DeleteAllThenList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if err := s.Insert(ctx, rec("alice", fmt.Sprintf("a%d", i))); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.DeleteAll(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	items, err := s.List(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Errorf("expected empty list after deleteAll, got %d", len(items))
	}
	// Ids must be free of the index as well.
	if _, err := s.Get(ctx, "alice", "a1"); !errors.Is(err, history.ErrNotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestStore_DuplicateIDRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Insert(ctx, rec("alice", "dup")); err != nil {
		t.Fatal(err)
	}
	if err := s.Insert(ctx, rec("bob", "dup")); err == nil {
		t.Error("expected duplicate id insert to fail")
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	s, err := New(path, 50)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Insert(ctx, rec("alice", "a1")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s2, err := New(path, 50)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	items, err := s2.List(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].ID != "a1" {
		t.Errorf("record did not survive reopen: %+v", items)
	}
}
