package storage

import (
	"errors"
	"testing"
)

func exerciseDatabase(t *testing.T, db Database) {
	t.Helper()
	if _, err := db.Get([]byte("missing")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := db.Put([]byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	batch := NewBatch()
	batch.Put([]byte("k2"), []byte("v2"))
	batch.Delete([]byte("k1"))
	if batch.Len() != 2 {
		t.Fatalf("unexpected batch length %d", batch.Len())
	}
	if err := db.Write(batch); err != nil {
		t.Fatalf("write: %v", err)
	}
	if ok, _ := db.Has([]byte("k1")); ok {
		t.Fatalf("k1 should be deleted by batch")
	}
	value, err := db.Get([]byte("k2"))
	if err != nil || string(value) != "v2" {
		t.Fatalf("unexpected k2 value %q err=%v", value, err)
	}
	if err := db.Delete([]byte("k2")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ok, _ := db.Has([]byte("k2")); ok {
		t.Fatalf("k2 should be deleted")
	}
}

func TestMemDB(t *testing.T) {
	exerciseDatabase(t, NewMemDB())
}

func TestLevelDB(t *testing.T) {
	db, err := NewLevelDB(t.TempDir())
	if err != nil {
		t.Fatalf("open leveldb: %v", err)
	}
	defer db.Close()
	exerciseDatabase(t, db)
}
