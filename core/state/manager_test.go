package state

import (
	"math/big"
	"testing"

	"nftmarket/storage"
)

func TestManagerRevertToSnapshot(t *testing.T) {
	db := storage.NewMemDB()
	m := NewManager(db)

	if err := m.KVPut([]byte("a"), big.NewInt(1)); err != nil {
		t.Fatalf("put: %v", err)
	}
	snap := m.Snapshot()
	if err := m.KVPut([]byte("a"), big.NewInt(2)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := m.KVPut([]byte("b"), big.NewInt(3)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := m.RevertToSnapshot(snap); err != nil {
		t.Fatalf("revert: %v", err)
	}

	got := new(big.Int)
	ok, err := m.KVGet([]byte("a"), got)
	if err != nil || !ok || got.Int64() != 1 {
		t.Fatalf("expected a=1 after revert, got ok=%v val=%s err=%v", ok, got, err)
	}
	ok, err = m.KVGet([]byte("b"), nil)
	if err != nil || ok {
		t.Fatalf("expected b to be absent after revert, ok=%v err=%v", ok, err)
	}
}

func TestManagerCommitPersists(t *testing.T) {
	db := storage.NewMemDB()
	m := NewManager(db)
	if err := m.KVPut([]byte("listing"), "value"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if m.Dirty() != 1 {
		t.Fatalf("expected one dirty key, got %d", m.Dirty())
	}
	if err := m.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	fresh := NewManager(db)
	var out string
	ok, err := fresh.KVGet([]byte("listing"), &out)
	if err != nil || !ok || out != "value" {
		t.Fatalf("expected committed value, got ok=%v out=%q err=%v", ok, out, err)
	}

	if err := fresh.KVDelete([]byte("listing")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	ok, _ = fresh.KVGet([]byte("listing"), nil)
	if ok {
		t.Fatalf("deleted key still visible")
	}
	fresh.Discard()
	ok, _ = fresh.KVGet([]byte("listing"), nil)
	if !ok {
		t.Fatalf("discard should restore committed view")
	}
}

func TestManagerInvalidSnapshot(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	if err := m.RevertToSnapshot(5); err == nil {
		t.Fatalf("expected invalid snapshot error")
	}
	if _, err := m.KVGet(nil, nil); err == nil {
		t.Fatalf("expected empty key error")
	}
}
