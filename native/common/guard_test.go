package common

import (
	"errors"
	"testing"
)

func TestGuard(t *testing.T) {
	if err := Guard(nil, ModuleMarket); err != nil {
		t.Fatalf("nil view must not block: %v", err)
	}
	pauses := Pauses{ModuleMarket: true}
	if err := Guard(pauses, ModuleMarket); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if err := Guard(pauses, "other"); err != nil {
		t.Fatalf("unexpected error for unpaused module: %v", err)
	}
	if err := Guard(pauses, ""); err != nil {
		t.Fatalf("empty module must not block: %v", err)
	}
}
