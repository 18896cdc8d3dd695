package lock

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestSecondAcquireFailsUntilRelease(t *testing.T) {
	p := filepath.Join(t.TempDir(), "run", "guard.lock")
	first, err := TryAcquire(p)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if _, err := TryAcquire(p); !errors.Is(err, ErrLocked) {
		t.Fatalf("second acquire err = %v, want ErrLocked", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	again, err := TryAcquire(p)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	_ = again.Release()
}
