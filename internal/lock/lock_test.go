package lock

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/uploadop/uploadop/internal/logging"
)

func TestAcquireThenRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "upload.lock")
	log := logging.New(io.Discard)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	l, err := Acquire(ctx, path, log)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	l2, err := Acquire(ctx, path, log)
	if err != nil {
		t.Fatalf("second Acquire after release: %v", err)
	}
	if err := l2.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestAcquireBlocksUntilContextDeadlineWhileForeignPidHolds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "upload.lock")
	log := logging.New(io.Discard)

	// Simulate a lock held by a different, still-running process (PID 1,
	// always alive) that never releases.
	data, err := json.Marshal(lockState{ProcessID: 1, AcquiredAt: time.Now()})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	_, err = Acquire(ctx, path, log)
	if err == nil {
		t.Fatalf("Acquire() succeeded, want blocking until deadline")
	}
}
