// Package lock implements the filesystem-visible advisory locks that gate
// upload, sync, and hidden-cleanup runs.
package lock

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/uploadop/uploadop/internal/logging"
)

// StaleTimeout bounds how long a lock can be held before a waiter treats it
// as abandoned and reclaims it.
const StaleTimeout = 30 * time.Minute

// pollInterval is how often a blocked Acquire call re-checks the lock file.
const pollInterval = time.Second

type lockState struct {
	ProcessID  int       `json:"process_id"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// Lock is a held advisory lock. Release must be called to free it.
type Lock struct {
	path string
	pid  int
}

// Acquire blocks until path's lock is free (or stale), then claims it. It
// logs once while waiting for the holder to release.
func Acquire(ctx context.Context, path string, log *logging.Logger) (*Lock, error) {
	logged := false
	for {
		acquired, err := tryAcquire(path)
		if err != nil {
			return nil, err
		}
		if acquired != nil {
			return acquired, nil
		}

		if !logged {
			log.Info().Str("lock", path).Msg("waiting for lock held by another run")
			logged = true
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func tryAcquire(path string) (*Lock, error) {
	currentPID := os.Getpid()

	if data, err := os.ReadFile(path); err == nil {
		var existing lockState
		if json.Unmarshal(data, &existing) == nil {
			age := time.Since(existing.AcquiredAt)
			if age < StaleTimeout && processRunning(existing.ProcessID) && existing.ProcessID != currentPID {
				return nil, nil
			}
		}
		os.Remove(path)
	}

	state := lockState{ProcessID: currentPID, AcquiredAt: time.Now()}
	data, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return nil, fmt.Errorf("write lock file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("create lock file: %w", err)
	}

	return &Lock{path: path, pid: currentPID}, nil
}

// Release drops the lock if it is still owned by this process.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	data, err := os.ReadFile(l.path)
	if err == nil {
		var current lockState
		if json.Unmarshal(data, &current) == nil && current.ProcessID != l.pid {
			return nil
		}
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func processRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
