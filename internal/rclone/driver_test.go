package rclone

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/uploadop/uploadop/internal/logging"
)

func nopLogger() *logging.Logger { return logging.New(io.Discard) }

func fakeBinary(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-rclone.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("write fake binary: %v", err)
	}
	return path
}

func TestDriver_RunOk(t *testing.T) {
	bin := fakeBinary(t, `
echo "INFO  : a/b.txt: Copied (new)" 1>&2
exit 0
`)
	d := NewDriver(bin, NewTracker(nil), nopLogger())

	out := d.Run(context.Background(), nil)
	if out.ExitCode != Ok {
		t.Fatalf("ExitCode = %v, want Ok", out.ExitCode)
	}
	if len(out.Completed) != 1 || out.Completed[0] != "a/b.txt" {
		t.Errorf("Completed = %v, want [a/b.txt]", out.Completed)
	}
}

func TestDriver_RunMaxTransferReached(t *testing.T) {
	bin := fakeBinary(t, `exit 7`)
	d := NewDriver(bin, NewTracker(nil), nopLogger())

	out := d.Run(context.Background(), nil)
	if out.ExitCode != MaxTransferReached {
		t.Fatalf("ExitCode = %v, want MaxTransferReached", out.ExitCode)
	}
}

func TestDriver_RunToolError(t *testing.T) {
	bin := fakeBinary(t, `exit 1`)
	d := NewDriver(bin, NewTracker(nil), nopLogger())

	out := d.Run(context.Background(), nil)
	if out.ExitCode != ToolError {
		t.Fatalf("ExitCode = %v, want ToolError", out.ExitCode)
	}
	if out.Err == nil {
		t.Errorf("Err = nil, want non-nil on tool error")
	}
}

func TestDriver_RunAbortedByTrigger(t *testing.T) {
	bin := fakeBinary(t, `
echo "userRateLimitExceeded" 1>&2
sleep 5
`)
	tracker := NewTracker([]TriggerDef{{Phrase: "userRateLimitExceeded", Window: time.Minute, Count: 1, SleepHours: 0.5}})
	d := NewDriver(bin, tracker, nopLogger())

	out := d.Run(context.Background(), nil)
	if out.ExitCode != AbortedByTrigger {
		t.Fatalf("ExitCode = %v, want AbortedByTrigger", out.ExitCode)
	}
	if out.TriggerAbort.Phrase != "userRateLimitExceeded" {
		t.Errorf("TriggerAbort.Phrase = %q, want userRateLimitExceeded", out.TriggerAbort.Phrase)
	}
}

func TestDriver_RunContextCancelSendsSIGTERM(t *testing.T) {
	bin := fakeBinary(t, `
trap 'exit 0' TERM
echo "INFO  : waiting" 1>&2
sleep 30 2>/dev/null &
wait
`)
	d := NewDriver(bin, NewTracker(nil), nopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Outcome, 1)
	go func() { done <- d.Run(ctx, nil) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case out := <-done:
		if out.ExitCode == ToolError && out.Err == nil {
			t.Errorf("unexpected zero-value error outcome: %+v", out)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("driver did not exit after context cancellation")
	}
}
