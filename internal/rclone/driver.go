// Package rclone drives the external transfer tool as a child process and
// tracks its live stderr output for completion lines and sleep triggers.
package rclone

import (
	"bufio"
	"context"
	"os/exec"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/uploadop/uploadop/internal/logging"
)

// ExitCode classifies the child process's outcome.
type ExitCode int

const (
	Ok ExitCode = iota
	MaxTransferReached
	AbortedByTrigger
	ToolError
)

// toolMaxTransferExitCode is the exit status rclone uses for "--max-transfer
// limit reached".
const toolMaxTransferExitCode = 7

var completionLine = regexp.MustCompile(`INFO\s+:\s+(.+?):\s+Copied\s+\(`)

// Outcome is the driver's report for one child-process invocation.
type Outcome struct {
	ExitCode    ExitCode
	Completed   []string // relative paths captured from completion lines, in order
	TriggerAbort Abort   // set only when ExitCode == AbortedByTrigger
	Err         error    // set only when ExitCode == ToolError
}

// Driver launches the transfer tool and streams its stderr.
type Driver struct {
	binaryPath string
	tracker    *Tracker
	log        *logging.Logger
}

// NewDriver builds a driver that runs binaryPath, feeding each stderr line
// through tracker.
func NewDriver(binaryPath string, tracker *Tracker, log *logging.Logger) *Driver {
	return &Driver{binaryPath: binaryPath, tracker: tracker, log: log}
}

// Run spawns the tool with argv, streams stderr line by line, and returns
// once the process exits or ctx is cancelled. Cancellation sends SIGTERM and
// waits for the process to exit cooperatively.
func (d *Driver) Run(ctx context.Context, argv []string) Outcome {
	cmd := exec.CommandContext(ctx, d.binaryPath, argv...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Outcome{ExitCode: ToolError, Err: err}
	}

	if err := cmd.Start(); err != nil {
		return Outcome{ExitCode: ToolError, Err: err}
	}

	var completed []string
	var abort Abort
	aborted := false

	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		if m := completionLine.FindStringSubmatch(line); m != nil {
			path := strings.TrimSpace(m[1])
			completed = append(completed, path)
			d.log.Debug().Str("file", path).Msg("completed transfer")
		}

		if !aborted {
			if a, fired := d.tracker.Feed(line, time.Now()); fired {
				abort = a
				aborted = true
				cmd.Process.Signal(syscall.SIGTERM)
				break
			}
		}
	}

	waitErr := cmd.Wait()

	if aborted {
		return Outcome{ExitCode: AbortedByTrigger, Completed: completed, TriggerAbort: abort}
	}

	if waitErr == nil {
		return Outcome{ExitCode: Ok, Completed: completed}
	}

	if exitErr, ok := waitErr.(*exec.ExitError); ok {
		if exitErr.ExitCode() == toolMaxTransferExitCode {
			return Outcome{ExitCode: MaxTransferReached, Completed: completed}
		}
	}

	return Outcome{ExitCode: ToolError, Completed: completed, Err: waitErr}
}
