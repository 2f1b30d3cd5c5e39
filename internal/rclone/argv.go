package rclone

import (
	"fmt"

	"github.com/uploadop/uploadop/internal/stageplan"
)

// CopyArgs describes the inputs needed to build one stage's copy/move argv.
type CopyArgs struct {
	Move              bool
	Source            string
	Destination       string
	ConfigPath        string
	ServiceAccountFile string // empty to omit --drive-service-account-file
	Params            stageplan.Params
	ChunkFile         string // empty unless chunked mode is active
	Excludes          []string
	Extras            map[string]string
}

// BuildCopyArgv composes the argv vector for a copy/move invocation, without
// the binary path: subcommand, source, destination, config flag, optional
// identity flag, stage-parameter flags, optional ordering flags, optional
// chunk file, excludes, then user extras.
func BuildCopyArgv(a CopyArgs) []string {
	sub := "copy"
	if a.Move {
		sub = "move"
	}

	argv := []string{sub, a.Source, a.Destination, "--config=" + a.ConfigPath}

	if a.ServiceAccountFile != "" {
		argv = append(argv, "--drive-service-account-file="+a.ServiceAccountFile)
	}

	argv = append(argv,
		fmt.Sprintf("--max-transfer=%d", a.Params.MaxTransferBytes),
		fmt.Sprintf("--max-size=%d", a.Params.MaxSizeBytes),
		fmt.Sprintf("--transfers=%d", a.Params.Transfers),
		"--cutoff-mode=cautious",
	)

	if a.Params.HasOrdering {
		argv = append(argv, "--order-by="+a.Params.OrderBy, fmt.Sprintf("--max-backlog=%d", a.Params.MaxBacklog))
	}

	if a.ChunkFile != "" {
		argv = append(argv, "--files-from="+a.ChunkFile)
	}

	for _, p := range a.Excludes {
		argv = append(argv, "--exclude="+p)
	}

	for flag, value := range a.Extras {
		if value == "" {
			argv = append(argv, flag)
			continue
		}
		argv = append(argv, flag+"="+value)
	}

	return argv
}

// ListArgs describes the inputs for the file-listing invocation used to
// build chunked-mode file lists.
type ListArgs struct {
	Source     string
	ConfigPath string
	Excludes   []string
}

// BuildListArgv composes the argv vector for `<bin> lsf`.
func BuildListArgv(a ListArgs) []string {
	argv := []string{"lsf", a.Source, "--recursive", "--files-only", "--config=" + a.ConfigPath}
	for _, p := range a.Excludes {
		argv = append(argv, "--exclude="+p)
	}
	return argv
}
