// Package openfiles lists files currently open under a local directory by
// shelling out to lsof (`lsof -wFn +D <path>`) and parsing its `-F n`
// output, using the same os/exec child-process pattern as the rclone
// driver for the actual spawn.
package openfiles

import (
	"bufio"
	"context"
	"os/exec"
	"path/filepath"
	"strings"
)

// Lister shells out to lsof to find paths open under a directory, the
// orchestrator.OpenFileLister collaborator for uploader_config's
// exclude_open_files option.
type Lister struct {
	binaryPath string
}

// New builds a Lister invoking the given lsof binary ("lsof" if empty).
func New(binaryPath string) *Lister {
	if binaryPath == "" {
		binaryPath = "lsof"
	}
	return &Lister{binaryPath: binaryPath}
}

// OpenFiles returns paths under root that some process currently has open,
// as paths relative to root (the form the orchestrator's exclude list
// expects). A non-zero lsof exit (lsof exits non-zero when it finds
// nothing) yields an empty result and no error; any other failure, such as
// a missing binary, is returned as an error.
func (l *Lister) OpenFiles(ctx context.Context, root string) ([]string, error) {
	cmd := exec.CommandContext(ctx, l.binaryPath, "-w", "-F", "n", "+D", root)
	out, err := cmd.Output()
	if err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			// lsof exits 1 when it finds no matching open files; not an error.
			return nil, nil
		}
		return nil, err
	}

	var files []string
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) < 2 || line[0] != 'n' {
			continue
		}
		path := line[1:]
		if rel, relErr := filepath.Rel(root, path); relErr == nil && !strings.HasPrefix(rel, "..") {
			files = append(files, rel)
		}
	}
	return files, nil
}

// FilterExcludes drops any entry containing one of excludes as a
// case-insensitive substring, matching the original's
// `excl.lower() in item.lower()` filter.
func FilterExcludes(files, excludes []string) []string {
	if len(excludes) == 0 {
		return files
	}
	kept := files[:0:0]
	for _, f := range files {
		lower := strings.ToLower(f)
		skip := false
		for _, excl := range excludes {
			if strings.Contains(lower, strings.ToLower(excl)) {
				skip = true
				break
			}
		}
		if !skip {
			kept = append(kept, f)
		}
	}
	return kept
}

var _ interface {
	OpenFiles(ctx context.Context, root string) ([]string, error)
} = (*Lister)(nil)
