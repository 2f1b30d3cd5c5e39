// Package dirsize measures a local folder's total size in bytes, the
// du-equivalent the scheduler uses to gate uploads on max_size_gb, grounded on original_source/utils/path.py's get_size local
// branch (`du -s --block-size=1 ... --exclude=...`).
package dirsize

import (
	"io/fs"
	"path/filepath"
)

// Measure walks root and returns the total size in bytes of every regular
// file, skipping any entry whose path (relative to root) matches one of the
// exclude glob patterns.
func Measure(root string, excludes []string) (uint64, error) {
	var total uint64

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		if matchesAny(rel, excludes) || matchesAny(d.Name(), excludes) {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return infoErr
		}
		total += uint64(info.Size())
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

func matchesAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}

// GiB converts a byte count to gibibytes as a float64, the unit
// max_size_gb is configured in.
func GiB(bytes uint64) float64 {
	return float64(bytes) / float64(1<<30)
}
