package dirsize

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.WriteFile(path, make([]byte, size), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestMeasure_SumsRegularFileSizes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.bin"), 100)
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o700); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	writeFile(t, filepath.Join(dir, "sub", "b.bin"), 250)

	got, err := Measure(dir, nil)
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	if got != 350 {
		t.Errorf("Measure() = %d, want 350", got)
	}
}

func TestMeasure_SkipsExcludedNames(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.bin"), 100)
	writeFile(t, filepath.Join(dir, "a.tmp"), 999)

	got, err := Measure(dir, []string{"*.tmp"})
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	if got != 100 {
		t.Errorf("Measure() = %d, want 100 (excluded *.tmp)", got)
	}
}

func TestGiB_ConvertsBytes(t *testing.T) {
	if got := GiB(1 << 30); got != 1.0 {
		t.Errorf("GiB(1<<30) = %v, want 1.0", got)
	}
}
