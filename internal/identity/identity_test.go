package identity

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func touch(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestList_SortsByEmbeddedDigitAscending(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "sa10.json")
	touch(t, dir, "sa2.json")
	touch(t, dir, "sa1.json")

	ids, err := List(dir)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{
		filepath.Join(dir, "sa1.json"),
		filepath.Join(dir, "sa2.json"),
		filepath.Join(dir, "sa10.json"),
	}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("List() = %v, want %v", ids, want)
	}
}

func TestList_LexicographicTieBreakWithoutDigits(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "beta.json")
	touch(t, dir, "alpha.json")

	ids, err := List(dir)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{
		filepath.Join(dir, "alpha.json"),
		filepath.Join(dir, "beta.json"),
	}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("List() = %v, want %v", ids, want)
	}
}
