package openfiles

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func fakeLsof(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-lsof.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("write fake lsof: %v", err)
	}
	return path
}

func TestLister_OpenFiles_ParsesNLines(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "busy.mkv"), nil, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	bin := fakeLsof(t, `
echo "p1234"
echo "n`+filepath.Join(root, "busy.mkv")+`"
echo "p5678"
echo "nother-irrelevant-line-without-n-prefix-removed-below"
exit 0
`)
	l := New(bin)

	got, err := l.OpenFiles(context.Background(), root)
	if err != nil {
		t.Fatalf("OpenFiles: %v", err)
	}

	want := []string{"busy.mkv"}
	sort.Strings(got)
	sort.Strings(want)
	if len(got) != 1 {
		t.Fatalf("OpenFiles() = %v, want exactly the one path inside root", got)
	}
	if got[0] != "busy.mkv" {
		t.Errorf("OpenFiles()[0] = %q, want %q", got[0], "busy.mkv")
	}
}

func TestLister_OpenFiles_NonZeroExitMeansNoneFound(t *testing.T) {
	bin := fakeLsof(t, `exit 1`)
	l := New(bin)

	got, err := l.OpenFiles(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("OpenFiles() error = %v, want nil (lsof exit 1 means nothing open)", err)
	}
	if len(got) != 0 {
		t.Errorf("OpenFiles() = %v, want empty", got)
	}
}

func TestFilterExcludes(t *testing.T) {
	files := []string{"Movies/show.mkv", "Downloads/incomplete/part.tmp", "Books/book.pdf"}

	got := FilterExcludes(files, []string{"incomplete"})
	want := []string{"Movies/show.mkv", "Books/book.pdf"}

	if len(got) != len(want) {
		t.Fatalf("FilterExcludes() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("FilterExcludes()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFilterExcludes_NoExcludesReturnsSameSlice(t *testing.T) {
	files := []string{"a.txt", "b.txt"}
	got := FilterExcludes(files, nil)
	if len(got) != 2 {
		t.Fatalf("FilterExcludes() = %v, want unchanged", got)
	}
}
