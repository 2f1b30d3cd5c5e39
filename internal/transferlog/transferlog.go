// Package transferlog writes a JSONL record per completed file transfer,
// enriched with RC stats when available.
package transferlog

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

const (
	maxBytes   = 5 * 1024 * 1024 // 5 MB, matching the original's RotatingFileHandler
	maxBackups = 50
)

// Entry is one completed-file record.
type Entry struct {
	Timestamp       int64   `json:"timestamp"`
	DateTime        string  `json:"datetime"`
	Uploader        string  `json:"uploader"`
	Filename        string  `json:"filename"`
	SizeBytes       int64   `json:"size_bytes,omitempty"`
	AvgSpeedBytes   int64   `json:"avg_speed_bytes,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	Source          string  `json:"source,omitempty"`
	Destination     string  `json:"destination,omitempty"`
}

// Log is a size-rotating JSONL file writer.
type Log interface {
	Write(e Entry) error
}

// FileLog appends one JSON line per Write, rotating the underlying file once
// it reaches maxBytes.
type FileLog struct {
	mu   sync.Mutex
	path string
}

// NewFileLog opens (creating if needed) the JSONL log at path.
func NewFileLog(path string) *FileLog {
	return &FileLog{path: path}
}

// Write appends e as one JSON line, rolling over the file first if it has
// reached maxBytes.
func (l *FileLog) Write(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.rotateIfNeeded(); err != nil {
		return fmt.Errorf("rotate transfer log: %w", err)
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal transfer log entry: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open transfer log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write transfer log entry: %w", err)
	}
	return nil
}

func (l *FileLog) rotateIfNeeded() error {
	info, err := os.Stat(l.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Size() < maxBytes {
		return nil
	}

	for i := maxBackups - 1; i >= 1; i-- {
		src := l.backupPath(i)
		dst := l.backupPath(i + 1)
		if _, err := os.Stat(src); err == nil {
			if err := os.Rename(src, dst); err != nil {
				return err
			}
		}
	}
	return os.Rename(l.path, l.backupPath(1))
}

func (l *FileLog) backupPath(n int) string {
	return fmt.Sprintf("%s.%d", l.path, n)
}

// NewEntry builds the base entry for a just-completed file;
// callers enrich Size/Speed/Source/Destination from the RC stats poller
// before calling Write.
func NewEntry(uploader, filename string, now time.Time) Entry {
	return Entry{
		Timestamp: now.Unix(),
		DateTime:  now.Format("2006-01-02 15:04:05"),
		Uploader:  uploader,
		Filename:  filename,
	}
}

// EnrichFromTransferStat fills size/speed/path fields from a matched RC
// transfer stat.
func EnrichFromTransferStat(e Entry, sizeBytes int64, avgSpeed float64, srcFs, dstFs string) Entry {
	e.SizeBytes = sizeBytes
	e.AvgSpeedBytes = int64(avgSpeed)
	if avgSpeed > 0 && sizeBytes > 0 {
		e.DurationSeconds = float64(sizeBytes) / avgSpeed
	}
	e.Source = srcFs
	e.Destination = dstFs
	return e
}

// NoopLog discards every entry; used where transfer_log_path is unconfigured.
type NoopLog struct{}

func (NoopLog) Write(Entry) error { return nil }

var _ Log = (*FileLog)(nil)
var _ Log = NoopLog{}
