package wal

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

const (
	logFile = "transactions.wal"

	// defaultMaxBytes is the segment size that triggers rotation.
	defaultMaxBytes = 8 << 20
)

// Log is an append-only write-ahead log. Appends are serialized and
// synced before returning.
type Log struct {
	mu       sync.Mutex
	dir      string
	path     string
	f        *os.File
	seq      uint64
	size     int64
	maxBytes int64
	segments int
}

// Open creates or opens the log in dir, scanning the active segment
// for the last sequence number.
func Open(dir string) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, logFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	l := &Log{dir: dir, path: path, f: f, maxBytes: defaultMaxBytes}

	entries, err := readEntries(path)
	if err != nil {
		f.Close()
		return nil, err
	}
	for _, e := range entries {
		if e.Seq > l.seq {
			l.seq = e.Seq
		}
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	l.size = info.Size()
	l.segments = countSegments(dir)
	return l, nil
}

// Append writes an entry for the given operation before the mutation
// it describes is applied.
func (l *Log) Append(ctx context.Context, op Op, collection, docID string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	e := newEntry(l.seq, op, collection, docID, data)
	line, err := json.Marshal(e)
	if err != nil {
		return err
	}
	line = append(line, '\n')
	if _, err := l.f.Write(line); err != nil {
		return err
	}
	if err := l.f.Sync(); err != nil {
		return err
	}
	l.size += int64(len(line))
	if l.size >= l.maxBytes {
		return l.rotate()
	}
	return nil
}

// rotate compresses the active segment to a numbered .gz file and
// starts a fresh one. Called with the lock held.
func (l *Log) rotate() error {
	if err := l.f.Close(); err != nil {
		return err
	}
	src, err := os.Open(l.path)
	if err != nil {
		return err
	}
	defer src.Close()

	l.segments++
	dstPath := fmt.Sprintf("%s.%d.gz", l.path, l.segments)
	dst, err := os.Create(dstPath)
	if err != nil {
		return err
	}
	zw := gzip.NewWriter(dst)
	if _, err := io.Copy(zw, src); err != nil {
		dst.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	l.f = f
	l.size = 0
	return nil
}

// Entries returns the entries of the active segment written after the
// last checkpoint marker.
func (l *Log) Entries() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entries, err := readEntries(l.path)
	if err != nil {
		return nil, err
	}
	return afterCheckpoint(entries), nil
}

// Verify re-checksums every entry in the active segment and returns
// the number verified. The first corrupt entry fails verification.
func (l *Log) Verify() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entries, err := readEntries(l.path)
	if err != nil {
		return 0, err
	}
	for i, e := range entries {
		if !e.Valid() {
			return i, fmt.Errorf("entry %d (seq %d) failed checksum verification", i, e.Seq)
		}
	}
	return len(entries), nil
}

// Checkpoint marks all prior entries as applied and truncates the
// active segment down to a single checkpoint marker.
func (l *Log) Checkpoint(ctx context.Context, collection string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.f.Truncate(0); err != nil {
		return err
	}
	if _, err := l.f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	l.size = 0

	l.seq++
	e := newEntry(l.seq, OpCheckpoint, collection, "", nil)
	line, err := json.Marshal(e)
	if err != nil {
		return err
	}
	line = append(line, '\n')
	if _, err := l.f.Write(line); err != nil {
		return err
	}
	l.size = int64(len(line))
	return l.f.Sync()
}

// Close syncs and closes the active segment.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.f.Sync(); err != nil {
		l.f.Close()
		return err
	}
	return l.f.Close()
}

func readEntries(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var entries []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			// A torn final line from a crash mid-append is expected;
			// everything before it is intact.
			break
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func afterCheckpoint(entries []Entry) []Entry {
	last := -1
	for i, e := range entries {
		if e.Op == OpCheckpoint {
			last = i
		}
	}
	return entries[last+1:]
}

func countSegments(dir string) int {
	matches, err := filepath.Glob(filepath.Join(dir, logFile+".*.gz"))
	if err != nil {
		return 0
	}
	return len(matches)
}
