package runtime

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// HistoryWriter appends invocation results to a JSONL file.
type HistoryWriter struct {
	file   *os.File
	writer *bufio.Writer
}

// NewHistoryWriter opens path for appending, creating it and its directory
// when needed.
func NewHistoryWriter(path string) (*HistoryWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open history file: %w", err)
	}
	return &HistoryWriter{file: f, writer: bufio.NewWriter(f)}, nil
}

// Write appends one record and flushes it to disk.
func (hw *HistoryWriter) Write(r *Result) error {
	line, err := r.Record()
	if err != nil {
		return err
	}
	if _, err := hw.writer.Write(line); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	if err := hw.writer.Flush(); err != nil {
		return fmt.Errorf("flush history: %w", err)
	}
	if err := hw.file.Sync(); err != nil {
		return fmt.Errorf("sync history: %w", err)
	}
	return nil
}

// Close flushes and closes the history file.
func (hw *HistoryWriter) Close() error {
	if err := hw.writer.Flush(); err != nil {
		return err
	}
	return hw.file.Close()
}

// AppendHistory writes a single record to path.
func AppendHistory(path string, r *Result) error {
	hw, err := NewHistoryWriter(path)
	if err != nil {
		return err
	}
	if err := hw.Write(r); err != nil {
		hw.Close()
		return err
	}
	return hw.Close()
}

// ReadHistory returns every record of path, oldest first. A missing file is
// an empty history. Lines that do not decode are skipped.
func ReadHistory(path string) ([]*Result, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open history file: %w", err)
	}
	defer f.Close()

	var out []*Result
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var r Result
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			continue
		}
		out = append(out, &r)
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("read history: %w", err)
	}
	return out, nil
}

// Nth returns the n-th most recent record (0 is the latest).
func Nth(history []*Result, n int) (*Result, error) {
	if n < 0 || n >= len(history) {
		return nil, fmt.Errorf("history has %d records, no entry %d", len(history), n)
	}
	return history[len(history)-1-n], nil
}
