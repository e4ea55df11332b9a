package common

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ProcessEntry captures one completed operation on a recording or capture,
// written to an append-only JSONL audit log.
type ProcessEntry struct {
	Op      string    `json:"op"`
	Input   string    `json:"input,omitempty"`
	Outputs []string  `json:"outputs,omitempty"`
	Frames  int64     `json:"frames,omitempty"`
	Bytes   int64     `json:"bytes,omitempty"`
	Skipped int64     `json:"skipped,omitempty"`
	Detail  string    `json:"detail,omitempty"`
	Ts      time.Time `json:"ts"`
}

// ProcessLog provides append-only access to a JSONL audit log.
type ProcessLog struct {
	path string
	mu   sync.Mutex
}

// NewProcessLog returns a ProcessLog that writes to the provided path.
func NewProcessLog(path string) *ProcessLog {
	return &ProcessLog{path: path}
}

// Path returns the backing file path for the log.
func (p *ProcessLog) Path() string {
	if p == nil {
		return ""
	}
	return p.path
}

// Append writes a new entry to the audit log, one JSON object per line.
func (p *ProcessLog) Append(entry ProcessEntry) error {
	if p == nil {
		return errors.New("nil process log")
	}
	if entry.Op == "" {
		return errors.New("process entry missing op")
	}
	if entry.Ts.IsZero() {
		entry.Ts = time.Now().UTC()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	dir := filepath.Dir(p.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	f, err := os.OpenFile(p.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return err
	}
	return f.Sync()
}

// ReadProcessLog loads every entry from the supplied JSONL file.
func ReadProcessLog(path string) ([]ProcessEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	var entries []ProcessEntry
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry ProcessEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, fmt.Errorf("decode process entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
