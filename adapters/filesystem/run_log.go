package filesystem

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"intenttune/domain/training"
	"intenttune/internal/errors"
)

// JSONLinesWriter appends one JSON document per line to a file
type JSONLinesWriter struct {
	mu   sync.Mutex
	path string
}

// NewJSONLinesWriter creates the parent directory of path
func NewJSONLinesWriter(path string) (*JSONLinesWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.StorageError("create log directory", err)
	}
	return &JSONLinesWriter{path: path}, nil
}

// Path returns the file written to
func (w *JSONLinesWriter) Path() string {
	return w.path
}

// Write appends v as one line
func (w *JSONLinesWriter) Write(v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return errors.StorageError("encode log line", err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.StorageError("open "+w.path, err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return errors.StorageError("append to "+w.path, err)
	}
	return nil
}

// TrainingLog implements ports.TrainingLog
type TrainingLog struct {
	w *JSONLinesWriter
}

// NewTrainingLog writes entries to dir/<name>.jsonl
func NewTrainingLog(dir, name string) (*TrainingLog, error) {
	w, err := NewJSONLinesWriter(filepath.Join(dir, name+".jsonl"))
	if err != nil {
		return nil, err
	}
	return &TrainingLog{w: w}, nil
}

// Append implements ports.TrainingLog
func (l *TrainingLog) Append(entry training.LogEntry) error {
	return l.w.Write(entry)
}
