package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Writer appends resolved records to the CSV and JSONL artifacts. Both files
// are derived from the same records, flushed per append so an interrupted run
// keeps everything already resolved. All appends go through one mutex: the
// artifact order is the order of Append calls.
type Writer struct {
	mu        sync.Mutex
	csvFile   *os.File
	csvWriter *csv.Writer
	jsonlFile *os.File
	count     int
}

// NewWriter creates (truncating) the artifact files. Either path may be empty
// to skip that artifact.
func NewWriter(csvPath, jsonlPath string) (*Writer, error) {
	w := &Writer{}

	if csvPath != "" {
		f, err := createFile(csvPath)
		if err != nil {
			return nil, err
		}
		w.csvFile = f
		w.csvWriter = csv.NewWriter(f)
		if err := w.csvWriter.Write(csvHeader()); err != nil {
			f.Close()
			return nil, fmt.Errorf("write csv header: %w", err)
		}
		w.csvWriter.Flush()
	}

	if jsonlPath != "" {
		f, err := createFile(jsonlPath)
		if err != nil {
			w.Close()
			return nil, err
		}
		w.jsonlFile = f
	}

	return w, nil
}

func createFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	return f, nil
}

// Append durably writes one record to both artifacts.
func (w *Writer) Append(record Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.csvWriter != nil {
		if err := w.csvWriter.Write(record.csvRow()); err != nil {
			return fmt.Errorf("append csv row: %w", err)
		}
		w.csvWriter.Flush()
		if err := w.csvWriter.Error(); err != nil {
			return fmt.Errorf("flush csv row: %w", err)
		}
	}

	if w.jsonlFile != nil {
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal jsonl row: %w", err)
		}
		if _, err := w.jsonlFile.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("append jsonl row: %w", err)
		}
	}

	w.count++
	return nil
}

// Count reports the number of appended records.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Close flushes and closes both artifacts.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error
	if w.csvWriter != nil {
		w.csvWriter.Flush()
		if err := w.csvWriter.Error(); err != nil {
			firstErr = err
		}
	}
	if w.csvFile != nil {
		if err := w.csvFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if w.jsonlFile != nil {
		if err := w.jsonlFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
