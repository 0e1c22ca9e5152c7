package output

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"fieldjudge/internal/verdict"
)

func testRecord(recordID string) Record {
	return Record{
		RunID:          "run-1",
		RecordID:       recordID,
		Field:          "title",
		Classification: verdict.Match,
		Explanation:    "the posting names the title, with a comma to exercise quoting",
		Provenance:     verdict.FromJudge,
		Fingerprint:    "fp-" + recordID,
		CacheHit:       true,
		Attempts:       2,
		LatencyMs:      120,
	}
}

func TestWriterAppendsBothArtifacts(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "results.csv")
	jsonlPath := filepath.Join(dir, "results.jsonl")

	w, err := NewWriter(csvPath, jsonlPath)
	if err != nil {
		t.Fatalf("creating writer: %v", err)
	}

	records := []Record{testRecord("rec-1"), testRecord("rec-2")}
	for _, record := range records {
		if err := w.Append(record); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if w.Count() != 2 {
		t.Fatalf("expected count 2, got %d", w.Count())
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(csvPath)
	if err != nil {
		t.Fatalf("opening csv: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("reading csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(rows))
	}
	header := rows[0]
	for _, row := range rows[1:] {
		if len(row) != len(header) {
			t.Fatalf("expected %d fields per row, got %d", len(header), len(row))
		}
	}
	if rows[1][1] != "rec-1" || rows[2][1] != "rec-2" {
		t.Fatalf("expected rows in append order, got %v / %v", rows[1], rows[2])
	}

	jf, err := os.Open(jsonlPath)
	if err != nil {
		t.Fatalf("opening jsonl: %v", err)
	}
	defer jf.Close()

	var parsed []Record
	scanner := bufio.NewScanner(jf)
	for scanner.Scan() {
		var record Record
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			t.Fatalf("unmarshaling jsonl line: %v", err)
		}
		parsed = append(parsed, record)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scanning jsonl: %v", err)
	}

	if len(parsed) != 2 {
		t.Fatalf("expected 2 jsonl records, got %d", len(parsed))
	}
	for i, record := range parsed {
		if record != records[i] {
			t.Fatalf("expected jsonl round trip to be lossless, got %+v", record)
		}
	}
}

func TestWriterCSVOnly(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "results.csv")

	w, err := NewWriter(csvPath, "")
	if err != nil {
		t.Fatalf("creating writer: %v", err)
	}
	if err := w.Append(testRecord("rec-1")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "results.jsonl")); !os.IsNotExist(err) {
		t.Fatalf("expected no jsonl artifact, stat err: %v", err)
	}
}

func TestWriterCreatesParentDirectories(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "nested", "deep", "results.csv")

	w, err := NewWriter(csvPath, "")
	if err != nil {
		t.Fatalf("creating writer: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, err := os.Stat(csvPath); err != nil {
		t.Fatalf("expected csv artifact under created directories: %v", err)
	}
}
