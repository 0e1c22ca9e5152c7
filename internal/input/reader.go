package input

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"fieldjudge/internal/work"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

// delimiters maps format names onto delimited-file separators.
var delimiters = map[string]rune{
	"csv": ',',
	"tsv": '\t',
	"psv": '|',
}

// ReadWorkUnits reads pre-built work units from a JSONL file, one object per
// line. Malformed lines become units that fail validation downstream instead
// of aborting the read: a bad row costs one degraded verdict, not the batch.
func ReadWorkUnits(path string, logger *zap.Logger) ([]work.Unit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open work units file: %w", err)
	}
	defer f.Close()

	var units []work.Unit

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var row map[string]any
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			logger.Warn("skipping unparseable work unit line",
				zap.Int("line", lineNo),
				zap.Error(err),
			)
			units = append(units, work.Unit{})
			continue
		}

		var unit work.Unit
		cfg := &mapstructure.DecoderConfig{
			Result:  &unit,
			TagName: "mapstructure",
		}
		decoder, _ := mapstructure.NewDecoder(cfg)
		if err := decoder.Decode(row); err != nil {
			logger.Warn("skipping undecodable work unit line",
				zap.Int("line", lineNo),
				zap.Error(err),
			)
			units = append(units, work.Unit{})
			continue
		}

		units = append(units, unit)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read work units file: %w", err)
	}

	return units, nil
}

// RecordsConfig describes how to expand a delimited records file into work
// units.
type RecordsConfig struct {
	// Format selects the delimiter: csv, tsv or psv.
	Format string `mapstructure:"format"`
	// IDColumn holds the record identifier.
	IDColumn string `mapstructure:"id-column"`
	// EvidenceColumn holds the raw posting text.
	EvidenceColumn string `mapstructure:"evidence-column"`
	// FieldColumns are the structured fields to validate, one unit each.
	FieldColumns []string `mapstructure:"field-columns"`
	// Template optionally names the prompt template for all produced units.
	Template string `mapstructure:"template"`
}

// ReadRecords reads a delimited records file and expands every record into one
// work unit per configured field column.
func ReadRecords(path string, cfg RecordsConfig) ([]work.Unit, error) {
	delim, ok := delimiters[strings.ToLower(strings.TrimSpace(cfg.Format))]
	if !ok {
		return nil, fmt.Errorf("unsupported records format: %q (expected csv, tsv or psv)", cfg.Format)
	}
	if strings.TrimSpace(cfg.IDColumn) == "" {
		return nil, fmt.Errorf("records id-column is required")
	}
	if strings.TrimSpace(cfg.EvidenceColumn) == "" {
		return nil, fmt.Errorf("records evidence-column is required")
	}
	if len(cfg.FieldColumns) == 0 {
		return nil, fmt.Errorf("records field-columns must not be empty")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open records file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read records header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}

	required := append([]string{cfg.IDColumn, cfg.EvidenceColumn}, cfg.FieldColumns...)
	var missing []string
	for _, name := range required {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns %v, found %v", missing, header)
	}

	var units []work.Unit
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read records row: %w", err)
		}

		cell := func(name string) string {
			i := index[name]
			if i >= len(row) {
				return ""
			}
			return cleanCell(row[i])
		}

		recordID := cell(cfg.IDColumn)
		evidence := cell(cfg.EvidenceColumn)

		for _, field := range cfg.FieldColumns {
			units = append(units, work.Unit{
				RecordID: recordID,
				Field:    field,
				Value:    cell(field),
				Evidence: evidence,
				Template: cfg.Template,
			})
		}
	}

	return units, nil
}

// cleanCell applies the export-artifact cleanup: placeholder null markers
// become empty, embedded line breaks become spaces.
func cleanCell(value string) string {
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.ReplaceAll(value, "\n", " ")
	value = strings.TrimSpace(value)
	switch value {
	case "[None]", "nan", "NaN":
		return ""
	}
	return value
}
