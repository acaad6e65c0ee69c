// Package export persists extraction results as CSV or JSON files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format is a supported output format
type Format string

const (
	CSV  Format = "csv"
	JSON Format = "json"
)

// ParseFormat converts a format token, case-insensitively
func ParseFormat(token string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(token))) {
	case CSV:
		return CSV, nil
	case JSON:
		return JSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, token)
	}
}

// Save writes records to path in the given format. The format and path are
// validated before the file is created, so a rejected call leaves nothing
// behind. An I/O error mid-write may leave a partial file.
func Save(records []Record, path, format string) error {
	f, err := ParseFormat(format)
	if err != nil {
		return err
	}
	if path == "" {
		return ErrEmptyPath
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	switch f {
	case CSV:
		err = writeCSV(file, records)
	case JSON:
		err = writeJSON(file, records)
	}
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to save data to %s (format: %s): %w", path, strings.ToUpper(string(f)), err)
	}

	slog.Info("Data saved to file", "path", path, "format", f, "records", len(records))
	return nil
}

// Load reads records written by Save. CSV files carry no field names, so
// loaded CSV fields have empty names.
func Load(path, format string) ([]Record, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	switch f {
	case CSV:
		return readCSV(file)
	default:
		var records []Record
		if err := json.NewDecoder(file).Decode(&records); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		return records, nil
	}
}

func writeCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	for _, r := range records {
		if err := cw.Write(r.Values()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeJSON(w io.Writer, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	return enc.Encode(records)
}

func readCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		record := make(Record, 0, len(row))
		for _, v := range row {
			record = append(record, Field{Value: v})
		}
		records = append(records, record)
	}
	return records, nil
}
