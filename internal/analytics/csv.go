package analytics

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

// Most Seoul open-data CSV exports ship in CP949; UTF-8 files pass through
// the decoder unchanged only when declared, so the encoding is explicit.
const (
	EncodingUTF8  = "utf-8"
	EncodingCP949 = "cp949"
)

// ReadCSVRows streams a header-keyed CSV file, trimming whitespace from
// both keys and values. The callback is invoked once per row; returning an
// error stops the scan.
func ReadCSVRows(path, encoding string, fn func(row map[string]string) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("analytics: open csv: %w", err)
	}
	defer file.Close()

	var source io.Reader = file
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", EncodingUTF8:
	case EncodingCP949, "euc-kr":
		source = transform.NewReader(file, korean.EUCKR.NewDecoder())
	default:
		return fmt.Errorf("analytics: unsupported csv encoding %q", encoding)
	}

	reader := csv.NewReader(source)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("analytics: read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\uFEFF"))
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("analytics: read csv row: %w", err)
		}
		row := make(map[string]string, len(header))
		for i, key := range header {
			if i >= len(record) {
				break
			}
			row[key] = strings.TrimSpace(record[i])
		}
		if err := fn(row); err != nil {
			return err
		}
	}
}

// cleanNumber strips thousands separators and placeholder markers.
func cleanNumber(value string) string {
	trimmed := strings.TrimSpace(strings.ReplaceAll(value, ",", ""))
	switch strings.ToUpper(trimmed) {
	case "", "NULL", "NAN":
		return ""
	}
	return trimmed
}

// ParseFloat converts a CSV cell to a float, nil for blanks and markers.
func ParseFloat(value string) *float64 {
	cleaned := cleanNumber(value)
	if cleaned == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &parsed
}

// ParseInt converts a CSV cell to an int, nil for blanks and markers.
func ParseInt(value string) *int {
	cleaned := cleanNumber(value)
	if cleaned == "" {
		return nil
	}
	parsed, err := strconv.Atoi(cleaned)
	if err != nil {
		return nil
	}
	return &parsed
}

// firstValue returns the first non-empty cell among the candidate columns.
func firstValue(row map[string]string, keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(row[key]); value != "" {
			return value
		}
	}
	return ""
}
