// Package output persists run artifacts: raw captured payloads, extracted
// records in several formats, and failure diagnostics (screenshots, DOM
// snapshots).
package output

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/adlens/adlens/internal/extract"
)

// Format represents output format types.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
	FormatCSV   Format = "csv"
)

// ParseFormat validates a format name from config.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatJSONL, FormatYAML, FormatCSV:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unsupported output format: %q", s)
	}
}

// Encode writes records to w in the given format.
func Encode(w io.Writer, f Format, records []extract.Record) error {
	bw := bufio.NewWriter(w)
	var err error
	switch f {
	case FormatJSON:
		err = encodeJSON(bw, records)
	case FormatJSONL:
		err = encodeJSONL(bw, records)
	case FormatYAML:
		err = encodeYAML(bw, records)
	case FormatCSV:
		err = encodeCSV(bw, records)
	default:
		return fmt.Errorf("unsupported output format: %q", f)
	}
	if err != nil {
		return err
	}
	return bw.Flush()
}

func encodeJSON(w io.Writer, records []extract.Record) error {
	out, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	if _, err := w.Write(out); err != nil {
		return err
	}
	_, err = io.WriteString(w, "\n")
	return err
}

func encodeJSONL(w io.Writer, records []extract.Record) error {
	enc := json.NewEncoder(w)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

func encodeYAML(w io.Writer, records []extract.Record) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(records); err != nil {
		return err
	}
	return enc.Close()
}

// csvHeader matches the Record field order in csvRow.
var csvHeader = []string{"ad_text", "advertiser_name", "start_date", "ad_url"}

func encodeCSV(w io.Writer, records []extract.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(csvRow(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvRow(r extract.Record) []string {
	return []string{r.Text, r.SourceName, r.StartDate, r.URL}
}
