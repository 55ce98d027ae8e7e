// Package extract mines ad records out of captured JSON payloads whose
// schema is undocumented and changes without notice. Instead of decoding
// into fixed structs, it walks arbitrarily nested JSON and collects every
// object that looks like an ad record under a loose field-presence
// heuristic.
package extract

import (
	"encoding/json"
	"fmt"

	"github.com/adlens/adlens/internal/logger"
)

// Record is one extracted ad. All fields are free-form strings taken
// verbatim from the payload; a field missing from the source object stays
// empty. At least one of Text or SourceName is always set.
type Record struct {
	Text       string `json:"ad_text,omitempty" yaml:"ad_text,omitempty"`
	SourceName string `json:"advertiser_name,omitempty" yaml:"advertiser_name,omitempty"`
	StartDate  string `json:"start_date,omitempty" yaml:"start_date,omitempty"`
	URL        string `json:"ad_url,omitempty" yaml:"ad_url,omitempty"`
}

// Alias tables for each logical field, checked in priority order. The first
// string-typed match wins. These names cover the schema variants observed in
// the wild; extend here when the endpoint renames a field.
var (
	textAliases   = []string{"bodyText", "body", "message", "text", "ad_text"}
	sourceAliases = []string{"advertiserName", "pageName", "publisher", "advertiser"}
	dateAliases   = []string{"startDate", "start_date", "creation_time"}
	urlAliases    = []string{"ad_url", "url", "link"}
)

// maxDepth caps the recursive walk. Real payloads nest 10-20 levels deep;
// anything past this is pathological and extraction stops rather than
// risking stack exhaustion.
const maxDepth = 200

// Parse unmarshals a raw payload body and extracts its records.
func Parse(body []byte) ([]Record, error) {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("payload is not valid JSON: %w", err)
	}
	return Extract(v), nil
}

// Extract walks a parsed JSON value depth-first and returns every
// record-like object found, in pre-order. A matched object is treated as a
// leaf: its children are not searched again, so a record nested inside a
// record is never double counted.
func Extract(v any) []Record {
	w := &walker{}
	w.walk(v, 0)
	if w.truncated {
		logger.Warn("record extraction stopped at depth cap", "depth", maxDepth)
	}
	return w.records
}

type walker struct {
	records   []Record
	truncated bool
}

func (w *walker) walk(v any, depth int) {
	if depth > maxDepth {
		w.truncated = true
		return
	}

	switch val := v.(type) {
	case map[string]any:
		if rec, ok := recordFrom(val); ok {
			w.records = append(w.records, rec)
			return
		}
		for _, child := range val {
			w.walk(child, depth+1)
		}
	case []any:
		for _, el := range val {
			w.walk(el, depth+1)
		}
	}
	// Scalars terminate the walk.
}

// recordFrom applies the record heuristic to a single object. The object
// qualifies when the alias lookup yields a non-empty text or a non-empty
// source name. When text is missing but the object carries a nested
// "creative" object, the text aliases are retried against it before the
// final decision.
func recordFrom(obj map[string]any) (Record, bool) {
	rec := Record{
		Text:       firstString(obj, textAliases),
		SourceName: firstString(obj, sourceAliases),
		StartDate:  firstString(obj, dateAliases),
		URL:        firstString(obj, urlAliases),
	}

	if rec.Text == "" {
		if creative, ok := obj["creative"].(map[string]any); ok {
			rec.Text = firstString(creative, textAliases)
		}
	}

	if rec.Text == "" && rec.SourceName == "" {
		return Record{}, false
	}
	return rec, true
}

func firstString(obj map[string]any, aliases []string) string {
	for _, name := range aliases {
		if s, ok := obj[name].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
