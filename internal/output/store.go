package output

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adlens/adlens/internal/extract"
	"github.com/adlens/adlens/internal/logger"
)

// RunStore lays out one harvest run's artifacts under a single directory:
//
//	<dir>/payloads/payload_NNN.json   raw captured response bodies
//	<dir>/results.json                extracted records
//	<dir>/results.csv                 same records, flat
//	<dir>/<label>.png                 screenshots
//	<dir>/dom_snapshot.html           DOM at failure time
type RunStore struct {
	dir string
}

// NewRunStore creates the run directory tree.
func NewRunStore(dir string) (*RunStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, "payloads"), 0o755); err != nil {
		return nil, fmt.Errorf("creating run directory %s: %w", dir, err)
	}
	return &RunStore{dir: dir}, nil
}

// Dir returns the run directory root.
func (s *RunStore) Dir() string { return s.dir }

// SaveRawPayload persists one captured response body, named by its capture
// sequence number so on-disk order matches arrival order.
func (s *RunStore) SaveRawPayload(body []byte, seq int64) error {
	path := filepath.Join(s.dir, "payloads", fmt.Sprintf("payload_%03d.json", seq))
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("writing payload %d: %w", seq, err)
	}
	return nil
}

// SaveResults writes the extracted records as both JSON and CSV.
func (s *RunStore) SaveResults(records []extract.Record) error {
	for _, out := range []struct {
		name   string
		format Format
	}{
		{"results.json", FormatJSON},
		{"results.csv", FormatCSV},
	} {
		path := filepath.Join(s.dir, out.name)
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating %s: %w", out.name, err)
		}
		if err := Encode(f, out.format, records); err != nil {
			f.Close()
			return fmt.Errorf("writing %s: %w", out.name, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("closing %s: %w", out.name, err)
		}
		logger.Debug("results written", "path", path, "records", len(records))
	}
	return nil
}

// SaveScreenshot persists a PNG screenshot under the given label.
func (s *RunStore) SaveScreenshot(png []byte, label string) error {
	path := filepath.Join(s.dir, label+".png")
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return fmt.Errorf("writing screenshot %s: %w", label, err)
	}
	return nil
}

// SaveDOMSnapshot persists the page HTML captured for failure diagnostics.
func (s *RunStore) SaveDOMSnapshot(html string) error {
	path := filepath.Join(s.dir, "dom_snapshot.html")
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		return fmt.Errorf("writing DOM snapshot: %w", err)
	}
	return nil
}
