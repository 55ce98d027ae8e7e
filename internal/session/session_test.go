package session

import (
	"strings"
	"testing"
	"time"

	"github.com/adlens/adlens/internal/capture"
)

func TestCollectRecords_SkipsBadPayloadsAndDedupes(t *testing.T) {
	// Three payloads: one with a duplicated record, one distinct, one that
	// is not JSON at all. The bad payload is skipped, not fatal, and the
	// duplicate collapses across payload boundaries.
	payloads := []capture.Payload{
		{Seq: 1, Body: `{"ads":[
			{"bodyText":"Buy now","advertiserName":"Acme"},
			{"bodyText":"Buy now","advertiserName":"Acme"}
		]}`},
		{Seq: 2, Body: `{"results":{"edges":[
			{"node":{"bodyText":"Sale ends soon","pageName":"Beta"}}
		]}}`},
		{Seq: 3, Body: `<!DOCTYPE html><html>not json</html>`},
	}

	records := collectRecords(payloads)
	if len(records) != 2 {
		t.Fatalf("expected 2 unique records, got %d: %+v", len(records), records)
	}
	if records[0].SourceName != "Acme" || records[1].SourceName != "Beta" {
		t.Errorf("unexpected record order: %+v", records)
	}
}

func TestCollectRecords_AllPayloadsBad(t *testing.T) {
	payloads := []capture.Payload{
		{Seq: 1, Body: `not json`},
		{Seq: 2, Body: ``},
	}
	if records := collectRecords(payloads); len(records) != 0 {
		t.Errorf("expected no records, got %+v", records)
	}
}

func TestConfigValidate_FillsTimingDefaults(t *testing.T) {
	cfg := Config{
		StartURL:             "https://example.com/ads",
		ReadinessText:        "results",
		Country:              "Germany",
		CountryTriggerLabel:  "United States",
		CategoryTriggerLabel: "All ads",
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.NavTimeout == 0 || cfg.FirstHitTimeout == 0 || cfg.IdleBound == 0 {
		t.Errorf("expected timing defaults to be filled, got %+v", cfg)
	}
	if cfg.ScrollPause != 3*time.Second {
		t.Errorf("expected default scroll pause, got %v", cfg.ScrollPause)
	}
}

func TestConfigValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing url", func(c *Config) { c.StartURL = "" }},
		{"malformed url", func(c *Config) { c.StartURL = "not-a-url" }},
		{"missing country", func(c *Config) { c.Country = "" }},
		{"missing trigger label", func(c *Config) { c.CountryTriggerLabel = "" }},
		{"excessive scroll rounds", func(c *Config) { c.ScrollRounds = 500 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{
				StartURL:             "https://example.com/ads",
				ReadinessText:        "results",
				Country:              "Germany",
				CountryTriggerLabel:  "United States",
				CategoryTriggerLabel: "All ads",
			}
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestSummarizeDOM(t *testing.T) {
	html := `<html><head><title>Ad Library</title></head><body>
		<form><input type="text"><input type="search"></form>
		<button>Search</button>
		<div role="dialog"><div role="button">Accept</div></div>
	</body></html>`

	got := summarizeDOM(html)
	for _, want := range []string{`title="Ad Library"`, "inputs=2", "buttons=2", "dialogs=1", "forms=1"} {
		if !strings.Contains(got, want) {
			t.Errorf("summary %q missing %q", got, want)
		}
	}
}
