package extract

import (
	"reflect"
	"testing"
)

func TestDedupe_KeepsFirstOccurrence(t *testing.T) {
	in := []Record{
		{Text: "Buy now", SourceName: "Acme", StartDate: "2024-01-01"},
		{Text: "Buy now", SourceName: "Acme", StartDate: "2024-02-02"},
		{Text: "Sale", SourceName: "Acme"},
	}

	out := Dedupe(in)
	if len(out) != 2 {
		t.Fatalf("expected 2 records, got %d", len(out))
	}
	// The earliest duplicate wins, including its non-key fields.
	if out[0].StartDate != "2024-01-01" {
		t.Errorf("expected first occurrence retained, got %+v", out[0])
	}
}

func TestDedupe_PreservesOrderAcrossGroups(t *testing.T) {
	in := []Record{
		{Text: "c"},
		{Text: "a"},
		{Text: "c"},
		{Text: "b"},
		{Text: "a"},
	}

	out := Dedupe(in)
	got := make([]string, len(out))
	for i, r := range out {
		got[i] = r.Text
	}
	want := []string{"c", "a", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected order %v, got %v", want, got)
	}
}

func TestDedupe_MissingFieldsAsEmpty(t *testing.T) {
	in := []Record{
		{SourceName: "Acme"},
		{SourceName: "Acme", URL: "https://x.example"},
	}

	out := Dedupe(in)
	if len(out) != 1 {
		t.Fatalf("records with empty text and equal source must collapse, got %d", len(out))
	}
}

func TestDedupe_NoSharedKeysInOutput(t *testing.T) {
	in := []Record{
		{Text: "x", SourceName: "1"},
		{Text: "x", SourceName: "2"},
		{Text: "y", SourceName: "1"},
		{Text: "x", SourceName: "1"},
	}

	out := Dedupe(in)
	if len(out) > len(in) {
		t.Errorf("output longer than input: %d > %d", len(out), len(in))
	}
	seen := make(map[identity]bool)
	for _, r := range out {
		key := identity{text: r.Text, source: r.SourceName}
		if seen[key] {
			t.Errorf("duplicate key in output: %+v", key)
		}
		seen[key] = true
	}
}

func TestDedupe_Idempotent(t *testing.T) {
	in := []Record{
		{Text: "a", SourceName: "1"},
		{Text: "a", SourceName: "1"},
		{Text: "b", SourceName: "2"},
	}

	once := Dedupe(in)
	twice := Dedupe(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("Dedupe not idempotent: %v vs %v", once, twice)
	}
}

func TestDedupe_Empty(t *testing.T) {
	if out := Dedupe(nil); len(out) != 0 {
		t.Errorf("expected empty output, got %v", out)
	}
}
