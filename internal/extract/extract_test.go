package extract

import (
	"encoding/json"
	"strings"
	"testing"
)

// parseJSON is a test helper that decodes a JSON literal into the loose
// representation Extract operates on.
func parseJSON(t *testing.T, s string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("invalid test JSON: %v", err)
	}
	return v
}

func TestExtract_DirectRecord(t *testing.T) {
	v := parseJSON(t, `{"bodyText":"Buy now","advertiserName":"Acme"}`)

	records := Extract(v)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Text != "Buy now" {
		t.Errorf("expected text 'Buy now', got %q", records[0].Text)
	}
	if records[0].SourceName != "Acme" {
		t.Errorf("expected source 'Acme', got %q", records[0].SourceName)
	}
}

func TestExtract_SourceNameAloneQualifies(t *testing.T) {
	v := parseJSON(t, `{"advertiserName":"Acme"}`)

	records := Extract(v)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Text != "" {
		t.Errorf("expected empty text, got %q", records[0].Text)
	}
	if records[0].SourceName != "Acme" {
		t.Errorf("expected source 'Acme', got %q", records[0].SourceName)
	}
}

func TestExtract_NonRecordRecursesIntoChildren(t *testing.T) {
	v := parseJSON(t, `{"id":123,"misc":{"payload":{"pageName":"Widgets Inc","message":"Sale"}}}`)

	records := Extract(v)
	if len(records) != 1 {
		t.Fatalf("expected 1 record from nested container, got %d", len(records))
	}
	if records[0].SourceName != "Widgets Inc" || records[0].Text != "Sale" {
		t.Errorf("unexpected record: %+v", records[0])
	}
}

func TestExtract_NoMatchYieldsNothing(t *testing.T) {
	v := parseJSON(t, `{"id":123,"misc":"x"}`)

	if records := Extract(v); len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
}

func TestExtract_CreativeFallback(t *testing.T) {
	v := parseJSON(t, `{"creative":{"bodyText":"Hello"}}`)

	records := Extract(v)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Text != "Hello" {
		t.Errorf("expected text 'Hello' from creative fallback, got %q", records[0].Text)
	}
}

func TestExtract_MatchedObjectIsLeaf(t *testing.T) {
	// The outer object qualifies; the nested child also would on its own.
	// Only the outer record may be emitted.
	v := parseJSON(t, `{
		"bodyText": "Outer",
		"advertiserName": "Acme",
		"child": {"bodyText": "Inner", "advertiserName": "Acme Sub"}
	}`)

	records := Extract(v)
	if len(records) != 1 {
		t.Fatalf("expected matched object to be a leaf, got %d records", len(records))
	}
	if records[0].Text != "Outer" {
		t.Errorf("expected outer record, got %+v", records[0])
	}
}

func TestExtract_ArraysAndAliasPriority(t *testing.T) {
	v := parseJSON(t, `{
		"results": [
			{"text":"low priority","message":"mid priority","body":"high priority"},
			{"publisher":"Pub","creation_time":"2024-01-02","link":"https://x.example/a"}
		]
	}`)

	records := Extract(v)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	// "body" outranks "message" and "text" in the alias table.
	if records[0].Text != "high priority" {
		t.Errorf("alias priority broken: got text %q", records[0].Text)
	}
	if records[1].SourceName != "Pub" || records[1].StartDate != "2024-01-02" || records[1].URL != "https://x.example/a" {
		t.Errorf("unexpected second record: %+v", records[1])
	}
}

func TestExtract_PreOrderAcrossSiblingArrays(t *testing.T) {
	v := parseJSON(t, `[
		{"bodyText":"first","advertiserName":"A"},
		{"wrapper":{"bodyText":"second","advertiserName":"B"}},
		{"bodyText":"third","advertiserName":"C"}
	]`)

	records := Extract(v)
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i, want := range []string{"first", "second", "third"} {
		if records[i].Text != want {
			t.Errorf("record %d: expected %q, got %q", i, want, records[i].Text)
		}
	}
}

func TestExtract_DepthCapFailsClosed(t *testing.T) {
	// Build nesting well past the cap with a record at the bottom.
	deep := `{"bodyText":"bottom","advertiserName":"Deep"}`
	for i := 0; i < maxDepth+50; i++ {
		deep = `{"level":` + deep + `}`
	}
	v := parseJSON(t, deep)

	// Must not panic; the buried record is simply not reached.
	records := Extract(v)
	if len(records) != 0 {
		t.Errorf("expected extraction to stop at the depth cap, got %d records", len(records))
	}
}

func TestParse_InvalidJSON(t *testing.T) {
	_, err := Parse([]byte(`{"truncated":`))
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
	if !strings.Contains(err.Error(), "not valid JSON") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestParse_Valid(t *testing.T) {
	records, err := Parse([]byte(`{"data":[{"bodyText":"Ad","pageName":"Page"}]}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
}
