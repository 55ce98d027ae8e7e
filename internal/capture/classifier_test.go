package capture

import "testing"

func mustClassifier(t *testing.T, v Variant) *Classifier {
	t.Helper()
	c, err := NewClassifier(v)
	if err != nil {
		t.Fatalf("NewClassifier(%q) error = %v", v, err)
	}
	return c
}

func TestNewClassifier_UnknownVariant(t *testing.T) {
	if _, err := NewClassifier("fancy"); err == nil {
		t.Error("expected error for unknown variant")
	}
}

func TestNewClassifier_DefaultsToEndpoint(t *testing.T) {
	c := mustClassifier(t, "")
	if c.Variant() != VariantEndpoint {
		t.Errorf("expected default variant %q, got %q", VariantEndpoint, c.Variant())
	}
}

func TestEndpoint_AcceptsJSONFromDataEndpoint(t *testing.T) {
	c := mustClassifier(t, VariantEndpoint)

	accepted := c.Accepts(Response{
		URL:         "https://www.example.com/ads/library/async/search_ads/?q=shoes",
		ContentType: "application/json; charset=utf-8",
	})
	if !accepted {
		t.Error("expected JSON response from data endpoint to be accepted")
	}
}

func TestEndpoint_RejectsNonJSON(t *testing.T) {
	c := mustClassifier(t, VariantEndpoint)

	accepted := c.Accepts(Response{
		URL:         "https://www.example.com/ads/library/async/search_ads/?q=shoes",
		ContentType: "text/html",
	})
	if accepted {
		t.Error("expected text/html response to be rejected")
	}
}

func TestEndpoint_RejectsOtherPaths(t *testing.T) {
	c := mustClassifier(t, VariantEndpoint)

	accepted := c.Accepts(Response{
		URL:         "https://www.example.com/static/bundle.js",
		ContentType: "application/json",
	})
	if accepted {
		t.Error("expected unrelated JSON response to be rejected")
	}
}

func TestGraphQL_AcceptsAPIPath(t *testing.T) {
	c := mustClassifier(t, VariantGraphQL)

	if !c.Accepts(Response{URL: "https://www.example.com/api/graphql/"}) {
		t.Error("expected API path to be accepted")
	}
}

func TestGraphQL_AcceptsOperationHeader(t *testing.T) {
	c := mustClassifier(t, VariantGraphQL)

	accepted := c.Accepts(Response{
		URL: "https://www.example.com/some/other/path",
		RequestHeaders: map[string]string{
			"X-FB-Friendly-Name": "AdLibrarySearchPaginationQuery",
		},
	})
	if !accepted {
		t.Error("expected operation header match to be accepted")
	}
}

func TestGraphQL_HeaderLookupCaseInsensitive(t *testing.T) {
	c := mustClassifier(t, VariantGraphQL)

	accepted := c.Accepts(Response{
		URL: "https://www.example.com/x",
		RequestHeaders: map[string]string{
			"x-fb-friendly-name": "AdLibrarySearchPaginationQuery",
		},
	})
	if !accepted {
		t.Error("expected case-insensitive header lookup")
	}
}

func TestGraphQL_RejectsUnrelated(t *testing.T) {
	c := mustClassifier(t, VariantGraphQL)

	accepted := c.Accepts(Response{
		URL:            "https://www.example.com/static/img.png",
		RequestHeaders: map[string]string{"Accept": "image/png"},
	})
	if accepted {
		t.Error("expected unrelated response to be rejected")
	}
}

func TestAccepts_NeverPanics(t *testing.T) {
	// A nil classifier field access or malformed metadata must classify as
	// a non-match instead of propagating a panic into the event loop.
	c := mustClassifier(t, VariantGraphQL)

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("Accepts panicked: %v", r)
		}
	}()

	if c.Accepts(Response{URL: "", ContentType: "", RequestHeaders: nil}) {
		t.Error("expected empty response metadata to be rejected")
	}
}
