// Package capture listens to the browser's network traffic, decides which
// responses carry search-result payloads, and buffers their bodies for
// extraction at the end of the session.
package capture

import (
	"fmt"
	"strings"
)

// Variant selects which classification heuristic is active. The two
// variants target the same intent ("is this a search-results payload") via
// different markup assumptions; which one works depends on how the site is
// currently serving results, so the choice is explicit configuration.
type Variant string

const (
	// VariantEndpoint accepts responses whose URL path contains the data
	// endpoint marker and whose content type is JSON.
	VariantEndpoint Variant = "endpoint"

	// VariantGraphQL accepts responses whose URL contains the API path
	// marker, or whose originating request carries the operation header
	// with a value containing the query operation marker.
	VariantGraphQL Variant = "graphql"
)

// Defaults for the ad library deployment currently targeted.
const (
	defaultEndpointMarker  = "/ads/library/async/search_ads"
	defaultAPIMarker       = "/api/graphql"
	defaultOperationHeader = "x-fb-friendly-name"
	defaultOperationMarker = "AdLibrarySearchPaginationQuery"
)

// Response is the per-event view the classifier inspects. Bodies are
// deliberately absent: classification runs on the live event stream and
// must not block on a body fetch.
type Response struct {
	URL            string
	ContentType    string
	RequestHeaders map[string]string
}

// Classifier is a pure predicate over response metadata.
type Classifier struct {
	variant         Variant
	endpointMarker  string
	apiMarker       string
	operationHeader string
	operationMarker string
}

// NewClassifier builds a classifier for the given variant. An unknown
// variant is rejected so a config typo fails at startup, not mid-session.
func NewClassifier(v Variant) (*Classifier, error) {
	switch v {
	case VariantEndpoint, VariantGraphQL:
	case "":
		v = VariantEndpoint
	default:
		return nil, fmt.Errorf("unknown classifier variant: %q (use %q or %q)", v, VariantEndpoint, VariantGraphQL)
	}
	return &Classifier{
		variant:         v,
		endpointMarker:  defaultEndpointMarker,
		apiMarker:       defaultAPIMarker,
		operationHeader: defaultOperationHeader,
		operationMarker: defaultOperationMarker,
	}, nil
}

// Variant reports the active heuristic.
func (c *Classifier) Variant() Variant { return c.variant }

// Accepts reports whether the response looks like a search-results payload.
// It never panics: any error inspecting the metadata counts as a non-match,
// because a dropped payload is recoverable and a crashed listener is not.
func (c *Classifier) Accepts(r Response) (accepted bool) {
	defer func() {
		if recover() != nil {
			accepted = false
		}
	}()

	switch c.variant {
	case VariantGraphQL:
		if strings.Contains(r.URL, c.apiMarker) {
			return true
		}
		return strings.Contains(headerValue(r.RequestHeaders, c.operationHeader), c.operationMarker)
	default:
		return strings.Contains(r.URL, c.endpointMarker) &&
			strings.Contains(strings.ToLower(r.ContentType), "json")
	}
}

// headerValue does a case-insensitive header lookup.
func headerValue(headers map[string]string, name string) string {
	if headers == nil {
		return ""
	}
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}
