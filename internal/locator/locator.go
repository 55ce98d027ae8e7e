// Package locator finds UI controls on a page whose markup is not
// guaranteed stable. Each semantic target maps to an ordered cascade of
// locator strategies; strategies are tried in priority order and the first
// one that yields any visible candidate wins outright, so a weaker fallback
// never overrides a stronger match.
package locator

import (
	"context"
	"errors"
	"fmt"

	"github.com/adlens/adlens/internal/logger"
)

// Target names a control the session needs, independent of how it is
// currently rendered.
type Target int

const (
	SearchInput Target = iota
	CountryDropdownTrigger
	CategoryDropdownTrigger
)

func (t Target) String() string {
	switch t {
	case SearchInput:
		return "search input"
	case CountryDropdownTrigger:
		return "country dropdown trigger"
	case CategoryDropdownTrigger:
		return "category dropdown trigger"
	default:
		return fmt.Sprintf("target(%d)", int(t))
	}
}

// StrategyKind identifies how a strategy selects its candidates.
type StrategyKind int

const (
	// KindAttribute matches on distinctive attributes (placeholder,
	// aria-label, type). Most precise, first to break on redesigns.
	KindAttribute StrategyKind = iota

	// KindRole matches on ARIA roles, which tend to survive class-name
	// churn.
	KindRole

	// KindGeometry enumerates a generic tag and filters by bounding-box
	// geometry. Last resort; the width threshold rejects decorative
	// inputs that are technically visible.
	KindGeometry
)

func (k StrategyKind) String() string {
	switch k {
	case KindAttribute:
		return "attribute"
	case KindRole:
		return "role"
	case KindGeometry:
		return "geometry"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// minSearchInputWidth is the bounding-box width (logical pixels) a
// geometry-matched input must exceed. Real search boxes are wide;
// decorative or collapsed inputs are not.
const minSearchInputWidth = 200

// Strategy is one way of enumerating candidates for a target.
type Strategy struct {
	Kind     StrategyKind
	Query    string  // CSS query handed to the enumerator
	Text     string  // optional visible-text substring filter
	MinWidth float64 // geometry strategies only
}

// Candidate is one DOM match reported by the enumerator, already tagged
// with a selector handle that uniquely addresses it for later interaction.
type Candidate struct {
	Handle  string
	Visible bool
	Width   float64
}

// Handle is a resolved target: a selector that addresses exactly one live
// element, plus the strategy that found it (for diagnostics).
type Handle struct {
	Selector string
	Strategy StrategyKind
}

// Enumerator runs one strategy against the live DOM. The browser-backed
// implementation lives in internal/browser; tests supply fakes.
type Enumerator interface {
	Enumerate(ctx context.Context, s Strategy) ([]Candidate, error)
}

// ErrNotFound means no strategy in the cascade produced a visible match.
// The caller owns diagnostics and aborting; resolution is not retried.
var ErrNotFound = errors.New("no visible element matched any locator strategy")

// Resolver resolves semantic targets against a page.
type Resolver struct {
	enum Enumerator

	// Display labels for the dropdown triggers, which are only findable
	// by their current text.
	countryLabel  string
	categoryLabel string
}

// NewResolver creates a resolver. countryLabel and categoryLabel are the
// texts the dropdown triggers currently display (e.g. "United States",
// "All ads").
func NewResolver(enum Enumerator, countryLabel, categoryLabel string) *Resolver {
	return &Resolver{enum: enum, countryLabel: countryLabel, categoryLabel: categoryLabel}
}

// Resolve runs the target's strategy cascade and returns the first visible
// match under the first strategy that produced any. Pure read of DOM state;
// a failed strategy (error or zero visible candidates) falls through to the
// next one.
func (r *Resolver) Resolve(ctx context.Context, t Target) (Handle, error) {
	for _, s := range r.strategiesFor(t) {
		candidates, err := r.enum.Enumerate(ctx, s)
		if err != nil {
			logger.Debug("locator strategy errored, falling through",
				"target", t, "strategy", s.Kind, "error", err)
			continue
		}

		for _, c := range candidates {
			if !c.Visible {
				continue
			}
			if s.MinWidth > 0 && c.Width <= s.MinWidth {
				continue
			}
			logger.Debug("target resolved", "target", t, "strategy", s.Kind, "handle", c.Handle)
			return Handle{Selector: c.Handle, Strategy: s.Kind}, nil
		}
	}
	return Handle{}, fmt.Errorf("%s: %w", t, ErrNotFound)
}

// strategiesFor returns the static cascade for a target. Order is
// significance order; do not merge results across entries.
func (r *Resolver) strategiesFor(t Target) []Strategy {
	switch t {
	case SearchInput:
		return []Strategy{
			{Kind: KindAttribute, Query: `input[placeholder*="search" i], input[aria-label*="search" i]`},
			{Kind: KindRole, Query: `input[type="search"], [role="searchbox"], [role="combobox"] input`},
			{Kind: KindGeometry, Query: `input`, MinWidth: minSearchInputWidth},
		}
	case CountryDropdownTrigger:
		return triggerCascade(r.countryLabel)
	case CategoryDropdownTrigger:
		return triggerCascade(r.categoryLabel)
	default:
		return nil
	}
}

// triggerCascade locates a dropdown trigger by its displayed label. The
// widgets are custom controls, so the only stable signal is the text they
// currently show.
func triggerCascade(label string) []Strategy {
	return []Strategy{
		{Kind: KindAttribute, Query: `[aria-haspopup], [aria-expanded]`, Text: label},
		{Kind: KindRole, Query: `[role="button"], [role="combobox"]`, Text: label},
		{Kind: KindGeometry, Query: `div, span`, Text: label},
	}
}
