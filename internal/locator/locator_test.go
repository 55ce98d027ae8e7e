package locator

import (
	"context"
	"errors"
	"testing"
)

// fakeEnumerator returns scripted candidates per strategy kind.
type fakeEnumerator struct {
	byKind map[StrategyKind][]Candidate
	errs   map[StrategyKind]error
	calls  []StrategyKind
}

func (f *fakeEnumerator) Enumerate(_ context.Context, s Strategy) ([]Candidate, error) {
	f.calls = append(f.calls, s.Kind)
	if err := f.errs[s.Kind]; err != nil {
		return nil, err
	}
	return f.byKind[s.Kind], nil
}

func newResolver(enum Enumerator) *Resolver {
	return NewResolver(enum, "United States", "All ads")
}

func TestResolve_FirstStrategyWins(t *testing.T) {
	enum := &fakeEnumerator{byKind: map[StrategyKind][]Candidate{
		KindAttribute: {{Handle: "#attr", Visible: true, Width: 300}},
		KindRole:      {{Handle: "#role", Visible: true, Width: 300}},
	}}

	h, err := newResolver(enum).Resolve(context.Background(), SearchInput)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if h.Selector != "#attr" || h.Strategy != KindAttribute {
		t.Errorf("expected attribute match to win, got %+v", h)
	}
	// Later strategies must not be consulted once one yields a visible match.
	if len(enum.calls) != 1 {
		t.Errorf("expected 1 strategy call, got %v", enum.calls)
	}
}

func TestResolve_FallsThroughToGeometry(t *testing.T) {
	// Three geometry candidates: first invisible, second too narrow, third
	// qualifies. Attribute and role strategies find nothing.
	enum := &fakeEnumerator{byKind: map[StrategyKind][]Candidate{
		KindGeometry: {
			{Handle: "#one", Visible: false, Width: 400},
			{Handle: "#two", Visible: true, Width: 120},
			{Handle: "#three", Visible: true, Width: 260},
		},
	}}

	h, err := newResolver(enum).Resolve(context.Background(), SearchInput)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if h.Selector != "#three" {
		t.Errorf("expected geometry fallback to pick #three, got %q", h.Selector)
	}
	if h.Strategy != KindGeometry {
		t.Errorf("expected geometry strategy, got %v", h.Strategy)
	}
}

func TestResolve_InvisibleMatchesDoNotShortCircuit(t *testing.T) {
	// An attribute strategy with only invisible candidates must fall
	// through rather than claiming the target.
	enum := &fakeEnumerator{byKind: map[StrategyKind][]Candidate{
		KindAttribute: {{Handle: "#hidden", Visible: false}},
		KindRole:      {{Handle: "#shown", Visible: true, Width: 500}},
	}}

	h, err := newResolver(enum).Resolve(context.Background(), SearchInput)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if h.Selector != "#shown" {
		t.Errorf("expected role match, got %q", h.Selector)
	}
}

func TestResolve_NotFound(t *testing.T) {
	enum := &fakeEnumerator{}

	_, err := newResolver(enum).Resolve(context.Background(), SearchInput)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	// All three strategies must have been consulted before giving up.
	if len(enum.calls) != 3 {
		t.Errorf("expected all strategies tried, got %v", enum.calls)
	}
}

func TestResolve_StrategyErrorFallsThrough(t *testing.T) {
	enum := &fakeEnumerator{
		errs: map[StrategyKind]error{KindAttribute: errors.New("evaluate failed")},
		byKind: map[StrategyKind][]Candidate{
			KindRole: {{Handle: "#ok", Visible: true}},
		},
	}

	h, err := newResolver(enum).Resolve(context.Background(), SearchInput)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if h.Selector != "#ok" {
		t.Errorf("expected fall-through past erroring strategy, got %+v", h)
	}
}

func TestStrategiesFor_TriggersCarryLabels(t *testing.T) {
	r := newResolver(&fakeEnumerator{})

	for _, tc := range []struct {
		target Target
		label  string
	}{
		{CountryDropdownTrigger, "United States"},
		{CategoryDropdownTrigger, "All ads"},
	} {
		cascade := r.strategiesFor(tc.target)
		if len(cascade) != 3 {
			t.Fatalf("%v: expected 3 strategies, got %d", tc.target, len(cascade))
		}
		for _, s := range cascade {
			if s.Text != tc.label {
				t.Errorf("%v: strategy %v missing label filter, got %q", tc.target, s.Kind, s.Text)
			}
		}
	}
}
