// Package dropdown operates the custom dropdown widgets on the search
// page. The widgets expose no selection API and no reliable "opened"
// signal, so selection is a keyboard-driven state machine where every
// transition is independently verified against observable DOM state before
// the next one is attempted.
package dropdown

import (
	"context"
	"fmt"
	"strings"

	"github.com/adlens/adlens/internal/logger"
)

// Key names understood by Driver.Press. The driver maps them to real key
// events; the machine stays browser-agnostic.
const (
	KeyArrowDown = "ArrowDown"
	KeyTab       = "Tab"
	KeyEnter     = "Enter"
)

// Phase identifies a transition of the machine, used to report exactly
// which check failed.
type Phase string

const (
	PhaseOpen        Phase = "open"
	PhaseFocusSearch Phase = "focus-search"
	PhaseFilter      Phase = "filter"
	PhaseCommit      Phase = "commit"
)

// PhaseError is a failed transition verification. The session treats it as
// fatal: proceeding past an unconfirmed widget state corrupts every later
// step.
type PhaseError struct {
	Phase  Phase
	Reason string
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("dropdown %s phase failed: %s", e.Phase, e.Reason)
}

func failed(p Phase, format string, args ...any) error {
	return &PhaseError{Phase: p, Reason: fmt.Sprintf(format, args...)}
}

// Focus describes the currently focused element, as much of it as the
// machine needs for its transition checks.
type Focus struct {
	Tag           string
	Placeholder   string
	Role          string
	InDropdown    bool // an ancestor carries a listbox/dropdown/menu marker
	PrimarySearch bool // this is the page's primary search combobox
}

// Driver is the narrow browser surface the machine drives. The chromedp
// implementation lives in internal/browser; tests script a fake. Every
// method that can fail returns an error so a transport problem is
// distinguishable from a failed verification.
type Driver interface {
	// Click clicks the element addressed by selector.
	Click(ctx context.Context, selector string) error
	// Press sends one key event to the focused element.
	Press(ctx context.Context, key string) error
	// TypeText types text as discrete per-character key events, so the
	// widget's live-filter listeners fire.
	TypeText(ctx context.Context, text string) error
	// ActiveElement describes document.activeElement.
	ActiveElement(ctx context.Context) (Focus, error)
	// VisibleOptionCount counts currently rendered listbox options.
	VisibleOptionCount(ctx context.Context) (int, error)
	// HasVisibleOption reports whether a visible option's text contains
	// the given substring, case-insensitively.
	HasVisibleOption(ctx context.Context, text string) (bool, error)
	// ListboxOpen reports whether a listbox element exists and is
	// visually rendered.
	ListboxOpen(ctx context.Context) (bool, error)
	// Settle waits the fixed post-action delay. The widgets animate and
	// re-render on their own schedule with no observable completion
	// signal, so this is a delay, not a poll.
	Settle(ctx context.Context) error
}

// Kind selects which widget's interaction sequence to run. The country
// widget filters by typed text; the category widget is a plain option list
// with jump-to-match.
type Kind int

const (
	KindCountry Kind = iota
	KindCategory
)

func (k Kind) String() string {
	if k == KindCategory {
		return "category"
	}
	return "country"
}

// Config parameterizes one selection run.
type Config struct {
	Kind    Kind
	Trigger string // selector of the dropdown trigger element
	Label   string // option to select; empty accepts the default (category only)

	// FocusWalkCap bounds the focus-advance loop while hunting for the
	// widget's search input. Zero means the default of 8.
	FocusWalkCap int

	// FilteredMax is the visible-option count below which filtering is
	// considered to have taken effect. Zero means the default of 10.
	FilteredMax int
}

// session is the ephemeral state of one selection run, kept for failure
// logs. Discarded when Run returns.
type session struct {
	opened        bool
	searchFocused bool
	typed         string
	committed     bool
}

// Machine drives one dropdown widget through selection.
type Machine struct {
	drv Driver
	cfg Config
}

// New creates a machine for one selection run.
func New(drv Driver, cfg Config) *Machine {
	if cfg.FocusWalkCap <= 0 {
		cfg.FocusWalkCap = 8
	}
	if cfg.FilteredMax <= 0 {
		cfg.FilteredMax = 10
	}
	return &Machine{drv: drv, cfg: cfg}
}

// Run executes the full Closed -> Committed sequence. On any verification
// failure it returns a *PhaseError naming the check that did not hold; the
// widget is left in whatever state it reached.
func (m *Machine) Run(ctx context.Context) error {
	st := &session{}
	log := logger.With("dropdown", m.cfg.Kind.String(), "label", m.cfg.Label)

	if err := m.open(ctx, st); err != nil {
		log.Debug("dropdown failed", "state", fmt.Sprintf("%+v", *st), "error", err)
		return err
	}

	var err error
	if m.cfg.Kind == KindCountry {
		err = m.runCountry(ctx, st)
	} else {
		err = m.runCategory(ctx, st)
	}
	if err != nil {
		log.Debug("dropdown failed", "state", fmt.Sprintf("%+v", *st), "error", err)
		return err
	}

	log.Debug("dropdown committed")
	return nil
}

// open clicks the trigger and waits out the open animation. The markup has
// no "opened" attribute to poll, hence the unconditional settle.
func (m *Machine) open(ctx context.Context, st *session) error {
	if err := m.drv.Click(ctx, m.cfg.Trigger); err != nil {
		return failed(PhaseOpen, "clicking trigger %q: %v", m.cfg.Trigger, err)
	}
	if err := m.drv.Settle(ctx); err != nil {
		return failed(PhaseOpen, "waiting for open animation: %v", err)
	}
	st.opened = true
	return nil
}

func (m *Machine) runCountry(ctx context.Context, st *session) error {
	if err := m.focusSearch(ctx, st); err != nil {
		return err
	}
	if err := m.filter(ctx, st); err != nil {
		return err
	}
	return m.commit(ctx, st)
}

// focusSearch arms keyboard navigation with an initial directional press,
// then walks focus forward until it lands on the widget's search input,
// identified by a "Search" placeholder. The walk is capped: if the input
// is not reached within the cap, the widget is not in the state we think
// it is and continuing would type into the void.
func (m *Machine) focusSearch(ctx context.Context, st *session) error {
	if err := m.drv.Press(ctx, KeyArrowDown); err != nil {
		return failed(PhaseFocusSearch, "arming keyboard navigation: %v", err)
	}

	for i := 0; i < m.cfg.FocusWalkCap; i++ {
		if err := m.drv.Press(ctx, KeyTab); err != nil {
			return failed(PhaseFocusSearch, "focus-advance press %d: %v", i+1, err)
		}
		focus, err := m.drv.ActiveElement(ctx)
		if err != nil {
			return failed(PhaseFocusSearch, "inspecting active element: %v", err)
		}
		if focus.Tag == "input" && strings.Contains(strings.ToLower(focus.Placeholder), "search") {
			st.searchFocused = true
			return nil
		}
	}
	return failed(PhaseFocusSearch,
		"no search input focused after %d focus-advance presses", m.cfg.FocusWalkCap)
}

// filter types the target label into the widget's search input and
// verifies the option list actually narrowed. Two heuristics confirm it:
// the target text became a visible option, or the option count dropped
// below the threshold. Either one counts.
func (m *Machine) filter(ctx context.Context, st *session) error {
	if err := m.drv.TypeText(ctx, m.cfg.Label); err != nil {
		return failed(PhaseFilter, "typing %q: %v", m.cfg.Label, err)
	}
	st.typed = m.cfg.Label

	if err := m.drv.Settle(ctx); err != nil {
		return failed(PhaseFilter, "waiting for filter to apply: %v", err)
	}

	match, err := m.drv.HasVisibleOption(ctx, m.cfg.Label)
	if err != nil {
		return failed(PhaseFilter, "checking filtered options: %v", err)
	}
	if match {
		return nil
	}

	count, err := m.drv.VisibleOptionCount(ctx)
	if err != nil {
		return failed(PhaseFilter, "counting filtered options: %v", err)
	}
	if count >= m.cfg.FilteredMax {
		return failed(PhaseFilter,
			"typed %q but no matching option appeared and %d options remain visible", m.cfg.Label, count)
	}
	return nil
}

func (m *Machine) runCategory(ctx context.Context, st *session) error {
	// One focus-advance press is expected to land on the first selectable
	// option.
	if err := m.drv.Press(ctx, KeyTab); err != nil {
		return failed(PhaseFocusSearch, "focus-advance press: %v", err)
	}
	focus, err := m.drv.ActiveElement(ctx)
	if err != nil {
		return failed(PhaseFocusSearch, "inspecting active element: %v", err)
	}
	if !categoryFocusOK(focus) {
		return failed(PhaseFocusSearch,
			"focus did not reach an option (tag=%s role=%s)", focus.Tag, focus.Role)
	}
	st.searchFocused = true

	// With no explicit category, the default highlighted option is
	// accepted as-is. Otherwise typing jumps to the matching option.
	if m.cfg.Label != "" {
		if err := m.drv.TypeText(ctx, m.cfg.Label); err != nil {
			return failed(PhaseFilter, "typing %q: %v", m.cfg.Label, err)
		}
		st.typed = m.cfg.Label
	}

	return m.commit(ctx, st)
}

// categoryFocusOK accepts the focus positions that indicate the category
// list took keyboard focus: an explicit option role, a dropdown ancestor,
// or at minimum focus having left the primary search box.
func categoryFocusOK(f Focus) bool {
	if strings.EqualFold(f.Role, "option") {
		return true
	}
	if f.InDropdown {
		return true
	}
	return !f.PrimarySearch
}

// commit confirms the highlighted option and verifies the widget actually
// closed. An open listbox after confirm means the selection did not take.
func (m *Machine) commit(ctx context.Context, st *session) error {
	if err := m.drv.Press(ctx, KeyEnter); err != nil {
		return failed(PhaseCommit, "confirm press: %v", err)
	}
	if err := m.drv.Settle(ctx); err != nil {
		return failed(PhaseCommit, "waiting for close: %v", err)
	}

	open, err := m.drv.ListboxOpen(ctx)
	if err != nil {
		return failed(PhaseCommit, "checking listbox state: %v", err)
	}
	if open {
		return failed(PhaseCommit, "listbox still rendered after confirm")
	}
	st.committed = true
	return nil
}
