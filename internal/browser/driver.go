package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/adlens/adlens/internal/dropdown"
	"github.com/adlens/adlens/internal/locator"
)

// handleAttr tags enumerated elements so a stable selector can address
// them after class names and DOM positions shift.
const handleAttr = "data-adlens-id"

// targetAttr marks semantically resolved controls, currently only the
// primary search input so the dropdown machine can tell when focus is
// stuck on it.
const targetAttr = "data-adlens-target"

// Driver adapts the live page to the narrow interfaces consumed by the
// locator and dropdown packages. All methods expect a context derived
// from the browser's page context.
type Driver struct {
	b *Browser
}

// NewDriver wraps a launched browser.
func NewDriver(b *Browser) *Driver { return &Driver{b: b} }

// jsArg encodes a Go value as a JavaScript literal. Everything that goes
// into an evaluated script passes through here; no string concatenation
// of raw input into JS.
func jsArg(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

// Enumerate runs one locator strategy: query the DOM, optionally filter by
// visible text, tag each match with a handle attribute and report its
// visibility and geometry.
func (d *Driver) Enumerate(ctx context.Context, s locator.Strategy) ([]locator.Candidate, error) {
	script := fmt.Sprintf(`
(function(query, text) {
    const out = [];
    let els;
    try { els = document.querySelectorAll(query); } catch (e) { return out; }
    const needle = (text || '').toLowerCase();
    for (const el of els) {
        if (needle && !(el.textContent || '').toLowerCase().includes(needle)) continue;
        if (!el.hasAttribute('%[1]s')) {
            window.__adlensSeq = (window.__adlensSeq || 0) + 1;
            el.setAttribute('%[1]s', String(window.__adlensSeq));
        }
        const rect = el.getBoundingClientRect();
        const style = window.getComputedStyle(el);
        const visible = rect.width > 0 && rect.height > 0 &&
            style.display !== 'none' && style.visibility !== 'hidden' &&
            parseFloat(style.opacity || '1') > 0;
        out.push({
            handle: '[%[1]s="' + el.getAttribute('%[1]s') + '"]',
            visible: visible,
            width: rect.width
        });
    }
    return out;
})(%s, %s)`, handleAttr, jsArg(s.Query), jsArg(s.Text))

	var raw []struct {
		Handle  string  `json:"handle"`
		Visible bool    `json:"visible"`
		Width   float64 `json:"width"`
	}
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &raw)); err != nil {
		return nil, fmt.Errorf("enumerating %q: %w", s.Query, err)
	}

	candidates := make([]locator.Candidate, 0, len(raw))
	for _, r := range raw {
		candidates = append(candidates, locator.Candidate{
			Handle:  r.Handle,
			Visible: r.Visible,
			Width:   r.Width,
		})
	}
	return candidates, nil
}

// MarkPrimarySearch tags the resolved search input so later focus checks
// can recognize it.
func (d *Driver) MarkPrimarySearch(ctx context.Context, selector string) error {
	script := fmt.Sprintf(`
(function(sel) {
    const el = document.querySelector(sel);
    if (!el) return false;
    el.setAttribute('%s', 'search-input');
    return true;
})(%s)`, targetAttr, jsArg(selector))

	var ok bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &ok)); err != nil {
		return fmt.Errorf("tagging search input: %w", err)
	}
	if !ok {
		return fmt.Errorf("tagging search input: %q no longer matches", selector)
	}
	return nil
}

// Click clicks the element addressed by selector.
func (d *Driver) Click(ctx context.Context, selector string) error {
	if err := chromedp.Run(ctx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("clicking %q: %w", selector, err)
	}
	return nil
}

// Press sends one key event to the focused element. Key names are the
// dropdown package's portable constants.
func (d *Driver) Press(ctx context.Context, key string) error {
	code, ok := keyCode(key)
	if !ok {
		return fmt.Errorf("unknown key %q", key)
	}
	if err := chromedp.Run(ctx, chromedp.KeyEvent(code)); err != nil {
		return fmt.Errorf("pressing %s: %w", key, err)
	}
	return nil
}

func keyCode(name string) (string, bool) {
	switch name {
	case dropdown.KeyArrowDown:
		return kb.ArrowDown, true
	case dropdown.KeyTab:
		return kb.Tab, true
	case dropdown.KeyEnter:
		return kb.Enter, true
	}
	return "", false
}

// TypeText types text into the focused element as discrete key events so
// the widget's per-keystroke filter listeners fire. No submit key is sent.
func (d *Driver) TypeText(ctx context.Context, text string) error {
	for _, r := range text {
		if err := chromedp.Run(ctx, chromedp.KeyEvent(string(r))); err != nil {
			return fmt.Errorf("typing character %q: %w", r, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(40 * time.Millisecond):
		}
	}
	return nil
}

// ActiveElement describes document.activeElement for the dropdown
// machine's focus checks.
func (d *Driver) ActiveElement(ctx context.Context) (dropdown.Focus, error) {
	script := fmt.Sprintf(`
(function() {
    const el = document.activeElement;
    if (!el || el === document.body) {
        return { tag: '', placeholder: '', role: '', inDropdown: false, primarySearch: false };
    }
    let inDropdown = false;
    for (let p = el; p; p = p.parentElement) {
        const role = (p.getAttribute && p.getAttribute('role')) || '';
        if (role === 'listbox' || role === 'menu' || role === 'dialog') {
            inDropdown = true;
            break;
        }
    }
    return {
        tag: el.tagName.toLowerCase(),
        placeholder: el.getAttribute('placeholder') || '',
        role: el.getAttribute('role') || '',
        inDropdown: inDropdown,
        primarySearch: el.getAttribute('%s') === 'search-input'
    };
})()`, targetAttr)

	var raw struct {
		Tag           string `json:"tag"`
		Placeholder   string `json:"placeholder"`
		Role          string `json:"role"`
		InDropdown    bool   `json:"inDropdown"`
		PrimarySearch bool   `json:"primarySearch"`
	}
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &raw)); err != nil {
		return dropdown.Focus{}, fmt.Errorf("inspecting active element: %w", err)
	}
	return dropdown.Focus{
		Tag:           raw.Tag,
		Placeholder:   raw.Placeholder,
		Role:          raw.Role,
		InDropdown:    raw.InDropdown,
		PrimarySearch: raw.PrimarySearch,
	}, nil
}

// VisibleOptionCount counts rendered listbox options.
func (d *Driver) VisibleOptionCount(ctx context.Context) (int, error) {
	script := `
(function() {
    let n = 0;
    for (const el of document.querySelectorAll('[role="option"]')) {
        const rect = el.getBoundingClientRect();
        if (rect.width > 0 && rect.height > 0) n++;
    }
    return n;
})()`

	var count int
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &count)); err != nil {
		return 0, fmt.Errorf("counting options: %w", err)
	}
	return count, nil
}

// HasVisibleOption reports whether any rendered option's text contains the
// given substring, case-insensitively.
func (d *Driver) HasVisibleOption(ctx context.Context, text string) (bool, error) {
	script := fmt.Sprintf(`
(function(needle) {
    needle = needle.toLowerCase();
    for (const el of document.querySelectorAll('[role="option"]')) {
        const rect = el.getBoundingClientRect();
        if (rect.width === 0 || rect.height === 0) continue;
        if ((el.textContent || '').toLowerCase().includes(needle)) return true;
    }
    return false;
})(%s)`, jsArg(text))

	var found bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &found)); err != nil {
		return false, fmt.Errorf("checking options for %q: %w", text, err)
	}
	return found, nil
}

// ListboxOpen reports whether a listbox element is currently rendered.
func (d *Driver) ListboxOpen(ctx context.Context) (bool, error) {
	script := `
(function() {
    for (const el of document.querySelectorAll('[role="listbox"]')) {
        const rect = el.getBoundingClientRect();
        if (rect.width > 0 && rect.height > 0) return true;
    }
    return false;
})()`

	var open bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &open)); err != nil {
		return false, fmt.Errorf("checking listbox state: %w", err)
	}
	return open, nil
}

// Settle waits the configured post-action delay. The widgets animate with
// no completion signal, so this is a fixed delay, not a poll.
func (d *Driver) Settle(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d.b.cfg.SettleDelay):
		return nil
	}
}
