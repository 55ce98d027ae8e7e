package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// ClickVisibleText finds a visible clickable element whose text contains
// the given label and clicks it. Used for consent and overlay dialogs, so
// failure to find anything is an error the caller is expected to swallow.
func (b *Browser) ClickVisibleText(label string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(b.pageCtx, timeout)
	defer cancel()

	script := fmt.Sprintf(`
(function(label) {
    label = label.toLowerCase();
    const clickable = document.querySelectorAll('button, [role="button"], a');
    for (const el of clickable) {
        const text = (el.textContent || '').trim().toLowerCase();
        if (!text.includes(label)) continue;
        const rect = el.getBoundingClientRect();
        if (rect.width === 0 || rect.height === 0) continue;
        el.click();
        return true;
    }
    return false;
})(%s)`, jsArg(label))

	var clicked bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &clicked)); err != nil {
		return fmt.Errorf("clicking %q: %w", label, err)
	}
	if !clicked {
		return fmt.Errorf("no visible clickable element containing %q", label)
	}
	return nil
}

// HideHighZOverlays hides fixed-position elements that sit above the page
// at a high z-index and cover a large share of the viewport. Geometry
// fallback for overlays whose dismiss button was not found; returns how
// many elements were hidden.
func (b *Browser) HideHighZOverlays() (int, error) {
	ctx, cancel := context.WithTimeout(b.pageCtx, 5*time.Second)
	defer cancel()

	script := `
(function() {
    let hidden = 0;
    const vw = window.innerWidth, vh = window.innerHeight;
    for (const el of document.querySelectorAll('div, section, aside')) {
        const style = window.getComputedStyle(el);
        if (style.position !== 'fixed' && style.position !== 'sticky') continue;
        const z = parseInt(style.zIndex, 10);
        if (isNaN(z) || z < 999) continue;
        const rect = el.getBoundingClientRect();
        if (rect.width * rect.height < vw * vh * 0.3) continue;
        el.style.display = 'none';
        hidden++;
    }
    return hidden;
})()`

	var hidden int
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &hidden)); err != nil {
		return 0, fmt.Errorf("hiding overlays: %w", err)
	}
	return hidden, nil
}
