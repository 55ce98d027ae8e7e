package browser

import "fmt"

// textVisibleScript builds an expression reporting whether any rendered
// element contains the given text. Walks leaf-ish elements only so a match
// on <body> does not count as "visible text".
func textVisibleScript(text string) string {
	return fmt.Sprintf(`
(function(needle) {
    needle = needle.toLowerCase();
    for (const el of document.querySelectorAll('body *')) {
        if (el.children.length > 3) continue;
        if (!(el.textContent || '').toLowerCase().includes(needle)) continue;
        const rect = el.getBoundingClientRect();
        if (rect.width > 0 && rect.height > 0) return true;
    }
    return false;
})(%s)`, jsArg(text))
}

// isActiveScript builds an expression reporting whether the element
// addressed by selector is document.activeElement.
func isActiveScript(selector string) string {
	return fmt.Sprintf(`
(function(sel) {
    const el = document.querySelector(sel);
    return !!el && document.activeElement === el;
})(%s)`, jsArg(selector))
}
