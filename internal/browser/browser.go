// Package browser owns the headless Chrome session: allocator and page
// context lifecycle, navigation, keyboard and scroll input, script
// evaluation, and screenshot capture. Everything above it (locator,
// dropdown, session) talks to the page through this package.
package browser

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os/exec"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/adlens/adlens/internal/logger"
)

// ErrTransport marks failures of the browser/CDP layer itself, as opposed
// to a page that merely did not contain what we expected.
var ErrTransport = errors.New("browser transport failure")

// Config holds browser launch settings.
type Config struct {
	Headless  bool
	UserAgent string
	// SettleDelay is the fixed wait after widget-mutating actions; the
	// target widgets animate with no completion signal.
	SettleDelay time.Duration
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Headless:    true,
		UserAgent:   defaultUserAgent,
		SettleDelay: 1200 * time.Millisecond,
	}
}

// Browser is one live Chrome instance with a single page context. Not safe
// for concurrent driving; the pipeline is a single logical control flow.
type Browser struct {
	cfg Config

	allocCtx     context.Context
	cancelAlloc  context.CancelFunc
	pageCtx      context.Context
	cancelPage   context.CancelFunc
	settleJitter *rand.Rand
}

// Launch starts Chrome and creates the page context. The stealth script is
// installed before any navigation so page scripts never observe an
// unpatched environment.
func Launch(cfg Config) (*Browser, error) {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.SettleDelay == 0 {
		cfg.SettleDelay = DefaultConfig().SettleDelay
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:], stealthExecAllocatorOptions()...)
	opts = append(opts, chromedp.Flag("headless", cfg.Headless))
	if chromePath := findChromePath(); chromePath != "" {
		opts = append(opts, chromedp.ExecPath(chromePath))
	}
	opts = append(opts, chromedp.UserAgent(cfg.UserAgent))

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)

	pageCtx, cancelPage := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Debug("chromedp", "msg", fmt.Sprintf(format, args...))
		}),
	)

	b := &Browser{
		cfg:          cfg,
		allocCtx:     allocCtx,
		cancelAlloc:  cancelAlloc,
		pageCtx:      pageCtx,
		cancelPage:   cancelPage,
		settleJitter: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	// Start the browser process and install the stealth patches.
	if err := chromedp.Run(pageCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
		return err
	})); err != nil {
		b.Close()
		return nil, fmt.Errorf("%w: launching browser: %v", ErrTransport, err)
	}

	logger.Debug("browser launched", "headless", cfg.Headless, "user_agent", cfg.UserAgent)
	return b, nil
}

// Context returns the page context. The capture listener attaches to it,
// and it parents every per-step timeout.
func (b *Browser) Context() context.Context { return b.pageCtx }

// Navigate loads url and waits for the document body, bounded by timeout.
func (b *Browser) Navigate(url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(b.pageCtx, timeout)
	defer cancel()

	logger.Debug("navigating", "url", url, "timeout", timeout)
	if err := chromedp.Run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
	); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	return nil
}

// WaitForText waits until an element containing the given text is visible,
// bounded by timeout. Used as the page-readiness gate before any element
// resolution is attempted.
func (b *Browser) WaitForText(text string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(b.pageCtx, timeout)
	defer cancel()

	deadline := time.Now().Add(timeout)
	for {
		var found bool
		err := chromedp.Run(ctx, chromedp.Evaluate(textVisibleScript(text), &found))
		if err != nil {
			return fmt.Errorf("checking readiness text %q: %w", text, err)
		}
		if found {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("readiness text %q not visible within %s", text, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
}

// Focus focuses the element addressed by selector and confirms it became
// the active element.
func (b *Browser) Focus(selector string) error {
	ctx, cancel := context.WithTimeout(b.pageCtx, 10*time.Second)
	defer cancel()

	var focused bool
	err := chromedp.Run(ctx,
		chromedp.Focus(selector, chromedp.ByQuery),
		chromedp.Evaluate(isActiveScript(selector), &focused),
	)
	if err != nil {
		return fmt.Errorf("focusing %q: %w", selector, err)
	}
	if !focused {
		return fmt.Errorf("element %q did not become the active element", selector)
	}
	return nil
}

// TypeHuman types text into the focused element one character at a time
// with randomized inter-character delays, then presses the submit key.
func (b *Browser) TypeHuman(text string) error {
	ctx, cancel := context.WithTimeout(b.pageCtx, 30*time.Second+time.Duration(len(text))*200*time.Millisecond)
	defer cancel()

	for _, r := range text {
		if err := chromedp.Run(ctx, chromedp.KeyEvent(string(r))); err != nil {
			return fmt.Errorf("typing character %q: %w", r, err)
		}
		delay := 30 + time.Duration(b.settleJitter.Intn(90))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay * time.Millisecond):
		}
	}
	if err := chromedp.Run(ctx, chromedp.KeyEvent(kb.Enter)); err != nil {
		return fmt.Errorf("submitting search term: %w", err)
	}
	return nil
}

// ScrollByViewports scrolls the window down by a multiple of the visible
// height, to trigger lazy loading of further results.
func (b *Browser) ScrollByViewports(multiple float64) error {
	ctx, cancel := context.WithTimeout(b.pageCtx, 10*time.Second)
	defer cancel()

	js := fmt.Sprintf(`window.scrollBy(0, window.innerHeight * %g); true`, multiple)
	var ok bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(js, &ok)); err != nil {
		return fmt.Errorf("scrolling: %w", err)
	}
	return nil
}

// Screenshot captures the current viewport. Best-effort with a short
// timeout: the browser may already be wedged when this is called.
func (b *Browser) Screenshot() ([]byte, error) {
	ctx, cancel := context.WithTimeout(b.pageCtx, 5*time.Second)
	defer cancel()

	var buf []byte
	if err := chromedp.Run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}
	return buf, nil
}

// HTML returns the page's current outer HTML, for DOM snapshots in failure
// diagnostics.
func (b *Browser) HTML() (string, error) {
	ctx, cancel := context.WithTimeout(b.pageCtx, 10*time.Second)
	defer cancel()

	var html string
	if err := chromedp.Run(ctx, chromedp.OuterHTML("html", &html)); err != nil {
		return "", fmt.Errorf("capturing DOM snapshot: %w", err)
	}
	return html, nil
}

// Close releases the page context and then the browser process. Each step
// is independent so one failing close does not block the others; Close is
// safe to call on every exit path.
func (b *Browser) Close() {
	if b.cancelPage != nil {
		b.cancelPage()
	}
	if b.cancelAlloc != nil {
		b.cancelAlloc()
	}
}

// findChromePath searches PATH and common install locations for a
// Chrome/Chromium binary; chromedp's own lookup misses some of these.
func findChromePath() string {
	names := []string{
		"google-chrome-stable",
		"google-chrome",
		"chromium",
		"chromium-browser",
		"chrome",
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium",
		"/usr/bin/chromium-browser",
		"/snap/bin/chromium",
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
		"/Applications/Chromium.app/Contents/MacOS/Chromium",
	}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			logger.Debug("found Chrome binary", "path", path)
			return path
		}
	}
	logger.Warn("no Chrome binary found on this system")
	return ""
}
