// Package session orchestrates one harvest run end to end: navigate,
// verify readiness, operate the dropdown widgets, submit the search,
// capture results traffic while paginating by scroll, then extract and
// deduplicate records from the captured payloads. Every interaction step
// is a hard gate; diagnostics are captured before any fatal error is
// returned.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/adlens/adlens/internal/browser"
	"github.com/adlens/adlens/internal/capture"
	"github.com/adlens/adlens/internal/dropdown"
	"github.com/adlens/adlens/internal/extract"
	"github.com/adlens/adlens/internal/locator"
	"github.com/adlens/adlens/internal/logger"
	"github.com/adlens/adlens/internal/output"
)

// scrollViewportMultiple is how far each pagination round scrolls,
// relative to the visible height. Slightly under one viewport so result
// cards are never skipped over entirely.
const scrollViewportMultiple = 0.9

// overlayButtonTexts are the affirmative labels tried when dismissing
// consent and login-nag dialogs, in order.
var overlayButtonTexts = []string{
	"Allow all cookies",
	"Accept all",
	"Accept",
	"Agree",
	"Allow",
	"Close",
}

// Orchestrator runs the interaction sequence against a launched browser.
type Orchestrator struct {
	b        *browser.Browser
	drv      *browser.Driver
	listener *capture.Listener
	store    *output.RunStore
	cfg      Config
}

// New assembles an orchestrator. The browser must already be launched;
// its lifetime is owned by the caller.
func New(b *browser.Browser, listener *capture.Listener, store *output.RunStore, cfg Config) *Orchestrator {
	return &Orchestrator{
		b:        b,
		drv:      browser.NewDriver(b),
		listener: listener,
		store:    store,
		cfg:      cfg,
	}
}

// Run executes the full sequence and returns the deduplicated record set.
// On any fatal step failure it captures an error screenshot and DOM
// snapshot before returning; partial payloads are not extracted.
func (o *Orchestrator) Run(ctx context.Context) ([]extract.Record, error) {
	records, err := o.run(ctx)
	if err != nil {
		o.captureDiagnostics("error")
		return nil, err
	}

	if png, serr := o.b.Screenshot(); serr == nil {
		if werr := o.store.SaveScreenshot(png, "success"); werr != nil {
			logger.Warn("failed to save success screenshot", "error", werr)
		}
	}
	return records, nil
}

func (o *Orchestrator) run(ctx context.Context) ([]extract.Record, error) {
	// Attach before navigation so the earliest responses are classified.
	if err := o.listener.Attach(o.b.Context()); err != nil {
		return nil, fmt.Errorf("attaching network listener: %w", err)
	}

	if err := o.b.Navigate(o.cfg.StartURL, o.cfg.NavTimeout); err != nil {
		return nil, err
	}
	o.listener.AwaitIdle(ctx, o.cfg.IdleQuiet, o.cfg.NavTimeout)

	if err := o.b.WaitForText(o.cfg.ReadinessText, o.cfg.ReadyTimeout); err != nil {
		return nil, fmt.Errorf("page readiness: %w", err)
	}
	logger.Info("page ready", "url", o.cfg.StartURL)

	resolver := locator.NewResolver(o.drv, o.cfg.CountryTriggerLabel, o.cfg.CategoryTriggerLabel)

	search, err := resolver.Resolve(ctx, locator.SearchInput)
	if err != nil {
		return nil, err
	}
	if err := o.drv.MarkPrimarySearch(ctx, search.Selector); err != nil {
		return nil, err
	}
	if err := o.b.Focus(search.Selector); err != nil {
		return nil, err
	}

	o.dismissOverlays()

	if err := o.selectDropdown(ctx, resolver, locator.CountryDropdownTrigger,
		dropdown.KindCountry, o.cfg.Country); err != nil {
		return nil, err
	}
	if err := o.selectDropdown(ctx, resolver, locator.CategoryDropdownTrigger,
		dropdown.KindCategory, o.cfg.Category); err != nil {
		return nil, err
	}

	if o.cfg.Query != "" {
		// Dropdown interaction may have re-rendered the page; resolve the
		// input again rather than trusting the old handle.
		search, err = resolver.Resolve(ctx, locator.SearchInput)
		if err != nil {
			return nil, fmt.Errorf("re-resolving search input: %w", err)
		}
		if err := o.b.Focus(search.Selector); err != nil {
			return nil, err
		}
		if err := o.b.TypeHuman(o.cfg.Query); err != nil {
			return nil, err
		}
		logger.Info("search submitted", "query", o.cfg.Query)
	}

	if err := o.listener.WaitFirst(ctx, o.cfg.FirstHitTimeout); err != nil {
		return nil, fmt.Errorf("waiting for first results payload: %w", err)
	}

	for round := 1; round <= o.cfg.ScrollRounds; round++ {
		if err := o.b.ScrollByViewports(scrollViewportMultiple); err != nil {
			return nil, err
		}
		logger.Debug("scroll round complete", "round", round, "of", o.cfg.ScrollRounds)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(o.cfg.ScrollPause):
		}
	}

	o.listener.AwaitIdle(ctx, o.cfg.IdleQuiet, o.cfg.IdleBound)

	records := collectRecords(o.listener.Payloads())
	if err := o.store.SaveResults(records); err != nil {
		return nil, err
	}
	return records, nil
}

// selectDropdown resolves a trigger and drives its machine. Both the
// resolution and any phase failure are fatal for the run.
func (o *Orchestrator) selectDropdown(ctx context.Context, resolver *locator.Resolver,
	target locator.Target, kind dropdown.Kind, label string) error {

	trigger, err := resolver.Resolve(ctx, target)
	if err != nil {
		return err
	}
	m := dropdown.New(o.drv, dropdown.Config{
		Kind:    kind,
		Trigger: trigger.Selector,
		Label:   label,
	})
	if err := m.Run(ctx); err != nil {
		return fmt.Errorf("selecting %s: %w", kind, err)
	}
	logger.Info("dropdown selection committed", "dropdown", kind.String(), "label", label)
	return nil
}

// dismissOverlays clears consent dialogs and login nags. Never fatal: a
// missed overlay surfaces later as a locator or dropdown failure with
// better diagnostics than anything detectable here.
func (o *Orchestrator) dismissOverlays() {
	for _, text := range overlayButtonTexts {
		if err := o.b.ClickVisibleText(text, 2*time.Second); err == nil {
			logger.Debug("overlay dismissed", "button", text)
			return
		}
	}
	hidden, err := o.b.HideHighZOverlays()
	if err != nil {
		logger.Debug("overlay geometry fallback failed", "error", err)
		return
	}
	if hidden > 0 {
		logger.Debug("overlays hidden by geometry fallback", "count", hidden)
	}
}

// collectRecords parses every captured payload, extracts records from
// each, and deduplicates across the whole run. A payload that fails to
// parse is logged and skipped; one malformed payload must not void the
// run.
func collectRecords(payloads []capture.Payload) []extract.Record {
	var all []extract.Record
	for _, p := range payloads {
		recs, err := extract.Parse([]byte(p.Body))
		if err != nil {
			logger.Warn("skipping unparseable payload", "seq", p.Seq, "error", err)
			continue
		}
		all = append(all, recs...)
	}

	deduped := extract.Dedupe(all)
	logger.Info("extraction complete",
		"payloads", len(payloads), "records", len(all), "unique", len(deduped))
	return deduped
}

// captureDiagnostics saves an error screenshot and DOM snapshot, and logs
// a structural summary of the page. Every part is best-effort; the
// original failure is what matters.
func (o *Orchestrator) captureDiagnostics(label string) {
	if png, err := o.b.Screenshot(); err == nil {
		if werr := o.store.SaveScreenshot(png, label); werr != nil {
			logger.Warn("failed to save diagnostic screenshot", "error", werr)
		}
	} else {
		logger.Warn("failed to capture diagnostic screenshot", "error", err)
	}

	html, err := o.b.HTML()
	if err != nil {
		logger.Warn("failed to capture DOM snapshot", "error", err)
		return
	}
	if err := o.store.SaveDOMSnapshot(html); err != nil {
		logger.Warn("failed to save DOM snapshot", "error", err)
	}
	logger.Info("page state at failure", "summary", summarizeDOM(html))
}
