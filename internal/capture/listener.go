package capture

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/dustin/go-humanize"

	"github.com/adlens/adlens/internal/logger"
)

// Payload is one accepted response body. Seq is assigned atomically at
// acceptance time and defines the canonical ordering across concurrently
// arriving responses.
type Payload struct {
	Seq        int64
	Body       string
	CapturedAt time.Time
}

// RawStore persists accepted bodies as they arrive. Implementations must be
// safe for concurrent use; failures are logged and do not stop capture.
type RawStore interface {
	SaveRawPayload(body []byte, seq int64) error
}

// maxTrackedRequests bounds the request-header table used by the graphql
// classifier variant. Requests whose response never arrives would otherwise
// leak entries for the session's lifetime.
const maxTrackedRequests = 512

// Listener subscribes to CDP network events on a page, classifies each
// response as it arrives, and buffers the bodies of accepted ones. Event
// callbacks run concurrently with each other and with the main control
// flow, so all shared state is behind the mutex or atomic.
type Listener struct {
	classifier *Classifier
	store      RawStore
	maxBodies  int

	seq          atomic.Int64
	lastActivity atomic.Int64 // unix nanos of the most recent network event

	firstHit  chan struct{}
	firstOnce sync.Once

	mu         sync.Mutex
	payloads   []Payload
	reqHeaders map[network.RequestID]map[string]string
}

// NewListener creates a listener using the given classifier. store may be
// nil to skip raw persistence. maxBodies caps how many payloads are kept;
// zero means the default of 200.
func NewListener(c *Classifier, store RawStore, maxBodies int) *Listener {
	if maxBodies <= 0 {
		maxBodies = 200
	}
	return &Listener{
		classifier: c,
		store:      store,
		maxBodies:  maxBodies,
		firstHit:   make(chan struct{}),
		reqHeaders: make(map[network.RequestID]map[string]string),
	}
}

// Attach enables the CDP network domain and starts consuming events for the
// lifetime of ctx. Call once, before navigation, so no early response is
// missed.
func (l *Listener) Attach(ctx context.Context) error {
	if err := chromedp.Run(ctx, network.Enable()); err != nil {
		return fmt.Errorf("enabling network domain: %w", err)
	}

	chromedp.ListenTarget(ctx, func(ev any) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			l.touch()
			l.trackRequest(e)
		case *network.EventResponseReceived:
			l.touch()
			l.handleResponse(ctx, e)
		}
	})

	logger.Debug("network listener attached", "variant", l.classifier.Variant(), "max_bodies", l.maxBodies)
	return nil
}

func (l *Listener) touch() {
	l.lastActivity.Store(time.Now().UnixNano())
}

// trackRequest remembers request headers so the graphql variant can match
// on the operation header when the response arrives.
func (l *Listener) trackRequest(e *network.EventRequestWillBeSent) {
	if e.Request == nil || len(e.Request.Headers) == 0 {
		return
	}
	headers := make(map[string]string, len(e.Request.Headers))
	for k, v := range e.Request.Headers {
		if s, ok := v.(string); ok {
			headers[k] = s
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.reqHeaders) >= maxTrackedRequests {
		// Drop the table rather than growing without bound; a classifier
		// miss on a stale request is preferable to a leak.
		l.reqHeaders = make(map[network.RequestID]map[string]string)
	}
	l.reqHeaders[e.RequestID] = headers
}

func (l *Listener) takeRequestHeaders(id network.RequestID) map[string]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	h := l.reqHeaders[id]
	delete(l.reqHeaders, id)
	return h
}

func (l *Listener) handleResponse(ctx context.Context, e *network.EventResponseReceived) {
	if e.Response == nil {
		return
	}

	resp := Response{
		URL:            e.Response.URL,
		ContentType:    e.Response.MimeType,
		RequestHeaders: l.takeRequestHeaders(e.RequestID),
	}
	if ct := headerValue(networkHeaders(e.Response.Headers), "content-type"); ct != "" {
		resp.ContentType = ct
	}

	if !l.classifier.Accepts(resp) {
		return
	}
	if l.count() >= l.maxBodies {
		logger.Debug("payload cap reached, response dropped", "url", resp.URL)
		return
	}

	seq := l.seq.Add(1)
	l.firstOnce.Do(func() { close(l.firstHit) })
	logger.Debug("response accepted", "seq", seq, "url", resp.URL, "content_type", resp.ContentType)

	// The body is only available via a separate CDP call and must not be
	// fetched inside the event callback, which would deadlock the target
	// handler. Fetch it on its own goroutine against the page context.
	go l.fetchBody(ctx, e.RequestID, seq)
}

func (l *Listener) fetchBody(ctx context.Context, id network.RequestID, seq int64) {
	var body []byte
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		body, err = network.GetResponseBody(id).Do(ctx)
		return err
	}))
	if err != nil {
		logger.Warn("failed to read accepted response body", "seq", seq, "error", err)
		return
	}
	if len(body) == 0 {
		return
	}

	p := Payload{Seq: seq, Body: string(body), CapturedAt: time.Now()}

	l.mu.Lock()
	l.payloads = append(l.payloads, p)
	total := len(l.payloads)
	l.mu.Unlock()

	logger.Debug("payload captured",
		"seq", seq,
		"size", humanize.Bytes(uint64(len(body))),
		"total", total)

	if l.store != nil {
		if err := l.store.SaveRawPayload(body, seq); err != nil {
			logger.Warn("failed to persist raw payload", "seq", seq, "error", err)
		}
	}
}

func (l *Listener) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.payloads)
}

// Payloads returns the captured payloads ordered by sequence number.
// Concurrent body fetches may complete out of order, so the buffer is
// sorted at read time.
func (l *Listener) Payloads() []Payload {
	l.mu.Lock()
	out := make([]Payload, len(l.payloads))
	copy(out, l.payloads)
	l.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// WaitFirst blocks until at least one payload has been captured, the
// timeout elapses, or ctx is cancelled. A timeout here means the search
// never produced results traffic.
func (l *Listener) WaitFirst(ctx context.Context, timeout time.Duration) error {
	select {
	case <-l.firstHit:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("no search-results response within %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AwaitIdle waits until no network event has been observed for quiet, or
// until bound elapses, whichever comes first. The bound elapsing is not an
// error: a chatty page simply stops being waited on.
func (l *Listener) AwaitIdle(ctx context.Context, quiet, bound time.Duration) {
	deadline := time.Now().Add(bound)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		last := l.lastActivity.Load()
		if last != 0 && time.Since(time.Unix(0, last)) >= quiet {
			return
		}
		if time.Now().After(deadline) {
			logger.Debug("network idle bound elapsed", "bound", bound)
			return
		}
	}
}

// networkHeaders flattens CDP's loosely typed header map.
func networkHeaders(h network.Headers) map[string]string {
	if h == nil {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		if s, ok := v.(string); ok {
			out[k] = s
		} else {
			out[k] = fmt.Sprint(v)
		}
	}
	return out
}
