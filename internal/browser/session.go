// Package browser drives one Chromium page over CDP with go-rod.
//
// Every interaction first locates its element by polling the page at a fixed interval
// for a bounded time, so the workflow never synchronizes on bare sleeps.
package browser

import (
	"context"
	"sync"
	"time"

	"report-harvester/internal/logger"

	"github.com/go-rod/rod"
)

const defaultPollInterval = 250 * time.Millisecond

// Session is one browser connection and the page the workflow drives. It is not safe for
// concurrent use: a single workflow owns it.
type Session struct {
	browser   *rod.Browser
	page      *rod.Page
	poll      time.Duration
	clickMode string

	closeOnce sync.Once
	closeErr  error
}

func newSession(b *rod.Browser, page *rod.Page, opts Options) *Session {
	poll := opts.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	mode := opts.ClickMode
	if mode == "" {
		mode = ClickNative
	}
	return &Session{browser: b, page: page, poll: poll, clickMode: mode}
}

// Open navigates to url and waits for the load event.
func (s *Session) Open(ctx context.Context, url string) error {
	logger.Debug("🌐 Opening %s", url)
	p := s.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return &NavigationError{URL: url, Err: err}
	}
	if err := p.WaitLoad(); err != nil {
		return &NavigationError{URL: url, Err: err}
	}
	return nil
}

// Locate polls for the first element matching selector until it exists or timeout elapses.
func (s *Session) Locate(ctx context.Context, selector string, timeout time.Duration) (*rod.Element, error) {
	return s.waitElement(ctx, selector, timeout, func(p *rod.Page) (bool, *rod.Element, error) {
		return p.Has(selector)
	})
}

// locateText is Locate restricted to elements whose text matches the JS regular expression.
func (s *Session) locateText(ctx context.Context, selector, pattern string, timeout time.Duration) (*rod.Element, error) {
	return s.waitElement(ctx, selector, timeout, func(p *rod.Page) (bool, *rod.Element, error) {
		return p.HasR(selector, pattern)
	})
}

func (s *Session) waitElement(ctx context.Context, selector string, timeout time.Duration, check func(*rod.Page) (bool, *rod.Element, error)) (*rod.Element, error) {
	start := time.Now()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	var lastErr error
	attempts, failed := 0, 0
	for {
		attempts++
		found, el, err := check(s.page.Context(ctx))
		switch {
		case err != nil:
			failed++
			lastErr = err
		case found:
			if attempts > 1 {
				logger.Debug("🔎 %s found after %s", selector, time.Since(start).Round(time.Millisecond))
			}
			return el, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			nf := &NotFoundError{Selector: selector, Elapsed: time.Since(start), URL: s.URL()}
			if failed == attempts {
				nf.LastErr = lastErr
			}
			return nil, nf
		case <-ticker.C:
		}
	}
}

// URL is the current page URL, or empty when the page is gone.
func (s *Session) URL() string {
	info, err := s.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// EvalString runs a JS function in the page and returns its result as a string.
func (s *Session) EvalString(ctx context.Context, js string, args ...any) (string, error) {
	res, err := s.page.Context(ctx).Eval(js, args...)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

// WaitClosed blocks until the operator closes the browser window or ctx ends.
func (s *Session) WaitClosed(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.browser.Pages(); err != nil {
				return
			}
		}
	}
}

// Close closes the browser. Only the operator decides when; the workflow never calls it.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.browser.Close()
	})
	return s.closeErr
}
