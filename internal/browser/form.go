package browser

import (
	"context"
	"regexp"
	"time"

	"report-harvester/internal/logger"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Click modes. Script clicks reach widgets that swallow synthetic mouse events (Angular
// and Kendo controls on the portal); native clicks go through the input pipeline.
const (
	ClickNative = "native"
	ClickScript = "script"
)

const setValueJS = `(value) => {
	this.focus();
	this.value = value;
	this.dispatchEvent(new Event('input', { bubbles: true }));
	this.dispatchEvent(new Event('change', { bubbles: true }));
}`

// Fill replaces the content of the input matching selector with value.
func (s *Session) Fill(ctx context.Context, selector, value string, timeout time.Duration) error {
	el, err := s.Locate(ctx, selector, timeout)
	if err != nil {
		return err
	}
	el = el.Context(ctx)

	if reason, err := usable(el); reason != "" {
		return &FillError{Selector: selector, Reason: reason, Err: err}
	}

	if err := el.SelectAllText(); err != nil {
		return &FillError{Selector: selector, Reason: interactReason(err), Err: err}
	}
	if err := el.Input(value); err != nil {
		// Masked and framework-bound inputs sometimes refuse inserted text.
		logger.Debug("Input on %s failed (%v), setting the value from the page", selector, err)
		if _, evalErr := el.Eval(setValueJS, value); evalErr != nil {
			return &FillError{Selector: selector, Reason: interactReason(err), Err: err}
		}
	}
	return nil
}

// Click clicks the element matching selector. An empty mode uses the session's click mode.
func (s *Session) Click(ctx context.Context, selector, mode string, timeout time.Duration) error {
	el, err := s.Locate(ctx, selector, timeout)
	if err != nil {
		return err
	}
	return s.click(ctx, el, selector, mode, timeout)
}

// ClickText clicks the first element matching selector whose text contains text.
func (s *Session) ClickText(ctx context.Context, selector, text, mode string, timeout time.Duration) error {
	el, err := s.locateText(ctx, selector, regexp.QuoteMeta(text), timeout)
	if err != nil {
		return err
	}
	return s.click(ctx, el, selector, mode, timeout)
}

// WaitFor waits until an element matching selector is present.
func (s *Session) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	_, err := s.Locate(ctx, selector, timeout)
	return err
}

func (s *Session) click(ctx context.Context, el *rod.Element, selector, mode string, timeout time.Duration) error {
	if mode == "" {
		mode = s.clickMode
	}
	el = el.Context(ctx)

	disabled, err := el.Disabled()
	if err != nil {
		return &ClickError{Selector: selector, Reason: interactReason(err), Err: err}
	}
	if disabled {
		return &ClickError{Selector: selector, Reason: ReasonDisabled}
	}

	if mode == ClickScript {
		if _, err := el.Eval(`() => this.click()`); err != nil {
			return &ClickError{Selector: selector, Reason: interactReason(err), Err: err}
		}
		return nil
	}

	if err := el.ScrollIntoView(); err != nil {
		return &ClickError{Selector: selector, Reason: interactReason(err), Err: err}
	}
	if _, err := el.Interactable(); err != nil {
		return &ClickError{Selector: selector, Reason: interactReason(err), Err: err}
	}
	if err := el.Timeout(timeout).Click(proto.InputMouseButtonLeft, 1); err != nil {
		return &ClickError{Selector: selector, Reason: interactReason(err), Err: err}
	}
	return nil
}

// usable returns a non-empty reason when el cannot take input.
func usable(el *rod.Element) (string, error) {
	disabled, err := el.Disabled()
	if err != nil {
		return interactReason(err), err
	}
	if disabled {
		return ReasonDisabled, nil
	}
	visible, err := el.Visible()
	if err != nil {
		return interactReason(err), err
	}
	if !visible {
		return ReasonHidden, nil
	}
	return "", nil
}
