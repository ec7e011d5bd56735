package browser

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
)

// ErrNotFound matches any *NotFoundError.
var ErrNotFound = errors.New("element not found")

type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigate to %s: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// NotFoundError is returned once the polling window of a locate is exhausted.
// LastErr is set only when every check failed at the transport level, so a nil LastErr
// means the element never appeared.
type NotFoundError struct {
	Selector string
	Elapsed  time.Duration
	URL      string
	LastErr  error
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("element %q not found after %s", e.Selector, e.Elapsed.Round(time.Millisecond))
	if e.URL != "" {
		msg += " on " + e.URL
	}
	if e.LastErr != nil {
		msg += fmt.Sprintf(" (last error: %v)", e.LastErr)
	}
	return msg
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func (e *NotFoundError) Unwrap() error { return e.LastErr }

// Transient reports whether the element could not be looked for, as opposed to being absent.
func (e *NotFoundError) Transient() bool { return e.LastErr != nil }

// Reasons an element was found but could not be used.
const (
	ReasonDisabled = "disabled"
	ReasonHidden   = "not visible"
	ReasonCovered  = "covered by another element"
	ReasonDetached = "detached from the document"
	ReasonInput    = "input rejected"
)

type FillError struct {
	Selector string
	Reason   string
	Err      error
}

func (e *FillError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fill %q: %s: %v", e.Selector, e.Reason, e.Err)
	}
	return fmt.Sprintf("fill %q: %s", e.Selector, e.Reason)
}

func (e *FillError) Unwrap() error { return e.Err }

type ClickError struct {
	Selector string
	Reason   string
	Err      error
}

func (e *ClickError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("click %q: %s: %v", e.Selector, e.Reason, e.Err)
	}
	return fmt.Sprintf("click %q: %s", e.Selector, e.Reason)
}

func (e *ClickError) Unwrap() error { return e.Err }

// interactReason maps rod's interaction failures to a Reason.
func interactReason(err error) string {
	var covered *rod.CoveredError
	var invisible *rod.InvisibleShapeError
	var noPointer *rod.NoPointerEventsError
	switch {
	case errors.As(err, &covered), errors.As(err, &noPointer):
		return ReasonCovered
	case errors.As(err, &invisible):
		return ReasonHidden
	case isDetached(err):
		return ReasonDetached
	}
	return ReasonInput
}

func isDetached(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "detached") ||
		strings.Contains(msg, "Could not find node") ||
		strings.Contains(msg, "Cannot find context")
}
