// Package prompt asks the operator for text while the browser keeps running.
//
// Every Prompter blocks its caller until the operator answers or cancels. There is no
// timeout: an unattended run is expected to wait here. Cancellation by the operator is
// reported as ErrUserCancelled; cancellation of ctx as ctx.Err().
package prompt

import (
	"context"
	"errors"
	"strings"
	"unicode"
)

var ErrUserCancelled = errors.New("cancelled by user")

type Prompter interface {
	RequestText(ctx context.Context, label string) (string, error)
}

// RequestList asks for a list of values in one answer.
func RequestList(ctx context.Context, p Prompter, label string) ([]string, error) {
	text, err := p.RequestText(ctx, label)
	if err != nil {
		return nil, err
	}
	return SplitList(text), nil
}

// SplitList splits on commas, semicolons and whitespace (newlines included) and drops
// empty items. Order and duplicates are kept.
func SplitList(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})
}
