package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Line reads answers one line at a time, for pipes and non-interactive terminals.
// End of input counts as cancellation.
type Line struct {
	in  *bufio.Reader
	out io.Writer
}

// NewLine reads from in. A *bufio.Reader is used as is, so other readers of the same
// stream see whatever the prompt did not consume.
func NewLine(in io.Reader, out io.Writer) *Line {
	br, ok := in.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(in)
	}
	return &Line{in: br, out: out}
}

type lineResult struct {
	text string
	err  error
}

// RequestText asks again on an empty line. The read runs on its own goroutine so ctx
// can interrupt the wait; a read interrupted that way is abandoned.
func (l *Line) RequestText(ctx context.Context, label string) (string, error) {
	for {
		fmt.Fprintf(l.out, "%s: ", label)

		ch := make(chan lineResult, 1)
		go func() {
			text, err := l.in.ReadString('\n')
			ch <- lineResult{text: text, err: err}
		}()

		var res lineResult
		select {
		case <-ctx.Done():
			fmt.Fprintln(l.out)
			return "", ctx.Err()
		case res = <-ch:
		}

		text := strings.TrimSpace(res.text)
		if res.err != nil {
			if !errors.Is(res.err, io.EOF) {
				return "", res.err
			}
			if text == "" {
				fmt.Fprintln(l.out)
				return "", ErrUserCancelled
			}
		}
		if text != "" {
			return text, nil
		}
	}
}
