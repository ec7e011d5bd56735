package browser

import (
	"context"
	"encoding/json"
	"fmt"
)

// Record is one row read from the page.
type Record struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// readRowsJS returns every rows match as {label, value}. The label is the first label
// match inside the row, the value joins every value match with " | " (the whole row when
// value is empty). Whitespace is collapsed.
const readRowsJS = `(rows, label, value) => {
	const clean = (el) => (el.innerText || el.textContent || '').replace(/\s+/g, ' ').trim();
	return JSON.stringify(Array.from(document.querySelectorAll(rows)).map((row) => {
		const first = label ? row.querySelector(label) : null;
		const values = value ? Array.from(row.querySelectorAll(value)).map(clean) : [clean(row)];
		return {label: first ? clean(first) : '', value: values.filter(Boolean).join(' | ')};
	}));
}`

// Rows reads the current page without waiting: callers wait for the data first. No match
// is an empty result, not an error.
func (s *Session) Rows(ctx context.Context, rows, label, value string) ([]Record, error) {
	out, err := s.EvalString(ctx, readRowsJS, rows, label, value)
	if err != nil {
		return nil, fmt.Errorf("read rows %s: %w", rows, err)
	}
	var records []Record
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		return nil, fmt.Errorf("read rows %s: %w", rows, err)
	}
	return records, nil
}
