package orchestrator

import (
	"fmt"
	"strings"
	"time"
)

// TriggerResult is the outcome of one trigger for one identifier.
type TriggerResult struct {
	Trigger string
	Path    string // final location when filed
	Err     error
}

// IdentifierResult collects every trigger outcome of one identifier. Err is set when the
// identifier failed before any trigger ran (navigation or prepare steps).
type IdentifierResult struct {
	Identifier string
	Triggers   []TriggerResult
	Err        error
}

func (r IdentifierResult) Failed() bool {
	if r.Err != nil {
		return true
	}
	for _, t := range r.Triggers {
		if t.Err != nil {
			return true
		}
	}
	return false
}

// Files lists the filed paths in trigger order.
func (r IdentifierResult) Files() []string {
	var out []string
	for _, t := range r.Triggers {
		if t.Err == nil && t.Path != "" {
			out = append(out, t.Path)
		}
	}
	return out
}

type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []IdentifierResult
}

// Counts returns the number of filed files and of failed identifiers.
func (r *Report) Counts() (filed, failed int) {
	for _, res := range r.Results {
		filed += len(res.Files())
		if res.Failed() {
			failed++
		}
	}
	return filed, failed
}

// FailureSummary is a plain-text list of the failed identifiers with their causes.
func (r *Report) FailureSummary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s (%s)\n\n", r.RunID, r.StartedAt.Format(time.RFC3339))
	for _, res := range r.Results {
		if !res.Failed() {
			continue
		}
		fmt.Fprintf(&b, "%s:\n", res.Identifier)
		if res.Err != nil {
			fmt.Fprintf(&b, "  %v\n", res.Err)
		}
		for _, t := range res.Triggers {
			if t.Err != nil {
				fmt.Fprintf(&b, "  %s: %v\n", t.Trigger, t.Err)
			}
		}
	}
	return b.String()
}
