package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"report-harvester/internal/config"
	"report-harvester/internal/logger"
)

// runRecords runs the trigger steps, reads every section and files the text. A failed
// section is written as an ERROR line and fails the trigger; the other sections are still
// read and the file is still written.
func (o *Orchestrator) runRecords(ctx context.Context, id string, trig config.Trigger) TriggerResult {
	tr := TriggerResult{Trigger: trig.Name}

	o.setState(Triggering)
	if err := o.runSteps(ctx, Triggering, id, trig.Steps); err != nil {
		tr.Err = fmt.Errorf("%s: %w", trig.Name, err)
		return tr
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n%s\n", trig.Name, id, time.Now().Format("2006-01-02 15:04:05"))

	var errs []error
	for i, sec := range trig.Records {
		title := sec.Title
		if title == "" {
			title = fmt.Sprintf("section %d", i+1)
		}
		fmt.Fprintf(&b, "\n*%s*\n", title)

		lines, err := o.readSection(ctx, id, sec)
		if err != nil {
			logger.Warn("%s: %s: %v", id, title, err)
			fmt.Fprintf(&b, "ERROR: %v\n", err)
			errs = append(errs, fmt.Errorf("%s: %w", title, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		for _, line := range lines {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}

	path, err := o.deps.Organizer.Write(id, trig.Name, ".txt", []byte(b.String()))
	if err != nil {
		errs = append(errs, err)
	} else {
		o.setState(Filed)
		tr.Path = path
	}
	if len(errs) > 0 {
		tr.Err = fmt.Errorf("%s: %w", trig.Name, errors.Join(errs...))
	}
	return tr
}

// readSection brings the page to the section and returns one line per non-empty row.
func (o *Orchestrator) readSection(ctx context.Context, id string, sec config.Section) ([]string, error) {
	if err := o.runSteps(ctx, Triggering, id, sec.Steps); err != nil {
		return nil, err
	}
	records, err := o.deps.Driver.Rows(ctx, substitute(sec.Rows, id), substitute(sec.Label, id), substitute(sec.Value, id))
	if err != nil {
		return nil, err
	}
	lines := make([]string, 0, len(records))
	for _, r := range records {
		switch {
		case r.Value == "" && r.Label == "":
		case r.Label == "":
			lines = append(lines, r.Value)
		default:
			lines = append(lines, r.Label+": "+r.Value)
		}
	}
	return lines, nil
}
