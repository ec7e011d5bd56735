package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"report-harvester/internal/config"
	"report-harvester/internal/logger"
)

const identifierPlaceholder = "{identifier}"

// runSteps executes steps in order and stops at the first failure.
func (o *Orchestrator) runSteps(ctx context.Context, state State, id string, steps []config.Step) error {
	for i, step := range steps {
		if err := o.runStep(ctx, id, step); err != nil {
			return &StepError{
				State:      state,
				Identifier: id,
				Step:       fmt.Sprintf("step %d (%s)", i+1, describe(step, id)),
				Err:        err,
			}
		}
	}
	return nil
}

func (o *Orchestrator) runStep(ctx context.Context, id string, step config.Step) error {
	d := o.deps.Driver
	timeout := step.Timeout
	if timeout <= 0 {
		timeout = o.cfg.Browser.ElementTimeout
	}
	selector := substitute(step.Selector, id)
	value := substitute(step.Value, id)

	logger.Debug("▶️  %s", describe(step, id))

	var err error
	switch step.Action {
	case config.ActionNavigate:
		err = d.Open(ctx, value)
	case config.ActionClick:
		err = d.Click(ctx, selector, step.Mode, timeout)
	case config.ActionClickText:
		err = d.ClickText(ctx, selector, value, step.Mode, timeout)
	case config.ActionFill:
		err = d.Fill(ctx, selector, value, timeout)
	case config.ActionWait:
		err = d.WaitFor(ctx, selector, timeout)
	default:
		err = fmt.Errorf("unknown action %q", step.Action)
	}
	if err != nil {
		return err
	}
	return settle(ctx, step.Settle)
}

// settle pauses after a step that already completed its explicit wait, for pages that keep
// re-rendering after the element shows up.
func settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func substitute(s, id string) string {
	return strings.ReplaceAll(s, identifierPlaceholder, id)
}

func describe(step config.Step, id string) string {
	switch step.Action {
	case config.ActionNavigate:
		return "navigate " + substitute(step.Value, id)
	case config.ActionFill:
		return fmt.Sprintf("fill %s", substitute(step.Selector, id))
	case config.ActionClickText:
		return fmt.Sprintf("click %s %q", substitute(step.Selector, id), substitute(step.Value, id))
	}
	return step.Action + " " + substitute(step.Selector, id)
}
