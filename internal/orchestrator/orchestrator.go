// Package orchestrator runs the portal workflow: log in with an operator-supplied code,
// then for every identifier produce each configured report and file the download.
//
// Failures before the identifier loop abort the run. Failures inside the loop are recorded
// for that identifier and the loop moves on. The browser session is never closed here.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"report-harvester/internal/browser"
	"report-harvester/internal/config"
	"report-harvester/internal/downloader"
	"report-harvester/internal/i18n"
	"report-harvester/internal/logger"
	"report-harvester/internal/prompt"
	"report-harvester/internal/registry"

	"github.com/google/uuid"
)

// Driver is the browser surface the workflow needs. Timeouts bound the element lookup.
type Driver interface {
	Open(ctx context.Context, url string) error
	Fill(ctx context.Context, selector, value string, timeout time.Duration) error
	Click(ctx context.Context, selector, mode string, timeout time.Duration) error
	ClickText(ctx context.Context, selector, text, mode string, timeout time.Duration) error
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	Rows(ctx context.Context, rows, label, value string) ([]browser.Record, error)
}

type Watcher interface {
	ArmAndWatch(ctx context.Context, trigger func(context.Context) error) (*downloader.Claim, error)
}

type Organizer interface {
	Validate(identifier string) error
	File(claimed, identifier string) (string, error)
	Write(identifier, prefix, ext string, body []byte) (string, error)
}

type Ledger interface {
	Append(entry registry.Entry) error
}

type Deps struct {
	Driver    Driver
	Prompter  prompt.Prompter
	Watcher   Watcher
	Organizer Organizer
	Ledger    Ledger // optional
}

type Orchestrator struct {
	cfg   *config.Config
	deps  Deps
	state State

	// OnState, when set, is called on every state change.
	OnState func(from, to State)
}

func New(cfg *config.Config, deps Deps) *Orchestrator {
	return &Orchestrator{cfg: cfg, deps: deps, state: Start}
}

func (o *Orchestrator) State() State { return o.state }

func (o *Orchestrator) setState(s State) {
	if s == o.state {
		return
	}
	logger.Debug("state %s -> %s", o.state, s)
	if o.OnState != nil {
		o.OnState(o.state, s)
	}
	o.state = s
}

// Run executes the whole workflow. identifiers may be empty, in which case the operator
// is asked for them after login. The returned report is never nil; a non-nil error means
// the run stopped before the identifier loop completed.
func (o *Orchestrator) Run(ctx context.Context, identifiers []string) (*Report, error) {
	report := &Report{RunID: uuid.NewString(), StartedAt: time.Now()}
	defer func() { report.FinishedAt = time.Now() }()

	logger.Info(i18n.T("run_start"), report.RunID)

	if err := o.login(ctx); err != nil {
		o.setState(Aborted)
		return report, err
	}

	ids := normalizeIdentifiers(identifiers)
	if len(ids) == 0 {
		list, err := prompt.RequestList(ctx, o.deps.Prompter, i18n.T("ids_prompt_label"))
		if err != nil {
			o.setState(Aborted)
			return report, err
		}
		ids = normalizeIdentifiers(list)
	}
	if len(ids) == 0 {
		logger.Warn("%s", i18n.T("ids_empty"))
		o.setState(Done)
		return report, nil
	}
	logger.Info(i18n.T("ids_received"), len(ids))

	o.setState(IteratingIdentifiers)
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			o.setState(Aborted)
			return report, err
		}
		logger.Info(i18n.T("id_processing"), i+1, len(ids), id)
		res := o.processIdentifier(ctx, report.RunID, id)
		report.Results = append(report.Results, res)
		o.setState(Idle)
	}

	o.setState(Done)
	filed, failed := report.Counts()
	logger.Info(i18n.T("run_done"), filed, failed)
	return report, nil
}

// login fills the credentials, waits for the operator's one-time code and submits.
func (o *Orchestrator) login(ctx context.Context) error {
	cfg := o.cfg
	sel := cfg.Selectors
	timeout := cfg.Browser.ElementTimeout

	o.setState(Authenticating)
	if err := o.deps.Driver.Open(ctx, cfg.URL); err != nil {
		return &StepError{State: Authenticating, Step: "open " + cfg.URL, Err: err}
	}

	logger.Info("%s", i18n.T("auth_filling"))
	for _, f := range []struct{ selector, value string }{
		{sel.Username, cfg.Auth.Username},
		{sel.Password, cfg.Auth.Password},
	} {
		if err := o.deps.Driver.Fill(ctx, f.selector, f.value, timeout); err != nil {
			return o.authError(Authenticating, f.selector, err)
		}
	}

	o.setState(AwaitingCode)
	code, err := o.deps.Prompter.RequestText(ctx, i18n.T("code_prompt_label"))
	if err != nil {
		if errors.Is(err, prompt.ErrUserCancelled) {
			logger.Warn("%s", i18n.T("user_cancelled"))
		}
		return err
	}
	logger.Info("%s", i18n.T("code_received"))

	o.setState(Submitting)
	logger.Info("%s", i18n.T("submitting"))
	if err := o.deps.Driver.Fill(ctx, sel.Code, strings.TrimSpace(code), timeout); err != nil {
		return o.authError(Submitting, sel.Code, err)
	}
	if err := o.deps.Driver.Click(ctx, sel.Submit, "", timeout); err != nil {
		return &StepError{State: Submitting, Step: "click " + sel.Submit, Err: err}
	}
	if err := o.deps.Driver.WaitFor(ctx, sel.PostSubmit, timeout); err != nil {
		return &StepError{State: Submitting, Step: "wait for " + sel.PostSubmit, Err: err}
	}

	o.setState(Submitted)
	logger.Info("%s", i18n.T("submitted"))

	// Post-login navigation is a convenience; the identifier loop opens the stable page itself.
	if err := o.runSteps(ctx, Submitted, "", cfg.Workflow.AfterLogin); err != nil {
		logger.Warn("%v", err)
	}
	return nil
}

func (o *Orchestrator) authError(state State, selector string, err error) error {
	if errors.Is(err, browser.ErrNotFound) {
		logger.Error(i18n.T("auth_form_missing"), o.cfg.URL)
		return &AuthFormMissingError{URL: o.cfg.URL, Selector: selector, Err: err}
	}
	return &StepError{State: state, Step: "fill " + selector, Err: err}
}

// processIdentifier never returns an error: every failure is recorded in the result.
func (o *Orchestrator) processIdentifier(ctx context.Context, runID, id string) IdentifierResult {
	res := IdentifierResult{Identifier: id}
	wf := o.cfg.Workflow

	fail := func(err error) IdentifierResult {
		res.Err = err
		logger.Error(i18n.T("id_failed"), id, err)
		o.record(registry.Entry{RunID: runID, Identifier: id, Status: registry.StatusFailed, Error: err.Error()})
		return res
	}

	// Checked before any browser work so a bad identifier costs no downloads.
	if err := o.deps.Organizer.Validate(id); err != nil {
		return fail(err)
	}
	if wf.StableURL != "" {
		if err := o.deps.Driver.Open(ctx, wf.StableURL); err != nil {
			return fail(&StepError{State: IteratingIdentifiers, Identifier: id, Step: "open " + wf.StableURL, Err: err})
		}
	}
	if err := o.runSteps(ctx, IteratingIdentifiers, id, wf.Prepare); err != nil {
		return fail(err)
	}

	for _, trig := range wf.Triggers {
		tr := o.runTrigger(ctx, id, trig)
		res.Triggers = append(res.Triggers, tr)

		entry := registry.Entry{RunID: runID, Identifier: id, Trigger: trig.Name, Status: registry.StatusFiled, Path: tr.Path}
		if tr.Err != nil {
			logger.Error(i18n.T("id_failed"), id, tr.Err)
			entry.Status = registry.StatusFailed
			entry.Error = tr.Err.Error()
		} else {
			logger.Info(i18n.T("id_filed"), id, trig.Name, tr.Path)
		}
		o.record(entry)

		if ctx.Err() != nil {
			break
		}
	}
	return res
}

// runTrigger arms the watcher, runs the trigger steps, waits for the download and files it.
// Record triggers are read from the page instead.
func (o *Orchestrator) runTrigger(ctx context.Context, id string, trig config.Trigger) TriggerResult {
	if len(trig.Records) > 0 {
		return o.runRecords(ctx, id, trig)
	}
	tr := TriggerResult{Trigger: trig.Name}

	o.setState(Triggering)
	claim, err := o.deps.Watcher.ArmAndWatch(ctx, func(ctx context.Context) error {
		if err := o.runSteps(ctx, Triggering, id, trig.Steps); err != nil {
			return err
		}
		o.setState(AwaitingDownload)
		return nil
	})
	if err != nil {
		tr.Err = fmt.Errorf("%s: %w", trig.Name, err)
		return tr
	}

	path, err := o.deps.Organizer.File(claim.Path, id)
	if err != nil {
		tr.Err = fmt.Errorf("%s: %w", trig.Name, err)
		return tr
	}
	o.setState(Filed)
	tr.Path = path
	return tr
}

func (o *Orchestrator) record(e registry.Entry) {
	if o.deps.Ledger == nil {
		return
	}
	if err := o.deps.Ledger.Append(e); err != nil {
		logger.Warn("Could not write run ledger: %v", err)
	}
}

// normalizeIdentifiers trims entries and drops blanks. Order and duplicates are kept.
func normalizeIdentifiers(in []string) []string {
	out := make([]string, 0, len(in))
	for _, id := range in {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
