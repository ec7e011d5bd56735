package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"report-harvester/internal/browser"
	"report-harvester/internal/config"
	"report-harvester/internal/downloader"
	"report-harvester/internal/organizer"
	"report-harvester/internal/prompt"
	"report-harvester/internal/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDriver plays the portal: selectors in missing never appear, clicks on a selector in
// downloads make the "browser" save a file into dir.
type fakeDriver struct {
	mu        sync.Mutex
	dir       string
	missing   map[string]bool
	downloads map[string]string
	rows      map[string][]browser.Record
	calls     []string
}

func (f *fakeDriver) record(format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeDriver) notFound(selector string) error {
	if f.missing[selector] {
		return &browser.NotFoundError{Selector: selector, Elapsed: 10 * time.Millisecond}
	}
	return nil
}

func (f *fakeDriver) Open(_ context.Context, url string) error {
	f.record("open %s", url)
	return nil
}

func (f *fakeDriver) Fill(_ context.Context, selector, value string, _ time.Duration) error {
	if err := f.notFound(selector); err != nil {
		return err
	}
	f.record("fill %s=%s", selector, value)
	return nil
}

func (f *fakeDriver) Click(_ context.Context, selector, _ string, _ time.Duration) error {
	if err := f.notFound(selector); err != nil {
		return err
	}
	f.record("click %s", selector)
	if name, ok := f.downloads[selector]; ok {
		return os.WriteFile(filepath.Join(f.dir, name), []byte("%PDF "+selector), 0644)
	}
	return nil
}

func (f *fakeDriver) ClickText(_ context.Context, selector, text, _ string, _ time.Duration) error {
	if err := f.notFound(selector); err != nil {
		return err
	}
	f.record("click %s %s", selector, text)
	return nil
}

func (f *fakeDriver) WaitFor(_ context.Context, selector string, _ time.Duration) error {
	if err := f.notFound(selector); err != nil {
		return err
	}
	f.record("wait %s", selector)
	return nil
}

func (f *fakeDriver) Rows(_ context.Context, rows, label, value string) ([]browser.Record, error) {
	if f.missing[rows] {
		return nil, errors.New("page went away")
	}
	f.record("rows %s", rows)
	return f.rows[rows], nil
}

func (f *fakeDriver) called(call string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == call {
			return true
		}
	}
	return false
}

type fakePrompter struct {
	answers []string
	errs    []error
	labels  []string
}

func (p *fakePrompter) RequestText(_ context.Context, label string) (string, error) {
	p.labels = append(p.labels, label)
	i := len(p.labels) - 1
	if i < len(p.errs) && p.errs[i] != nil {
		return "", p.errs[i]
	}
	if i < len(p.answers) {
		return p.answers[i], nil
	}
	return "", prompt.ErrUserCancelled
}

type harness struct {
	cfg       *config.Config
	driver    *fakeDriver
	prompter  *fakePrompter
	ledger    *registry.Ledger
	organizer *organizer.Organizer
	orch      *Orchestrator
	states    []State
}

func testConfig(downloads, output string) *config.Config {
	return &config.Config{
		URL:  "https://portal.example/login",
		Auth: config.Credentials{Username: "agent", Password: "pw"},
		Selectors: config.Selectors{
			Username:   "#UserName",
			Password:   "#Password",
			Code:       "#CodeToken",
			Submit:     "#Submit",
			PostSubmit: "#home",
		},
		Download: config.Download{Dir: downloads, Timeout: 300 * time.Millisecond, PollInterval: 10 * time.Millisecond},
		Output:   config.Output{Root: output, Prefix: "report"},
		Browser:  config.Browser{ElementTimeout: 50 * time.Millisecond, PollInterval: 10 * time.Millisecond, ClickMode: "script"},
		Workflow: config.Workflow{
			StableURL:  "https://portal.example/search",
			AfterLogin: []config.Step{{Action: config.ActionClick, Selector: "#menu"}},
			Prepare: []config.Step{
				{Action: config.ActionFill, Selector: "#id", Value: "{identifier}"},
				{Action: config.ActionClick, Selector: "#row-{identifier}"},
			},
			Triggers: []config.Trigger{
				{Name: "main", Steps: []config.Step{{Action: config.ActionClick, Selector: "#make-{identifier}"}}},
			},
		},
	}
}

func newHarness(t *testing.T, answers ...string) *harness {
	t.Helper()
	downloads := t.TempDir()
	output := t.TempDir()
	cfg := testConfig(downloads, output)

	w, err := downloader.New(downloads, downloader.Options{
		Interval: cfg.Download.PollInterval,
		Timeout:  cfg.Download.Timeout,
	})
	require.NoError(t, err)

	h := &harness{
		cfg:       cfg,
		driver:    &fakeDriver{dir: downloads, missing: map[string]bool{}, downloads: map[string]string{}, rows: map[string][]browser.Record{}},
		prompter:  &fakePrompter{answers: answers},
		ledger:    registry.NewLedger(filepath.Join(output, "ledger.jsonl")),
		organizer: organizer.New(output, "report"),
	}
	h.orch = New(cfg, Deps{
		Driver:    h.driver,
		Prompter:  h.prompter,
		Watcher:   w,
		Organizer: h.organizer,
		Ledger:    h.ledger,
	})
	h.orch.OnState = func(_, to State) { h.states = append(h.states, to) }
	return h
}

func TestRunFilesSuccessesAndRecordsFailures(t *testing.T) {
	h := newHarness(t, "123456")
	// 111 produces its report; 222 never does.
	h.driver.downloads["#make-111"] = "Report.pdf"

	report, err := h.orch.Run(context.Background(), []string{"111", "222"})
	require.NoError(t, err, "per-identifier failures do not fail the run")
	assert.Equal(t, Done, h.orch.State())
	assert.NotEmpty(t, report.RunID)

	require.Len(t, report.Results, 2)
	ok, bad := report.Results[0], report.Results[1]

	assert.Equal(t, "111", ok.Identifier)
	assert.False(t, ok.Failed())
	require.Len(t, ok.Files(), 1)
	assert.FileExists(t, ok.Files()[0])
	assert.Equal(t, h.organizer.Workspace("111"), filepath.Dir(ok.Files()[0]))
	assert.NoFileExists(t, filepath.Join(h.cfg.Download.Dir, "Report.pdf"), "claimed file is moved")

	assert.Equal(t, "222", bad.Identifier)
	assert.True(t, bad.Failed())
	require.Len(t, bad.Triggers, 1)
	assert.ErrorIs(t, bad.Triggers[0].Err, downloader.ErrDownloadTimeout)
	assert.NoDirExists(t, h.organizer.Workspace("222"))

	filed, failed := report.Counts()
	assert.Equal(t, 1, filed)
	assert.Equal(t, 1, failed)
	assert.Contains(t, report.FailureSummary(), "222:")

	entries, err := registry.Load(h.ledger.Path())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, registry.StatusFiled, entries[0].Status)
	assert.Equal(t, registry.StatusFailed, entries[1].Status)
	assert.Equal(t, report.RunID, entries[1].RunID)

	assert.True(t, h.driver.called("fill #CodeToken=123456"))
	assert.True(t, h.driver.called("click #menu"), "post-login steps run")
	assert.True(t, h.driver.called("fill #id=222"), "identifier substituted in prepare steps")
	assert.Contains(t, h.states, AwaitingDownload)
	assert.Contains(t, h.states, Filed)
}

func TestRunProcessesIdentifiersInOrderWithDuplicates(t *testing.T) {
	h := newHarness(t, "123456")
	h.driver.downloads["#make-7"] = "a.pdf"
	h.driver.downloads["#make-3"] = "b.pdf"

	report, err := h.orch.Run(context.Background(), []string{"7", " ", "3", "7"})
	require.NoError(t, err)

	var order []string
	for _, r := range report.Results {
		order = append(order, r.Identifier)
		assert.False(t, r.Failed(), "identifier %s", r.Identifier)
	}
	assert.Equal(t, []string{"7", "3", "7"}, order)

	entries, err := os.ReadDir(h.organizer.Workspace("7"))
	require.NoError(t, err)
	assert.Len(t, entries, 2, "each occurrence files its own report")
}

func TestCancelBeforeSubmitting(t *testing.T) {
	h := newHarness(t)
	h.prompter.errs = []error{prompt.ErrUserCancelled}

	report, err := h.orch.Run(context.Background(), []string{"111"})
	require.Error(t, err)
	assert.ErrorIs(t, err, prompt.ErrUserCancelled)
	assert.NotNil(t, report)
	assert.Empty(t, report.Results)

	assert.Equal(t, Aborted, h.orch.State())
	assert.NotContains(t, h.states, Submitting)
	assert.False(t, h.driver.called("click #Submit"))
	assert.True(t, h.driver.called("fill #UserName=agent"), "credentials were filled before the prompt")
}

func TestAuthFormMissing(t *testing.T) {
	h := newHarness(t, "123456")
	h.driver.missing["#Password"] = true

	_, err := h.orch.Run(context.Background(), []string{"111"})
	var afm *AuthFormMissingError
	require.True(t, errors.As(err, &afm))
	assert.Equal(t, "#Password", afm.Selector)
	assert.ErrorIs(t, err, browser.ErrNotFound)
	assert.Empty(t, h.prompter.labels, "the operator is not asked for a code")
	assert.Equal(t, Aborted, h.orch.State())
}

func TestSubmitMarkerMissingIsFatal(t *testing.T) {
	h := newHarness(t, "123456")
	h.driver.missing["#home"] = true

	report, err := h.orch.Run(context.Background(), []string{"111"})
	var se *StepError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, Submitting, se.State)
	assert.Contains(t, err.Error(), "wait for #home")
	assert.Empty(t, report.Results)
	assert.NotContains(t, h.states, Submitted)
}

func TestSubmittedOnlyAfterMarkerAppears(t *testing.T) {
	h := newHarness(t, "123456")
	h.driver.downloads["#make-111"] = "r.pdf"
	var markerSeen bool
	h.orch.OnState = func(_, to State) {
		if to == Submitted {
			markerSeen = h.driver.called("wait #home")
		}
	}

	_, err := h.orch.Run(context.Background(), []string{"111"})
	require.NoError(t, err)
	assert.True(t, markerSeen, "the submit click alone does not complete the login")
}

func TestAfterLoginFailureIsNotFatal(t *testing.T) {
	h := newHarness(t, "123456")
	h.driver.missing["#menu"] = true
	h.driver.downloads["#make-111"] = "r.pdf"

	report, err := h.orch.Run(context.Background(), []string{"111"})
	require.NoError(t, err)
	filed, failed := report.Counts()
	assert.Equal(t, 1, filed)
	assert.Equal(t, 0, failed)
}

func TestPrepareFailureSkipsIdentifier(t *testing.T) {
	h := newHarness(t, "123456")
	h.driver.missing["#row-111"] = true
	h.driver.downloads["#make-222"] = "r.pdf"

	report, err := h.orch.Run(context.Background(), []string{"111", "222"})
	require.NoError(t, err)
	require.Len(t, report.Results, 2)

	first := report.Results[0]
	assert.True(t, first.Failed())
	assert.Empty(t, first.Triggers, "no trigger runs after a failed prepare step")
	var se *StepError
	require.True(t, errors.As(first.Err, &se))
	assert.Equal(t, "111", se.Identifier)
	assert.ErrorIs(t, first.Err, browser.ErrNotFound)
	assert.False(t, h.driver.called("click #make-111"))

	assert.False(t, report.Results[1].Failed())
}

func TestInvalidIdentifierFailsWithoutBrowserWork(t *testing.T) {
	h := newHarness(t, "123456")
	h.driver.downloads["#make-7"] = "r.pdf"

	report, err := h.orch.Run(context.Background(), []string{"1/2", "7"})
	require.NoError(t, err)
	require.Len(t, report.Results, 2)

	bad := report.Results[0]
	assert.True(t, bad.Failed())
	assert.ErrorIs(t, bad.Err, organizer.ErrInvalidIdentifier)
	assert.Empty(t, bad.Triggers)
	assert.False(t, h.driver.called("fill #id=1/2"))
	assert.False(t, report.Results[1].Failed())
}

func TestRecordsTriggerFilesSections(t *testing.T) {
	h := newHarness(t, "123456")
	h.cfg.Workflow.Triggers = []config.Trigger{
		{Name: "products", Records: []config.Section{
			{
				Title: "Products",
				Steps: []config.Step{{Action: config.ActionWait, Selector: ".products"}},
				Rows:  ".products .row",
				Label: ".name",
				Value: ".box",
			},
			{
				Title: "Loans",
				Steps: []config.Step{{Action: config.ActionClickText, Selector: ".tab", Value: "Loans"}},
				Rows:  "#loans-{identifier} tr",
			},
		}},
		{Name: "pdf", Steps: []config.Step{{Action: config.ActionClick, Selector: "#pdf", Mode: "script"}}},
	}
	h.driver.rows[".products .row"] = []browser.Record{{Label: "Pension", Value: "1,000 | 5%"}, {}}
	h.driver.rows["#loans-111 tr"] = []browser.Record{{Value: "Loan 200"}}
	h.driver.downloads["#pdf"] = "client.pdf"

	report, err := h.orch.Run(context.Background(), []string{"111"})
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	res := report.Results[0]
	assert.False(t, res.Failed())
	require.Len(t, res.Files(), 2)
	assert.True(t, h.driver.called("click .tab Loans"))

	data, err := os.ReadFile(res.Files()[0])
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, "products 111\n"))
	assert.Contains(t, text, "\n*Products*\nPension: 1,000 | 5%\n\n*Loans*\nLoan 200\n")
	assert.Equal(t, ".txt", filepath.Ext(res.Files()[0]))
	assert.Equal(t, ".pdf", filepath.Ext(res.Files()[1]))

	entries, err := registry.Load(h.ledger.Path())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "products", entries[0].Trigger)
	assert.Equal(t, registry.StatusFiled, entries[0].Status)
}

func TestRecordsSectionFailureIsWrittenAndReported(t *testing.T) {
	h := newHarness(t, "123456")
	h.cfg.Workflow.Triggers = []config.Trigger{
		{Name: "products", Records: []config.Section{
			{Title: "Liens", Steps: []config.Step{{Action: config.ActionWait, Selector: "#liens"}}, Rows: "#liens .row"},
			{Title: "Loans", Rows: "#loans tr"},
		}},
	}
	h.driver.missing["#liens"] = true
	h.driver.rows["#loans tr"] = []browser.Record{{Value: "Loan 200"}}

	report, err := h.orch.Run(context.Background(), []string{"111"})
	require.NoError(t, err)
	res := report.Results[0]
	assert.True(t, res.Failed())
	require.Len(t, res.Triggers, 1)
	tr := res.Triggers[0]
	assert.ErrorIs(t, tr.Err, browser.ErrNotFound)
	require.NotEmpty(t, tr.Path, "the readable sections are still filed")

	data, err := os.ReadFile(tr.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "*Liens*\nERROR: ")
	assert.Contains(t, string(data), "*Loans*\nLoan 200\n")

	entries, err := registry.Load(h.ledger.Path())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, registry.StatusFailed, entries[0].Status)
	assert.Equal(t, tr.Path, entries[0].Path)
}

func TestTriggersAreFiledIndependently(t *testing.T) {
	h := newHarness(t, "123456")
	h.cfg.Workflow.Triggers = []config.Trigger{
		{Name: "pitzuim", Steps: []config.Step{
			{Action: config.ActionClick, Selector: "#check-a"},
			{Action: config.ActionClick, Selector: "#create-a"},
		}},
		{Name: "broken", Steps: []config.Step{{Action: config.ActionClick, Selector: "#gone"}}},
		{Name: "compensation", Steps: []config.Step{
			{Action: config.ActionClick, Selector: "#check-b"},
			{Action: config.ActionClick, Selector: "#create-b"},
		}},
	}
	h.driver.missing["#gone"] = true
	h.driver.downloads["#create-a"] = "taxes.pdf"
	h.driver.downloads["#create-b"] = "taxes.pdf"

	report, err := h.orch.Run(context.Background(), []string{"111"})
	require.NoError(t, err)
	require.Len(t, report.Results, 1)

	res := report.Results[0]
	require.Len(t, res.Triggers, 3)
	assert.NoError(t, res.Triggers[0].Err)
	assert.ErrorIs(t, res.Triggers[1].Err, browser.ErrNotFound)
	assert.NoError(t, res.Triggers[2].Err)
	assert.True(t, res.Failed())

	files := res.Files()
	require.Len(t, files, 2)
	assert.NotEqual(t, files[0], files[1], "each trigger gets its own file name")

	entries, err := registry.Load(h.ledger.Path())
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "broken", entries[1].Trigger)
}

func TestIdentifiersFromPrompter(t *testing.T) {
	h := newHarness(t, "123456", "333, 444")
	h.driver.downloads["#make-333"] = "a.pdf"
	h.driver.downloads["#make-444"] = "b.pdf"

	report, err := h.orch.Run(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, h.prompter.labels, 2)
	require.Len(t, report.Results, 2)
	assert.Equal(t, "333", report.Results[0].Identifier)
	assert.Equal(t, "444", report.Results[1].Identifier)
}

func TestCancelIdentifierPrompt(t *testing.T) {
	h := newHarness(t, "123456")

	_, err := h.orch.Run(context.Background(), nil)
	assert.ErrorIs(t, err, prompt.ErrUserCancelled)
	assert.Equal(t, Aborted, h.orch.State())
	assert.Contains(t, h.states, Submitted, "cancel came after login")
}

func TestEmptyIdentifierListFinishes(t *testing.T) {
	h := newHarness(t, "123456", " , ")

	report, err := h.orch.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, report.Results)
	assert.Equal(t, Done, h.orch.State())
}

func TestContextCancelStopsLoop(t *testing.T) {
	h := newHarness(t, "123456")
	ctx, cancel := context.WithCancel(context.Background())
	h.orch.OnState = func(_, to State) {
		if to == AwaitingDownload {
			cancel()
		}
	}

	report, err := h.orch.Run(ctx, []string{"111", "222"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, report.Results, 1)
}

func TestSubstituteAndDescribe(t *testing.T) {
	assert.Equal(t, "#row-42", substitute("#row-{identifier}", "42"))
	assert.Equal(t, "plain", substitute("plain", "42"))

	assert.Equal(t, "fill #id", describe(config.Step{Action: config.ActionFill, Selector: "#id", Value: "{identifier}"}, "42"))
	assert.Equal(t, `click li "Tab 42"`, describe(config.Step{Action: config.ActionClickText, Selector: "li", Value: "Tab {identifier}"}, "42"))
	assert.Equal(t, "navigate https://x/42", describe(config.Step{Action: config.ActionNavigate, Value: "https://x/{identifier}"}, "42"))
}

func TestSettleHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, settle(ctx, time.Hour), context.Canceled)
	assert.NoError(t, settle(context.Background(), 0))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "awaiting-code", AwaitingCode.String())
	assert.Equal(t, "aborted", Aborted.String())
	assert.Equal(t, "state(99)", State(99).String())
}
