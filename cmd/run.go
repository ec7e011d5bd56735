package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"report-harvester/internal/browser"
	"report-harvester/internal/config"
	"report-harvester/internal/downloader"
	"report-harvester/internal/i18n"
	"report-harvester/internal/logger"
	"report-harvester/internal/notifier"
	"report-harvester/internal/orchestrator"
	"report-harvester/internal/organizer"
	"report-harvester/internal/prompt"
	"report-harvester/internal/registry"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Log in and download the reports of every identifier (default)",
	RunE:  runAutomation,
}

func init() {
	addRunFlags(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().String("url", "", "Override the portal login URL")
	cmd.Flags().StringSlice("ids", nil, "Identifiers to process, in order (comma separated)")
	cmd.Flags().String("ids-file", "", "File with identifiers: a YAML list, or plain text separated by commas or newlines")
	cmd.Flags().Bool("browser-only", false, "Only open the browser at the login page, no automation")
}

// loadConfig reads the configuration and applies the --url override.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if f := cmd.Flags().Lookup("url"); f != nil && f.Changed {
		if !config.ValidURL(f.Value.String()) {
			return nil, fmt.Errorf(i18n.T("invalid_url"), f.Value.String())
		}
		cfg.URL = f.Value.String()
	}
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func browserOptions(cfg *config.Config) browser.Options {
	return browser.Options{
		Bin:          cfg.Browser.Bin,
		UserDataDir:  cfg.Browser.UserDataDir,
		Headless:     cfg.Browser.Headless,
		Stealth:      cfg.Browser.Stealth,
		DownloadDir:  cfg.Download.Dir,
		PollInterval: cfg.Browser.PollInterval,
		ClickMode:    cfg.Browser.ClickMode,
	}
}

func runAutomation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	if browserOnly, _ := cmd.Flags().GetBool("browser-only"); browserOnly {
		return openOnly(ctx, cfg)
	}

	ids, err := identifiersFromFlags(cmd, cfg)
	if err != nil {
		return err
	}

	watcher, err := downloader.New(cfg.Download.Dir, downloader.Options{
		Interval: cfg.Download.PollInterval,
		Timeout:  cfg.Download.Timeout,
		Partial:  cfg.Download.Partial,
		Accept:   cfg.Download.Accept,
	})
	if err != nil {
		return err
	}

	session, err := browser.Launch(browserOptions(cfg))
	if err != nil {
		return err
	}

	orch := orchestrator.New(cfg, orchestrator.Deps{
		Driver:    session,
		Prompter:  newPrompter(cfg, session),
		Watcher:   watcher,
		Organizer: organizer.New(cfg.Output.Root, cfg.Output.Prefix),
		Ledger:    registry.NewLedger(cfg.Output.Ledger),
	})
	report, runErr := orch.Run(ctx, ids)

	if _, failed := report.Counts(); failed > 0 {
		mailer := &notifier.Mailer{To: cfg.EmailAlertTo}
		subject := fmt.Sprintf(i18n.T("alert_subject"), failed, len(report.Results))
		if err := mailer.SendAlert(subject, report.FailureSummary()); err != nil {
			logger.Warn("%v", err)
		}
	}

	if ctx.Err() != nil {
		session.Close()
		return ctx.Err()
	}
	if runErr != nil {
		logger.Error("%v", runErr)
	}
	holdOpen(ctx, session, stdin, os.Stdout)
	return runErr
}

// newPrompter picks how the operator is asked for the code and the identifiers.
func newPrompter(cfg *config.Config, session *browser.Session) prompt.Prompter {
	switch {
	case cfg.NonInteractive || cfg.Prompt == "line":
		return prompt.NewLine(stdin, os.Stdout)
	case cfg.Prompt == "page":
		return &prompt.Page{Eval: session, Interval: cfg.Browser.PollInterval}
	case !stdinIsTerminal():
		return prompt.NewLine(stdin, os.Stdout)
	default:
		return &prompt.Terminal{}
	}
}

func stdinIsTerminal() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// heldSession is the part of the browser session holdOpen needs.
type heldSession interface {
	WaitClosed(ctx context.Context)
	Close() error
}

// holdOpen leaves the browser to the operator until they press Enter, close the window
// or interrupt the program, then closes it. When in has no more input (a pipe, or
// --non-interactive after the answers were read) there is no Enter to wait for, and only
// closing the window or an interrupt ends the wait.
func holdOpen(ctx context.Context, session heldSession, in *bufio.Reader, out io.Writer) {
	logger.Info("%s", i18n.T("browser_left_open"))

	closed := make(chan struct{})
	go func() {
		session.WaitClosed(ctx)
		close(closed)
	}()

	confirmed := make(chan struct{})
	go func() {
		if _, err := readLine(in, out, i18n.T("browser_close_prompt"), ""); err != nil {
			logger.Info("%s", i18n.T("browser_wait_window"))
			return
		}
		close(confirmed)
	}()

	select {
	case <-ctx.Done():
	case <-closed:
	case <-confirmed:
	}
	session.Close()
	logger.Info("%s", i18n.T("browser_closed"))
}
