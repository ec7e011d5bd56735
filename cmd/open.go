package cmd

import (
	"context"
	"os"

	"report-harvester/internal/browser"
	"report-harvester/internal/config"
	"report-harvester/internal/i18n"
	"report-harvester/internal/logger"
	"report-harvester/internal/utils"

	"github.com/spf13/cobra"
)

var openCmd = &cobra.Command{
	Use:   "open",
	Short: "Open the browser at the login page without automation",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()
		return openOnly(ctx, cfg)
	},
}

func init() {
	openCmd.Flags().String("url", "", "Override the portal login URL")
}

// openOnly opens the login page in the automation profile. When Chromium cannot be
// started the system's default browser is used instead.
func openOnly(ctx context.Context, cfg *config.Config) error {
	session, err := browser.Launch(browserOptions(cfg))
	if err != nil {
		logger.Warn(i18n.T("browser_fallback_default"), err)
		if err := utils.OpenBrowser(cfg.URL); err != nil {
			return err
		}
		logger.Info(i18n.T("browser_opened"), cfg.URL)
		return nil
	}

	if err := session.Open(ctx, cfg.URL); err != nil {
		// The operator can still navigate by hand.
		logger.Error("%v", err)
	} else {
		logger.Info(i18n.T("browser_opened"), cfg.URL)
	}
	holdOpen(ctx, session, stdin, os.Stdout)
	return nil
}
