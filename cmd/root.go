package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"report-harvester/internal/config"
	"report-harvester/internal/i18n"
	"report-harvester/internal/logger"
	"report-harvester/internal/prompt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Exit codes.
const (
	exitOK        = 0
	exitFailure   = 1
	exitCancelled = 2
)

var (
	cfgFile  string
	closeLog = func() error { return nil }
)

var rootCmd = &cobra.Command{
	Use:   "report-harvester",
	Short: "Log into the distributor portal and download client reports",
	Long: `report-harvester drives a Chromium browser through the portal login, asks for the
one-time code, then produces and files the reports of every client identifier.

Running it without a subcommand is the same as "report-harvester run".`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		i18n.Init()
		if err := config.InitConfig(viper.GetViper(), cfgFile); err != nil {
			return err
		}
		closeLog = logger.Setup(logger.Options{
			Verbose: viper.GetBool("verbose"),
			LogFile: config.ExpandPath(viper.GetString("log_file")),
		})
		return nil
	},
	RunE: runAutomation,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(configureCmd)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: $HOME/.config/report-harvester/config.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().Bool("non-interactive", false, "Read answers line by line from stdin instead of showing a prompt")
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("non_interactive", rootCmd.PersistentFlags().Lookup("non-interactive"))

	addRunFlags(rootCmd)
}

func Execute() {
	err := rootCmd.Execute()
	code := exitCode(err)
	if err != nil {
		if code == exitCancelled {
			logger.Warn("%s", i18n.T("user_cancelled"))
		} else {
			fmt.Fprintln(os.Stderr, "❌", err)
		}
	}
	closeLog()
	os.Exit(code)
}

// exitCode maps the outcome of a command to the process exit status. A run whose
// identifier loop completed returns nil, even when some identifiers failed.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, prompt.ErrUserCancelled), errors.Is(err, context.Canceled):
		return exitCancelled
	default:
		return exitFailure
	}
}
