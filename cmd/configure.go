package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"report-harvester/internal/config"
	"report-harvester/internal/i18n"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Configure the portal URL, username and directories",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("========================================")
		fmt.Println(i18n.T("header_title"))
		fmt.Println("========================================")
		fmt.Println(i18n.T("intro_1"))
		fmt.Println(i18n.T("intro_2"))
		fmt.Println("========================================")
		fmt.Println("")

		url := promptLine(i18n.T("prompt_url"), viper.GetString("url"))
		for !config.ValidURL(url) {
			fmt.Printf(i18n.T("invalid_url")+"\n", url)
			url = promptLine(i18n.T("prompt_url"), config.DefaultLoginURL)
		}
		username := promptLine(i18n.T("prompt_username"), viper.GetString("auth.username"))
		downloadDir := promptLine(i18n.T("prompt_download_dir"), viper.GetString("download.dir"))
		outputRoot := promptLine(i18n.T("prompt_output_root"), viper.GetString("output.root"))

		downloadDir, _ = filepath.Abs(config.ExpandPath(downloadDir))
		outputRoot, _ = filepath.Abs(config.ExpandPath(outputRoot))

		// Only the file's own content is rewritten: defaults and environment values
		// (the password in particular) stay out of it.
		path := viper.ConfigFileUsed()
		if path == "" {
			home, _ := os.UserHomeDir()
			configDir := filepath.Join(home, ".config", "report-harvester")
			if err := os.MkdirAll(configDir, 0755); err != nil {
				return fmt.Errorf(i18n.T("error_mkdir"), err)
			}
			path = filepath.Join(configDir, "config.yaml")
		}

		file := viper.New()
		file.SetConfigFile(path)
		if _, err := os.Stat(path); err == nil {
			if err := file.ReadInConfig(); err != nil {
				return fmt.Errorf(i18n.T("config_read_error"), err)
			}
		}
		file.Set("url", url)
		file.Set("auth.username", username)
		file.Set("download.dir", downloadDir)
		file.Set("output.root", outputRoot)

		if err := file.WriteConfigAs(path); err != nil {
			return fmt.Errorf(i18n.T("error_save"), err)
		}

		fmt.Printf(i18n.T("success_msg")+"\n", path)
		fmt.Println(i18n.T("password_hint"))
		return nil
	},
}
