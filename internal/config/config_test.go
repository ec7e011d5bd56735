package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, DefaultLoginURL, cfg.URL)
	assert.Equal(t, "#UserName", cfg.Selectors.Username)
	assert.Equal(t, `[name="SubmitButton1"]`, cfg.Selectors.Submit)
	assert.Equal(t, 45*time.Second, cfg.Download.Timeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Download.PollInterval)
	assert.Contains(t, cfg.Download.Partial, "*.crdownload")
	assert.Equal(t, "report", cfg.Output.Prefix)
	assert.Equal(t, "terminal", cfg.Prompt)
	assert.Equal(t, cfg.Download.Dir, cfg.Output.Root)
	assert.Equal(t, filepath.Join(cfg.Output.Root, "ledger.jsonl"), cfg.Output.Ledger)

	// No workflow in the file: the portal flow is used.
	assert.Equal(t, DefaultStableURL, cfg.Workflow.StableURL)
	require.Len(t, cfg.Workflow.Triggers, 4)
	assert.Equal(t, "pitzuim", cfg.Workflow.Triggers[0].Name)
	assert.Equal(t, "products", cfg.Workflow.Triggers[2].Name)
	assert.Len(t, cfg.Workflow.Triggers[2].Records, 3)

	pdf := cfg.Workflow.Triggers[3]
	assert.Equal(t, "pdf", pdf.Name)
	require.Len(t, pdf.Steps, 1)
	assert.Equal(t, `input[type="image"][name="pdf"]`, pdf.Steps[0].Selector)
	assert.Equal(t, "script", pdf.Steps[0].Mode)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
url: https://portal.example.com/login
auth:
  username: agent7
download:
  dir: /tmp/dl
  timeout: 20s
  poll_interval: 250ms
  accept: ["*.pdf"]
output:
  root: /tmp/out
  prefix: taxes
identifiers: ["111", "222"]
workflow:
  stable_url: https://portal.example.com/search
  prepare:
    - action: fill
      selector: "#id"
      value: "{identifier}"
  triggers:
    - name: main
      steps:
        - action: click
          selector: "#make"
          timeout: 5s
`)
	v := viper.New()
	require.NoError(t, InitConfig(v, path))

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "https://portal.example.com/login", cfg.URL)
	assert.Equal(t, "agent7", cfg.Auth.Username)
	assert.Equal(t, "/tmp/dl", cfg.Download.Dir)
	assert.Equal(t, 20*time.Second, cfg.Download.Timeout)
	assert.Equal(t, []string{"*.pdf"}, cfg.Download.Accept)
	assert.Equal(t, "/tmp/out", cfg.Output.Root)
	assert.Equal(t, "taxes", cfg.Output.Prefix)
	assert.Equal(t, []string{"111", "222"}, cfg.Identifiers)

	require.Len(t, cfg.Workflow.Prepare, 1)
	assert.Equal(t, "{identifier}", cfg.Workflow.Prepare[0].Value)
	require.Len(t, cfg.Workflow.Triggers, 1)
	assert.Equal(t, 5*time.Second, cfg.Workflow.Triggers[0].Steps[0].Timeout)
	assert.Empty(t, cfg.Workflow.AfterLogin)
}

func TestEnvironmentOverridesCredentials(t *testing.T) {
	t.Setenv("RH_AUTH_PASSWORD", "s3cret")
	t.Setenv("RH_AUTH_USERNAME", "env-user")

	v := viper.New()
	require.NoError(t, InitConfig(v, writeConfig(t, "auth:\n  username: file-user\n")))

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "env-user", cfg.Auth.Username)
	assert.Equal(t, "s3cret", cfg.Auth.Password)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		v := viper.New()
		SetDefaults(v)
		cfg, err := Load(v)
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"bad url", func(c *Config) { c.URL = "ftp://x" }, "Invalid URL"},
		{"bad stable url", func(c *Config) { c.Workflow.StableURL = "portal/search" }, "Invalid URL"},
		{"poll longer than timeout", func(c *Config) { c.Download.PollInterval = time.Minute }, "must be shorter"},
		{"zero element timeout", func(c *Config) { c.Browser.ElementTimeout = 0 }, "must be positive"},
		{"unknown click mode", func(c *Config) { c.Browser.ClickMode = "telepathy" }, "click_mode"},
		{"empty trigger", func(c *Config) { c.Workflow.Triggers = []Trigger{{Name: "x"}} }, "has no steps"},
		{"unknown prompt", func(c *Config) { c.Prompt = "carrier-pigeon" }, "prompt must be"},
		{"no triggers", func(c *Config) { c.Workflow.Triggers = nil }, "at least one trigger"},
		{"no post-submit marker", func(c *Config) { c.Selectors.PostSubmit = "" }, "selectors.post_submit must be set"},
		{"blank submit selector", func(c *Config) { c.Selectors.Submit = "  " }, "selectors.submit must be set"},
		{"unknown action", func(c *Config) { c.Workflow.Prepare = []Step{{Action: "hover", Selector: "#x"}} }, `unknown action "hover"`},
		{"missing selector", func(c *Config) { c.Workflow.AfterLogin = []Step{{Action: ActionClick}} }, "needs a selector"},
		{"navigate without url", func(c *Config) { c.Workflow.Prepare = []Step{{Action: ActionNavigate, Value: "search"}} }, "Invalid URL"},
		{"records without rows", func(c *Config) {
			c.Workflow.Triggers = []Trigger{{Name: "products", Records: []Section{{Title: "Loans"}}}}
		}, "needs a rows selector"},
		{"bad records step", func(c *Config) {
			c.Workflow.Triggers = []Trigger{{Name: "products", Records: []Section{{Rows: "tr", Steps: []Step{{Action: "hover", Selector: "#x"}}}}}}
		}, "records[0][0]: unknown action"},
		{"bad step mode", func(c *Config) {
			c.Workflow.Triggers[0].Steps = []Step{{Action: ActionClick, Selector: "#x", Mode: "magic"}}
		}, "mode must be native or script"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "x", "y"), ExpandPath("~/x/y"))
	assert.Equal(t, "/abs/path", ExpandPath("/abs/path"))
	assert.Equal(t, "", ExpandPath(""))
}
