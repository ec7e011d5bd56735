package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"report-harvester/internal/i18n"
	"report-harvester/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultLoginURL  = "https://distributor.swiftness.co.il/he-IL/Account/Login#/"
	DefaultStableURL = "https://distributor.swiftness.co.il/he-IL/Agent#/Desktop/Events/InfoRequest"

	EnvPrefix = "RH"
)

type Config struct {
	URL            string      `mapstructure:"url"`
	Auth           Credentials `mapstructure:"auth"`
	Selectors      Selectors   `mapstructure:"selectors"`
	Download       Download    `mapstructure:"download"`
	Output         Output      `mapstructure:"output"`
	Browser        Browser     `mapstructure:"browser"`
	Workflow       Workflow    `mapstructure:"workflow"`
	Identifiers    []string    `mapstructure:"identifiers"`
	Prompt         string      `mapstructure:"prompt"`         // terminal, line or page
	EmailAlertTo   string      `mapstructure:"email_alert_to"` // Destination email for failure alerts (uses system msmtp)
	LogFile        string      `mapstructure:"log_file"`
	Verbose        bool        `mapstructure:"verbose"`
	NonInteractive bool        `mapstructure:"non_interactive"`
}

// Credentials are captured once per run. The one-time code is never part of the config.
type Credentials struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// Selectors for the login form. Stable id/name attributes, expressed as CSS.
type Selectors struct {
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	Code       string `mapstructure:"code"`
	Submit     string `mapstructure:"submit"`
	PostSubmit string `mapstructure:"post_submit"` // element that only exists once the login went through
}

type Download struct {
	Dir          string        `mapstructure:"dir"`
	Timeout      time.Duration `mapstructure:"timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Partial      []string      `mapstructure:"partial"` // globs for in-progress downloads
	Accept       []string      `mapstructure:"accept"`  // optional globs a claimed file must match
}

type Output struct {
	Root   string `mapstructure:"root"`
	Prefix string `mapstructure:"prefix"`
	Ledger string `mapstructure:"ledger"`
}

type Browser struct {
	Bin            string        `mapstructure:"bin"`
	UserDataDir    string        `mapstructure:"user_data_dir"`
	Headless       bool          `mapstructure:"headless"`
	Stealth        bool          `mapstructure:"stealth"`
	ElementTimeout time.Duration `mapstructure:"element_timeout"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	ClickMode      string        `mapstructure:"click_mode"` // "native" or "script"
}

// Workflow describes the site-specific navigation. Selectors and values may contain
// {identifier}, replaced with the identifier being processed.
type Workflow struct {
	StableURL  string    `mapstructure:"stable_url"`
	AfterLogin []Step    `mapstructure:"after_login"`
	Prepare    []Step    `mapstructure:"prepare"`
	Triggers   []Trigger `mapstructure:"triggers"`
}

type Step struct {
	Action   string        `mapstructure:"action"` // navigate, click, click_text, fill, wait
	Selector string        `mapstructure:"selector"`
	Value    string        `mapstructure:"value"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Settle   time.Duration `mapstructure:"settle"`
	Mode     string        `mapstructure:"mode"` // overrides browser.click_mode for this step
}

// Trigger is a sequence of steps whose last step makes the site produce exactly one download.
// A trigger with Records produces no download: after its steps the sections are read from
// the page and filed as one text file.
type Trigger struct {
	Name    string    `mapstructure:"name"`
	Steps   []Step    `mapstructure:"steps"`
	Records []Section `mapstructure:"records"`
}

// Section is one titled block of a records file. Steps bring the page to the data (open a
// tab, wait for a table). Every element matching Rows becomes one line: "label: value"
// when Label is set, the element text otherwise. Label and Value are looked up inside the
// row; an empty Value means the row text.
type Section struct {
	Title string `mapstructure:"title"`
	Steps []Step `mapstructure:"steps"`
	Rows  string `mapstructure:"rows"`
	Label string `mapstructure:"label"`
	Value string `mapstructure:"value"`
}

// InitConfig prepares v: .env, defaults, environment binding and the config file search path.
// A missing config file is not an error.
func InitConfig(v *viper.Viper, cfgFile string) error {
	// .env is optional; credentials usually live there.
	_ = godotenv.Load()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		if runtime.GOOS == "linux" {
			v.AddConfigPath("/etc/report-harvester/")
		}
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "report-harvester"))
		}
		v.AddConfigPath(".")
	}

	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			logger.Debug("%s", i18n.T("config_missing"))
			return nil
		}
		return fmt.Errorf(i18n.T("config_read_error"), err)
	}
	logger.Debug("Using config file: %s", v.ConfigFileUsed())
	return nil
}

// SetDefaults registers every known key so that environment overrides reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()
	downloads := filepath.Join(home, "Desktop", "maslekot")

	v.SetDefault("url", DefaultLoginURL)
	v.SetDefault("auth.username", "")
	v.SetDefault("auth.password", "")

	v.SetDefault("selectors.username", "#UserName")
	v.SetDefault("selectors.password", "#Password")
	v.SetDefault("selectors.code", "#CodeToken")
	v.SetDefault("selectors.submit", `[name="SubmitButton1"]`)
	v.SetDefault("selectors.post_submit", "#homePageItem1")

	v.SetDefault("download.dir", downloads)
	v.SetDefault("download.timeout", 45*time.Second)
	v.SetDefault("download.poll_interval", 500*time.Millisecond)
	v.SetDefault("download.partial", []string{"*.crdownload", "*.part", "*.download", "*.tmp", ".com.google.Chrome.*"})
	v.SetDefault("download.accept", []string{})

	v.SetDefault("output.root", downloads)
	v.SetDefault("output.prefix", "report")
	v.SetDefault("output.ledger", "")

	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.user_data_dir", filepath.Join(home, ".config", "report-harvester", "browser_data"))
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.stealth", true)
	v.SetDefault("browser.element_timeout", 30*time.Second)
	v.SetDefault("browser.poll_interval", 250*time.Millisecond)
	v.SetDefault("browser.click_mode", "script")

	v.SetDefault("identifiers", []string{})
	v.SetDefault("prompt", "terminal")
	v.SetDefault("email_alert_to", "")
	v.SetDefault("log_file", "")
	v.SetDefault("verbose", false)
	v.SetDefault("non_interactive", false)
}

// Load decodes v into a Config, fills the default workflow when none is configured and
// validates the result.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf(i18n.T("config_decode_error"), err)
	}

	if !v.IsSet("workflow") {
		cfg.Workflow = DefaultWorkflow()
	}
	if cfg.Output.Root == "" {
		cfg.Output.Root = cfg.Download.Dir
	}

	cfg.Download.Dir = ExpandPath(cfg.Download.Dir)
	cfg.Output.Root = ExpandPath(cfg.Output.Root)
	cfg.Output.Ledger = ExpandPath(cfg.Output.Ledger)
	cfg.Browser.UserDataDir = ExpandPath(cfg.Browser.UserDataDir)
	cfg.LogFile = ExpandPath(cfg.LogFile)

	if cfg.Output.Ledger == "" {
		cfg.Output.Ledger = filepath.Join(cfg.Output.Root, "ledger.jsonl")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values the orchestrator relies on.
func (c *Config) Validate() error {
	if !ValidURL(c.URL) {
		return fmt.Errorf(i18n.T("invalid_url"), c.URL)
	}
	if c.Workflow.StableURL != "" && !ValidURL(c.Workflow.StableURL) {
		return fmt.Errorf(i18n.T("invalid_url"), c.Workflow.StableURL)
	}
	if c.Download.Dir == "" {
		return errors.New("download.dir must be set")
	}
	if c.Download.Timeout <= 0 || c.Download.PollInterval <= 0 {
		return errors.New("download.timeout and download.poll_interval must be positive")
	}
	if c.Download.PollInterval >= c.Download.Timeout {
		return fmt.Errorf("download.poll_interval (%s) must be shorter than download.timeout (%s)", c.Download.PollInterval, c.Download.Timeout)
	}
	if c.Browser.ElementTimeout <= 0 || c.Browser.PollInterval <= 0 {
		return errors.New("browser.element_timeout and browser.poll_interval must be positive")
	}
	// The login is only considered submitted once post_submit shows up.
	for _, sel := range []struct{ key, value string }{
		{"selectors.username", c.Selectors.Username},
		{"selectors.password", c.Selectors.Password},
		{"selectors.code", c.Selectors.Code},
		{"selectors.submit", c.Selectors.Submit},
		{"selectors.post_submit", c.Selectors.PostSubmit},
	} {
		if strings.TrimSpace(sel.value) == "" {
			return fmt.Errorf("%s must be set", sel.key)
		}
	}
	switch c.Browser.ClickMode {
	case "native", "script":
	default:
		return fmt.Errorf("browser.click_mode must be native or script, got %q", c.Browser.ClickMode)
	}
	switch c.Prompt {
	case "terminal", "line", "page":
	default:
		return fmt.Errorf("prompt must be terminal, line or page, got %q", c.Prompt)
	}
	if len(c.Workflow.Triggers) == 0 {
		return errors.New("workflow.triggers must define at least one trigger")
	}
	for i, t := range c.Workflow.Triggers {
		where := fmt.Sprintf("workflow.triggers[%d]", i)
		if len(t.Steps) == 0 && len(t.Records) == 0 {
			return fmt.Errorf("%s (%s) has no steps", where, t.Name)
		}
		if err := validateSteps(where, t.Steps); err != nil {
			return err
		}
		for j, sec := range t.Records {
			if sec.Rows == "" {
				return fmt.Errorf("%s.records[%d] (%s) needs a rows selector", where, j, sec.Title)
			}
			if err := validateSteps(fmt.Sprintf("%s.records[%d]", where, j), sec.Steps); err != nil {
				return err
			}
		}
	}
	if err := validateSteps("workflow.after_login", c.Workflow.AfterLogin); err != nil {
		return err
	}
	return validateSteps("workflow.prepare", c.Workflow.Prepare)
}

func validateSteps(where string, steps []Step) error {
	for i, s := range steps {
		switch s.Action {
		case ActionNavigate:
			if !ValidURL(s.Value) {
				return fmt.Errorf("%s[%d]: "+i18n.T("invalid_url"), where, i, s.Value)
			}
			continue
		case ActionClick, ActionClickText, ActionFill, ActionWait:
		default:
			return fmt.Errorf("%s[%d]: unknown action %q", where, i, s.Action)
		}
		if s.Selector == "" {
			return fmt.Errorf("%s[%d]: %s needs a selector", where, i, s.Action)
		}
		switch s.Mode {
		case "", "native", "script":
		default:
			return fmt.Errorf("%s[%d]: mode must be native or script, got %q", where, i, s.Mode)
		}
	}
	return nil
}

// ValidURL accepts absolute http(s) URLs only.
func ValidURL(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}

// ExpandPath resolves a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
