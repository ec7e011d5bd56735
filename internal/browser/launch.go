package browser

import (
	"fmt"
	"os"
	"time"

	"report-harvester/internal/i18n"
	"report-harvester/internal/logger"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

type Options struct {
	Bin         string // empty: the system Chrome/Chromium, then rod's managed download
	UserDataDir string
	Headless    bool
	Stealth     bool
	// DownloadDir is forced as the browser's download directory.
	DownloadDir  string
	PollInterval time.Duration
	ClickMode    string // "native" or "script"
}

func newLauncher(opts Options, bin string) *launcher.Launcher {
	l := launcher.New().
		UserDataDir(opts.UserDataDir).
		Headless(opts.Headless).
		Devtools(false).
		Set("disable-blink-features", "AutomationControlled").
		Set("exclude-switches", "enable-automation").
		Set("use-automation-extension", "false").
		Set("disable-popup-blocking")

	if bin != "" {
		l = l.Bin(bin)
	}
	if !opts.Headless {
		l = l.Set("start-maximized")
	}
	return l
}

// Launch starts the browser with a persistent profile and opens the page the session drives.
func Launch(opts Options) (*Session, error) {
	if opts.UserDataDir != "" {
		if err := os.MkdirAll(opts.UserDataDir, 0755); err != nil {
			return nil, fmt.Errorf("create browser profile dir: %w", err)
		}
	}

	bin := opts.Bin
	if bin == "" {
		bin, _ = launcher.LookPath()
	}
	if bin != "" {
		logger.Debug(i18n.T("browser_system"), bin)
	}

	controlURL, err := newLauncher(opts, bin).Launch()
	if err != nil {
		// The system binary may be broken or missing; let rod fetch its own Chromium.
		logger.Info("%s", i18n.T("browser_download_fail"))
		controlURL, err = newLauncher(opts, "").Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect to browser: %w", err)
	}

	if opts.DownloadDir != "" {
		if err := os.MkdirAll(opts.DownloadDir, 0755); err != nil {
			b.Close()
			return nil, fmt.Errorf("create download dir: %w", err)
		}
		err := proto.BrowserSetDownloadBehavior{
			Behavior:      proto.BrowserSetDownloadBehaviorBehaviorAllow,
			DownloadPath:  opts.DownloadDir,
			EventsEnabled: true,
		}.Call(b)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("set download directory: %w", err)
		}
	}

	var page *rod.Page
	if opts.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}

	return newSession(b, page, opts), nil
}
