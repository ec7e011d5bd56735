package utils

import (
	"os/exec"
	"runtime"
)

// OpenBrowser opens url in the system's default browser without waiting for it.
func OpenBrowser(url string) error {
	name, args := openCommand(runtime.GOOS, url)
	return exec.Command(name, args...).Start()
}

func openCommand(goos, url string) (string, []string) {
	switch goos {
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}
	case "darwin":
		return "open", []string{url}
	default: // Linux, BSD
		return "xdg-open", []string{url}
	}
}
