package downloader

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrDownloadTimeout matches any *DownloadTimeoutError.
var ErrDownloadTimeout = errors.New("download timeout")

// DownloadTimeoutError reports a watch cycle in which no candidate stabilized.
// Elapsed runs from arming, so a slow trigger counts towards it. Candidates holds the last size seen for every new file, Partials the in-progress files
// that were present at the end of the window.
type DownloadTimeoutError struct {
	Dir        string
	Elapsed    time.Duration
	Candidates map[string]int64
	Partials   []string
}

func (e *DownloadTimeoutError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "no completed download in %s after %s", e.Dir, e.Elapsed.Round(time.Millisecond))
	if len(e.Candidates) == 0 && len(e.Partials) == 0 {
		b.WriteString(" (directory unchanged)")
		return b.String()
	}
	if len(e.Candidates) > 0 {
		parts := make([]string, 0, len(e.Candidates))
		for _, name := range sortedNames(e.Candidates) {
			parts = append(parts, fmt.Sprintf("%s=%dB", name, e.Candidates[name]))
		}
		fmt.Fprintf(&b, "; unstable: %s", strings.Join(parts, ", "))
	}
	if len(e.Partials) > 0 {
		partials := append([]string(nil), e.Partials...)
		sort.Strings(partials)
		fmt.Fprintf(&b, "; in progress: %s", strings.Join(partials, ", "))
	}
	return b.String()
}

func (e *DownloadTimeoutError) Is(target error) bool {
	return target == ErrDownloadTimeout
}
