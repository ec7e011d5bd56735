// Package downloader correlates browser downloads with the action that triggered them.
//
// The browser gives no completion signal to the code that clicked, so completion is observed
// in the download directory: the directory is snapshotted before the trigger (Arm), then
// polled (Observe) until a new file has kept the same non-zero size for two consecutive
// polls. Files the browser is still writing carry a partial suffix and are never candidates.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"report-harvester/internal/i18n"
	"report-harvester/internal/logger"

	"github.com/fsnotify/fsnotify"
)

// State of one watch cycle.
type State int

const (
	Idle State = iota
	Armed
	Observing
	Resolved
	TimedOut
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Observing:
		return "observing"
	case Resolved:
		return "resolved"
	case TimedOut:
		return "timed-out"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// DefaultPartialPatterns match the temporary names Chromium and Firefox write into.
var DefaultPartialPatterns = []string{"*.crdownload", "*.part", "*.download", "*.tmp", ".com.google.Chrome.*"}

type Options struct {
	Interval time.Duration
	Timeout  time.Duration
	Partial  []string // defaults to DefaultPartialPatterns
	Accept   []string // when set, only matching names can be claimed
	// DisableNotify turns off the fsnotify write tracking and leaves plain polling.
	DisableNotify bool
}

// Watcher observes one download directory. It is re-armable: every cycle starts from a
// fresh snapshot.
type Watcher struct {
	Dir      string
	interval time.Duration
	timeout  time.Duration
	partial  patterns
	accept   patterns
	notify   bool
}

func New(dir string, opts Options) (*Watcher, error) {
	if opts.Interval <= 0 || opts.Timeout <= 0 {
		return nil, errors.New("downloader: interval and timeout must be positive")
	}
	partialExprs := opts.Partial
	if len(partialExprs) == 0 {
		partialExprs = DefaultPartialPatterns
	}
	partial, err := compilePatterns(partialExprs)
	if err != nil {
		return nil, fmt.Errorf("downloader: partial pattern: %w", err)
	}
	accept, err := compilePatterns(opts.Accept)
	if err != nil {
		return nil, fmt.Errorf("downloader: accept pattern: %w", err)
	}
	return &Watcher{
		Dir:      dir,
		interval: opts.Interval,
		timeout:  opts.Timeout,
		partial:  partial,
		accept:   accept,
		notify:   !opts.DisableNotify,
	}, nil
}

// Claim is a completed download taken from the watched directory.
type Claim struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
	Elapsed time.Duration // since arming, so it includes the trigger
	// Ignored lists the other new files of the same cycle, which stay where they are.
	Ignored []string
}

// Pending is one armed watch cycle.
type Pending struct {
	w       *Watcher
	snap    snapshot
	armedAt time.Time
	state   State
}

// Arm snapshots the directory. Call it before triggering the download.
func (w *Watcher) Arm() (*Pending, error) {
	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return nil, fmt.Errorf("downloader: create %s: %w", w.Dir, err)
	}
	snap, err := takeSnapshot(w.Dir)
	if err != nil {
		return nil, fmt.Errorf("downloader: snapshot %s: %w", w.Dir, err)
	}
	logger.Debug("📸 Armed download watch on %s (%d existing files)", w.Dir, len(snap))
	return &Pending{w: w, snap: snap, armedAt: time.Now(), state: Armed}, nil
}

// ArmAndWatch arms, runs trigger and observes. A trigger error abandons the cycle.
func (w *Watcher) ArmAndWatch(ctx context.Context, trigger func(context.Context) error) (*Claim, error) {
	p, err := w.Arm()
	if err != nil {
		return nil, err
	}
	if err := trigger(ctx); err != nil {
		p.state = Idle
		return nil, err
	}
	return p.Observe(ctx)
}

func (p *Pending) State() State { return p.state }

type candidate struct {
	size    int64
	modTime time.Time
	stable  bool
}

// Observe polls until a candidate stabilizes, the timeout elapses or ctx ends.
// It never modifies the directory.
func (p *Pending) Observe(ctx context.Context) (*Claim, error) {
	if p.state != Armed {
		return nil, fmt.Errorf("downloader: observe called in state %s", p.state)
	}
	p.state = Observing
	w := p.w

	writes, stop := w.watchWrites()
	defer stop()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	deadline := time.NewTimer(w.timeout)
	defer deadline.Stop()

	tracked := make(map[string]*candidate)
	dirty := make(map[string]bool)
	var partials []string

	for {
		select {
		case <-ctx.Done():
			p.state = TimedOut
			return nil, ctx.Err()

		case name := <-writes:
			dirty[name] = true

		case <-ticker.C:
			claim, current := p.poll(tracked, dirty, &partials)
			clear(dirty)
			if claim != nil {
				claim.Elapsed = time.Since(p.armedAt)
				p.state = Resolved
				if len(claim.Ignored) > 0 {
					logger.Warn(i18n.T("watch_ignored"), strings.Join(claim.Ignored, ", "))
				}
				logger.Debug("📥 Claimed %s (%d bytes) after %s", claim.Name, claim.Size, claim.Elapsed.Round(time.Millisecond))
				return claim, nil
			}
			if current > 0 {
				logger.Debug("⏳ %d new file(s) not stable yet in %s", current, w.Dir)
			}

		case <-deadline.C:
			p.state = TimedOut
			sizes := make(map[string]int64, len(tracked))
			for name, c := range tracked {
				sizes[name] = c.size
			}
			return nil, &DownloadTimeoutError{
				Dir:        w.Dir,
				Elapsed:    time.Since(p.armedAt),
				Candidates: sizes,
				Partials:   partials,
			}
		}
	}
}

// poll updates the candidate set from one directory listing. It returns the claim when at
// least one candidate is stable, and the number of candidates currently tracked.
func (p *Pending) poll(tracked map[string]*candidate, dirty map[string]bool, partials *[]string) (*Claim, int) {
	w := p.w
	cur, err := takeSnapshot(w.Dir)
	if err != nil {
		logger.Debug("⚠️  Could not list %s: %v", w.Dir, err)
		return nil, len(tracked)
	}

	*partials = (*partials)[:0]
	for name := range cur {
		if w.partial.match(name) {
			*partials = append(*partials, name)
		}
	}

	seen := make(map[string]bool, len(cur))
	for name, info := range cur {
		if w.partial.match(name) {
			continue
		}
		if before, ok := p.snap[name]; ok && before.Size == info.Size {
			continue
		}
		if len(w.accept) > 0 && !w.accept.match(name) {
			continue
		}
		seen[name] = true

		c, ok := tracked[name]
		if !ok {
			tracked[name] = &candidate{size: info.Size, modTime: info.ModTime}
			continue
		}
		c.stable = c.size == info.Size && !dirty[name]
		c.size = info.Size
		c.modTime = info.ModTime
	}
	for name := range tracked {
		if !seen[name] {
			delete(tracked, name)
		}
	}

	var winner string
	for _, name := range sortedNames(tracked) {
		c := tracked[name]
		if !c.stable || c.size == 0 || hasPartialSibling(name, *partials) {
			continue
		}
		if winner == "" || !c.modTime.Before(tracked[winner].modTime) {
			winner = name
		}
	}
	if winner == "" {
		return nil, len(tracked)
	}

	c := tracked[winner]
	claim := &Claim{
		Path:    filepath.Join(w.Dir, winner),
		Name:    winner,
		Size:    c.size,
		ModTime: c.modTime,
	}
	for _, name := range sortedNames(tracked) {
		if name != winner {
			claim.Ignored = append(claim.Ignored, name)
		}
	}
	return claim, len(tracked)
}

// hasPartialSibling reports whether the browser is still writing name under a partial
// suffix such as name.crdownload (it may have created a placeholder with the final name).
// The suffix is a single extension: a.pdf.backup.crdownload belongs to a.pdf.backup.
func hasPartialSibling(name string, partials []string) bool {
	for _, partial := range partials {
		ext, ok := strings.CutPrefix(partial, name+".")
		if ok && ext != "" && !strings.Contains(ext, ".") {
			return true
		}
	}
	return false
}

// watchWrites reports names written in the directory between polls. Writes only reset
// stability; they never promote a candidate. Without fsnotify the channel is nil and the
// watcher degrades to polling.
func (w *Watcher) watchWrites() (<-chan string, func()) {
	if !w.notify {
		return nil, func() {}
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Debug("fsnotify unavailable, polling only: %v", err)
		return nil, func() {}
	}
	if err := fw.Add(w.Dir); err != nil {
		fw.Close()
		logger.Debug("fsnotify cannot watch %s, polling only: %v", w.Dir, err)
		return nil, func() {}
	}

	out := make(chan string, 64)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					select {
					case out <- filepath.Base(ev.Name):
					case <-done:
						return
					default:
					}
				}
			case _, ok := <-fw.Errors:
				if !ok {
					return
				}
			case <-done:
				return
			}
		}
	}()
	return out, func() {
		close(done)
		fw.Close()
	}
}
