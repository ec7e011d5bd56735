package downloader

import (
	"os"
	"sort"
	"time"

	"github.com/gobwas/glob"
)

type fileInfo struct {
	Size    int64
	ModTime time.Time
}

// snapshot maps file names (not paths) of the regular files in a directory.
type snapshot map[string]fileInfo

func takeSnapshot(dir string) (snapshot, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	snap := make(snapshot, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info: the browser renamed a partial file.
			continue
		}
		snap[e.Name()] = fileInfo{Size: info.Size(), ModTime: info.ModTime()}
	}
	return snap, nil
}

// patterns is a compiled list of filename globs.
type patterns []glob.Glob

func compilePatterns(exprs []string) (patterns, error) {
	out := make(patterns, 0, len(exprs))
	for _, expr := range exprs {
		g, err := glob.Compile(expr)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

func (p patterns) match(name string) bool {
	for _, g := range p {
		if g.Match(name) {
			return true
		}
	}
	return false
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
