package watcher

import (
	"path/filepath"
	"strings"
	"time"
)

const defaultSettleDelay = 500 * time.Millisecond

// transientPatterns match files that are still being written by a browser,
// a sync client or the remote fetcher. They are never reported.
var transientPatterns = []string{
	"*.part",
	"*.partial",
	"*.crdownload",
	"*.download",
	"*.tmp",
	".syncthing.*",
	"~*",
}

// Options configures a Watcher.
type Options struct {
	// SettleDelay is how long size and mtime must stay unchanged before a
	// file is reported. Defaults to 500ms.
	SettleDelay time.Duration

	// Ignore holds extra filepath.Match patterns tested against base names.
	Ignore []string

	// IgnoreHidden skips dot files. Parent directories are not considered.
	IgnoreHidden bool

	// MinSize drops settled files smaller than this. Apps that pre-create an
	// empty export before filling it would otherwise trigger a restore.
	MinSize int64

	// Accept, if set, filters settled files by path.
	Accept func(path string) bool
}

func (o *Options) setDefaults() {
	if o.SettleDelay <= 0 {
		o.SettleDelay = defaultSettleDelay
	}
}

// skip reports whether events for path should be dropped before any
// stat calls are made.
func (o *Options) skip(path string) bool {
	base := filepath.Base(path)
	if base == "." || base == string(filepath.Separator) {
		return true
	}
	if o.IgnoreHidden && strings.HasPrefix(base, ".") {
		return true
	}
	return matchAny(transientPatterns, base) || matchAny(o.Ignore, base)
}

// wants reports whether a settled file of size bytes should be reported.
func (o *Options) wants(path string, size int64) bool {
	if size < o.MinSize {
		return false
	}
	return o.Accept == nil || o.Accept(path)
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, err := filepath.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}
