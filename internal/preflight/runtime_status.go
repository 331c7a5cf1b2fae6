package preflight

import (
	"fmt"
	"os"
	"time"

	"scriptview/internal/feed"
)

// FeedProbe is a point-in-time look at the feed file for status UIs that
// cannot reach the daemon.
type FeedProbe struct {
	Path     string
	Exists   bool
	Readable bool
	Size     int64
	Modified time.Time
}

// ProbeFeed stats the feed without reading it.
func ProbeFeed(path string) FeedProbe {
	presence := feed.Probe(path)
	probe := FeedProbe{Path: path, Exists: presence.Exists, Readable: presence.Readable}
	if info, err := os.Stat(path); err == nil {
		probe.Size = info.Size()
		probe.Modified = info.ModTime()
	}
	return probe
}

// Detail renders a display-friendly summary.
func (p FeedProbe) Detail() string {
	switch {
	case !p.Exists:
		return "No subtitle data (maybe mpv isn't running?)"
	case !p.Readable:
		return fmt.Sprintf("%s exists but is not readable", p.Path)
	default:
		age := time.Since(p.Modified).Round(time.Second)
		return fmt.Sprintf("%d bytes, updated %s ago", p.Size, age)
	}
}
