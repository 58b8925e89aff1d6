package tui

import (
	"strings"
	"sync"
)

// LogRing is an io.Writer keeping the most recent log lines for the
// dashboard. Wire it into a log.Logger via io.MultiWriter alongside the real
// log destination.
type LogRing struct {
	mu    sync.Mutex
	lines []string
	max   int
}

// NewLogRing creates a ring keeping at most max lines
func NewLogRing(max int) *LogRing {
	if max <= 0 {
		max = 100
	}
	return &LogRing{max: max}
}

func (r *LogRing) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if line == "" {
			continue
		}
		r.lines = append(r.lines, line)
		if len(r.lines) > r.max {
			r.lines = r.lines[len(r.lines)-r.max:]
		}
	}
	return len(p), nil
}

// Lines returns the retained lines, oldest first
func (r *LogRing) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}
