package service

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// Namer produces unique object names prefixed with a millisecond timestamp.
// Timestamps never repeat within the process: a call that lands on the same
// or an earlier millisecond than the previous one is moved to last+1.
type Namer struct {
	mu   sync.Mutex
	last int64
}

// Next returns "<millis>_<sanitized original>".
func (n *Namer) Next(original string, now time.Time) string {
	n.mu.Lock()
	ms := now.UnixMilli()
	if ms <= n.last {
		ms = n.last + 1
	}
	n.last = ms
	n.mu.Unlock()

	return strconv.FormatInt(ms, 10) + "_" + sanitizeFilename(original)
}

// sanitizeFilename replaces every character outside [A-Za-z0-9.] with '_'.
// Path separators are replaced too, so the result is always a single key
// segment. Length is kept as is.
func sanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.':
			return r
		}
		return '_'
	}, name)

	if name == "" {
		name = "video"
	}
	return name
}
