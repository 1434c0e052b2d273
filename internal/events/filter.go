package events

import "strings"

// Filter selects events by name prefix, e.g. "job." for the job lifecycle
// or "run." for run boundaries. An empty filter selects every event.
type Filter []string

func (f Filter) Match(e Event) bool {
	if len(f) == 0 {
		return true
	}
	for _, p := range f {
		if strings.HasPrefix(e.Name, p) {
			return true
		}
	}
	return false
}

// Recent returns the last n buffered events selected by f, oldest first.
// n <= 0 returns every selected event.
func (f Filter) Recent(n int) []Event {
	var out []Event
	for _, e := range buffer.Snapshot() {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	if n > 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}
