package domain

import "time"

// WindowMatcher selects which windows a TraceSession observes. Exactly one
// of the fields needs to be set; ID takes precedence if set.
type WindowMatcher struct {
	ID         int64  `json:"id,omitempty"`
	PID        int    `json:"pid,omitempty"`
	AppID      string `json:"app_id,omitempty"`
	ClassRegex string `json:"class_regex,omitempty"`
	TitleRegex string `json:"title_regex,omitempty"`
}

// Change is a single key's before/after value in a TraceEvent diff.
type Change struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// TraceEvent is one captured event inside a TraceSession's ring buffer.
type TraceEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      string            `json:"type"`
	Desc      string            `json:"desc,omitempty"`
	Before    map[string]string `json:"before,omitempty"`
	After     map[string]string `json:"after,omitempty"`
	Context   map[string]string `json:"context,omitempty"`
	Changes   map[string]Change `json:"changes,omitempty"`
}

// TraceSession is a bounded debug capture scoped to a window matcher.
type TraceSession struct {
	TraceID   string      `json:"trace_id"`
	Matcher   WindowMatcher `json:"matcher"`
	Events    []TraceEvent  `json:"events,omitempty"`
	MaxEvents int           `json:"max_events,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	StoppedAt *time.Time    `json:"stopped_at,omitempty"`
}

// Stopped reports whether the session has been stopped.
func (s *TraceSession) Stopped() bool { return s.StoppedAt != nil }

// Push appends ev to the session's ring, dropping the oldest entry once
// MaxEvents is reached.
func (s *TraceSession) Push(ev TraceEvent) {
	max := s.MaxEvents
	if max <= 0 {
		max = 1000
	}
	s.Events = append(s.Events, ev)
	if len(s.Events) > max {
		s.Events = s.Events[len(s.Events)-max:]
	}
}
