// Package launch implements the Launch Correlation Engine: a registry of
// pending "a process is about to open a window" notifications, matched
// against subsequently observed windows by a probabilistic confidence
// score.
package launch

import (
	"sync"
	"time"

	"github.com/vpittamp/i3pm-daemon/internal/classify/identity"
	"github.com/vpittamp/i3pm-daemon/internal/domain"
	"github.com/vpittamp/i3pm-daemon/internal/log"
)

// DefaultTimeout is the default lifetime of a PendingLaunch before it
// expires unmatched.
const DefaultTimeout = 5 * time.Second

// AcceptThreshold is the minimum confidence, inclusive, at which a
// correlation is accepted (spec's Open Question on 0.6 resolved
// inclusive, per spec.md's own note).
const AcceptThreshold = 0.6

// Stats mirrors the spec's get_stats() shape.
type Stats struct {
	TotalPending           int
	UnmatchedPending       int
	TotalNotifications     int
	TotalMatched           int
	TotalExpired           int
	TotalFailedCorrelation int
}

// MatchRate returns matched/notifications, or 0 if there have been no
// notifications yet.
func (s Stats) MatchRate() float64 {
	if s.TotalNotifications == 0 {
		return 0
	}
	return float64(s.TotalMatched) / float64(s.TotalNotifications)
}

// ExpirationRate returns expired/notifications, or 0 if there have been no
// notifications yet.
func (s Stats) ExpirationRate() float64 {
	if s.TotalNotifications == 0 {
		return 0
	}
	return float64(s.TotalExpired) / float64(s.TotalNotifications)
}

// entry is a PendingLaunch plus the registry bookkeeping the spec's map
// key implies.
type entry struct {
	launch domain.PendingLaunch
}

// Registry holds pending launches; all mutation is serialized behind a
// single mutex, matching the spec's concurrency model ("All mutation
// behind a single mutex; add/find_match/cleanup/get_stats are
// serialized").
type Registry struct {
	mu      sync.Mutex
	timeout time.Duration
	entries map[string]*entry

	totalNotifications     int
	totalMatched           int
	totalExpired           int
	totalFailedCorrelation int
}

// New constructs an empty Registry with the given expiration timeout (use
// DefaultTimeout if zero).
func New(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Registry{
		timeout: timeout,
		entries: make(map[string]*entry),
	}
}

// Add registers a new pending launch, opportunistically cleaning up
// expired entries first.
func (r *Registry) Add(l domain.PendingLaunch) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cleanupExpiredLocked(time.Now())
	r.entries[l.Key()] = &entry{launch: l}
	r.totalNotifications++
}

// signals captures the intermediate scoring terms for diagnostics.
type signals struct {
	classMatch     bool
	classMatchType identity.MatchType
	deltaSeconds   float64
	workspaceMatch bool
}

// Confidence computes calculate_confidence(launch, window) -> score in
// [0,1] per the spec's scoring table.
func Confidence(l domain.PendingLaunch, w domain.LaunchWindowInfo, aliases []string) (float64, signals) {
	matched, matchType := identity.Match(l.ExpectedClass, w.WindowClass, "", aliases)
	sig := signals{classMatch: matched, classMatchType: matchType}
	if !matched {
		return 0, sig
	}

	delta := w.Timestamp.Sub(l.Timestamp).Seconds()
	sig.deltaSeconds = delta
	if delta < 0 || delta >= 5.0 {
		return 0, sig
	}

	score := 0.5
	switch {
	case delta < 1:
		score += 0.3
	case delta < 2:
		score += 0.2
	case delta < 5:
		score += 0.1
	}

	if w.WorkspaceNumber == l.WorkspaceNumber {
		score += 0.2
		sig.workspaceMatch = true
	}

	if score > 1.0 {
		score = 1.0
	}
	return score, sig
}

// candidate is an unmatched entry scored against the incoming window.
type candidate struct {
	key        string
	e          *entry
	confidence float64
}

// FindMatch selects the highest-confidence unmatched entry above
// AcceptThreshold, marks it matched, and returns it. Ties go to the
// entry with the earlier launch timestamp (FIFO).
func (r *Registry) FindMatch(w domain.LaunchWindowInfo, aliasesByApp map[string][]string) (domain.PendingLaunch, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cleanupExpiredLocked(time.Now())

	var best *candidate
	for key, e := range r.entries {
		if e.launch.Matched {
			continue
		}
		aliases := aliasesByApp[e.launch.AppName]
		conf, _ := Confidence(e.launch, w, aliases)
		if conf < AcceptThreshold {
			continue
		}
		c := &candidate{key: key, e: e, confidence: conf}
		if best == nil || betterCandidate(c, best, w) {
			best = c
		}
	}

	if best == nil {
		r.totalFailedCorrelation++
		log.Warn(log.CatLaunch, "no launch correlation match", "windowClass", w.WindowClass)
		return domain.PendingLaunch{}, false
	}

	best.e.launch.Matched = true
	r.totalMatched++
	return best.e.launch, true
}

// betterCandidate reports whether a should replace b as the current best
// match: higher confidence wins outright; on a tie, prefer the entry
// whose timestamp is FIFO-earlier (first launched, first served).
func betterCandidate(a, b *candidate, w domain.LaunchWindowInfo) bool {
	if a.confidence != b.confidence {
		return a.confidence > b.confidence
	}
	return a.e.launch.Timestamp.Before(b.e.launch.Timestamp)
}

// cleanupExpiredLocked removes entries older than the registry's timeout.
// Caller must hold r.mu.
func (r *Registry) cleanupExpiredLocked(now time.Time) int {
	removed := 0
	for key, e := range r.entries {
		if !e.launch.Matched && e.launch.Expired(now, r.timeout) {
			delete(r.entries, key)
			r.totalExpired++
			removed++
			log.Warn(log.CatLaunch, "pending launch expired", "app", e.launch.AppName, "project", e.launch.ProjectName)
		}
	}
	return removed
}

// CleanupExpired removes expired entries outside of Add/FindMatch, for a
// periodic timer-driven sweep.
func (r *Registry) CleanupExpired() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cleanupExpiredLocked(time.Now())
}

// Stats returns a snapshot of the registry's counters.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	unmatched := 0
	for _, e := range r.entries {
		if !e.launch.Matched {
			unmatched++
		}
	}
	return Stats{
		TotalPending:           len(r.entries),
		UnmatchedPending:       unmatched,
		TotalNotifications:     r.totalNotifications,
		TotalMatched:           r.totalMatched,
		TotalExpired:           r.totalExpired,
		TotalFailedCorrelation: r.totalFailedCorrelation,
	}
}
