package telemetry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/vpittamp/i3pm-daemon/internal/domain"
)

// ComputeChanges diffs before/after window-state snapshots and returns
// the per-key changes between them. Snapshots are canonicalized to
// sorted "key=value" lines before diffing so the line-level diff lands
// on whole-field boundaries instead of fragmenting on substrings.
func ComputeChanges(before, after map[string]string) map[string]domain.Change {
	beforeText := canonicalize(before)
	afterText := canonicalize(after)

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(beforeText, afterText, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	removed := map[string]string{}
	added := map[string]string{}
	for _, d := range diffs {
		lines := strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n")
		for _, line := range lines {
			if line == "" {
				continue
			}
			key, val, ok := strings.Cut(line, "=")
			if !ok {
				continue
			}
			switch d.Type {
			case diffmatchpatch.DiffDelete:
				removed[key] = val
			case diffmatchpatch.DiffInsert:
				added[key] = val
			}
		}
	}

	changes := make(map[string]domain.Change)
	for key, oldVal := range removed {
		newVal, stillPresent := after[key]
		if !stillPresent {
			newVal = ""
		}
		changes[key] = domain.Change{Old: oldVal, New: newVal}
	}
	for key, newVal := range added {
		if _, already := changes[key]; already {
			continue
		}
		oldVal := before[key]
		changes[key] = domain.Change{Old: oldVal, New: newVal}
	}
	return changes
}

// canonicalize renders a snapshot map as sorted "key=value\n" lines so
// diffing two snapshots is stable regardless of Go's randomized map
// iteration order.
func canonicalize(snapshot map[string]string) string {
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s\n", k, snapshot[k])
	}
	return b.String()
}
