package telemetry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vpittamp/i3pm-daemon/internal/domain"
)

func TestComputeChanges_DetectsModifiedField(t *testing.T) {
	before := map[string]string{"workspace": "3", "title": "old"}
	after := map[string]string{"workspace": "4", "title": "old"}

	changes := ComputeChanges(before, after)
	require.Equal(t, map[string]domain.Change{
		"workspace": {Old: "3", New: "4"},
	}, changes)
}

func TestComputeChanges_DetectsAddedAndRemovedKeys(t *testing.T) {
	before := map[string]string{"title": "old"}
	after := map[string]string{"title": "old", "focused": "true"}

	changes := ComputeChanges(before, after)
	require.Equal(t, map[string]domain.Change{
		"focused": {Old: "", New: "true"},
	}, changes)
}

func TestComputeChanges_NoChangesWhenIdentical(t *testing.T) {
	snapshot := map[string]string{"title": "same", "workspace": "1"}

	changes := ComputeChanges(snapshot, snapshot)
	require.Empty(t, changes)
}

func TestComputeChanges_RemovedKeyLeavesEmptyNew(t *testing.T) {
	before := map[string]string{"mark": "scratchpad:foo"}
	after := map[string]string{}

	changes := ComputeChanges(before, after)
	require.Equal(t, map[string]domain.Change{
		"mark": {Old: "scratchpad:foo", New: ""},
	}, changes)
}
