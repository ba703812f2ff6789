package launch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vpittamp/i3pm-daemon/internal/domain"
)

func mkLaunch(app, project string, ws int, t time.Time) domain.PendingLaunch {
	return domain.PendingLaunch{
		AppName:         app,
		ProjectName:     project,
		WorkspaceNumber: ws,
		ExpectedClass:   "Code",
		Timestamp:       t,
	}
}

func TestConfidence_BoundaryDeltas(t *testing.T) {
	base := time.Unix(0, 0)
	l := mkLaunch("vscode", "nixos", 2, base)

	cases := []struct {
		delta    time.Duration
		ws       int
		expected float64
	}{
		{0, 2, 1.0},
		{1 * time.Second, 99, 0.7},
		{2 * time.Second, 99, 0.6},
		{5 * time.Second, 99, 0.0},
		{6 * time.Second, 99, 0.0},
	}
	for _, c := range cases {
		w := domain.LaunchWindowInfo{WindowClass: "Code", WorkspaceNumber: c.ws, Timestamp: base.Add(c.delta)}
		conf, _ := Confidence(l, w, nil)
		require.InDelta(t, c.expected, conf, 0.001, "delta=%s", c.delta)
	}
}

func TestConfidence_ClassMismatchIsZero(t *testing.T) {
	base := time.Unix(0, 0)
	l := mkLaunch("vscode", "nixos", 2, base)
	w := domain.LaunchWindowInfo{WindowClass: "VSCode-Wrong", WorkspaceNumber: 2, Timestamp: base}
	conf, _ := Confidence(l, w, nil)
	require.Equal(t, 0.0, conf)
}

func TestFindMatch_FIFOOnEqualConfidence(t *testing.T) {
	r := New(DefaultTimeout)
	base := time.Now()
	r.Add(mkLaunch("vscode", "nixos", 2, base))
	r.Add(mkLaunch("vscode", "stacks", 2, base.Add(50*time.Millisecond)))

	w1 := domain.LaunchWindowInfo{WindowClass: "Code", WorkspaceNumber: 2, Timestamp: base.Add(600 * time.Millisecond)}
	match, ok := r.FindMatch(w1, nil)
	require.True(t, ok)
	require.Equal(t, "nixos", match.ProjectName)

	w2 := domain.LaunchWindowInfo{WindowClass: "Code", WorkspaceNumber: 2, Timestamp: base.Add(650 * time.Millisecond)}
	match2, ok := r.FindMatch(w2, nil)
	require.True(t, ok)
	require.Equal(t, "stacks", match2.ProjectName)
}

func TestFindMatch_NoneBelowThreshold(t *testing.T) {
	r := New(DefaultTimeout)
	base := time.Now()
	r.Add(mkLaunch("vscode", "nixos", 2, base))
	w := domain.LaunchWindowInfo{WindowClass: "Code", WorkspaceNumber: 99, Timestamp: base.Add(5500 * time.Millisecond)}
	_, ok := r.FindMatch(w, nil)
	require.False(t, ok)
	require.Equal(t, 1, r.Stats().TotalFailedCorrelation)
}

func TestExpiration(t *testing.T) {
	r := New(50 * time.Millisecond)
	r.Add(mkLaunch("vscode", "nixos", 2, time.Now().Add(-time.Second)))
	removed := r.CleanupExpired()
	require.Equal(t, 1, removed)
	require.Equal(t, 1, r.Stats().TotalExpired)
	require.Equal(t, 0, r.Stats().UnmatchedPending)
}

func TestStats_Rates(t *testing.T) {
	s := Stats{TotalNotifications: 4, TotalMatched: 3, TotalExpired: 1}
	require.Equal(t, 0.75, s.MatchRate())
	require.Equal(t, 0.25, s.ExpirationRate())
}
