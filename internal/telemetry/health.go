package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// Health publishes the daemon's point-in-time health indicators as OTel
// observable gauges: WM connection state, launch registry rates, tracked
// window count. Metrics register a callback that reads Health's fields
// under its lock, so Health never blocks the dispatcher goroutine that
// updates it.
type Health struct {
	mu sync.Mutex

	wmConnected      bool
	trackedWindows   int
	activeProject    string
	launchMatchRate  float64
	launchExpireRate float64
	lastRecoveryAt   time.Time
}

// NewHealth registers Health's observable gauges against meter and
// returns the Health instance callers update via its setters.
func NewHealth(meter metric.Meter) (*Health, error) {
	h := &Health{}

	connGauge, err := meter.Int64ObservableGauge("i3pm.wm.connected",
		metric.WithDescription("1 if the WM IPC client is connected, else 0"))
	if err != nil {
		return nil, err
	}
	windowsGauge, err := meter.Int64ObservableGauge("i3pm.windows.tracked",
		metric.WithDescription("Number of windows currently tracked"))
	if err != nil {
		return nil, err
	}
	matchRateGauge, err := meter.Float64ObservableGauge("i3pm.launch.match_rate",
		metric.WithDescription("Fraction of launch notifications matched to a window"))
	if err != nil {
		return nil, err
	}
	expireRateGauge, err := meter.Float64ObservableGauge("i3pm.launch.expiration_rate",
		metric.WithDescription("Fraction of launch notifications that expired unmatched"))
	if err != nil {
		return nil, err
	}

	_, err = meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		h.mu.Lock()
		defer h.mu.Unlock()

		connected := int64(0)
		if h.wmConnected {
			connected = 1
		}
		o.ObserveInt64(connGauge, connected)
		o.ObserveInt64(windowsGauge, int64(h.trackedWindows))
		o.ObserveFloat64(matchRateGauge, h.launchMatchRate)
		o.ObserveFloat64(expireRateGauge, h.launchExpireRate)
		return nil
	}, connGauge, windowsGauge, matchRateGauge, expireRateGauge)
	if err != nil {
		return nil, err
	}

	return h, nil
}

// SetWMConnected records the WM IPC client's current connection state.
func (h *Health) SetWMConnected(connected bool) {
	h.mu.Lock()
	h.wmConnected = connected
	h.mu.Unlock()
}

// SetTrackedWindows records the dispatcher's current TrackedWindow count.
func (h *Health) SetTrackedWindows(n int) {
	h.mu.Lock()
	h.trackedWindows = n
	h.mu.Unlock()
}

// SetActiveProject records the current ActiveProjectState, empty string
// for global mode.
func (h *Health) SetActiveProject(name string) {
	h.mu.Lock()
	h.activeProject = name
	h.mu.Unlock()
}

// SetLaunchRates records the launch registry's current match/expiration
// rates.
func (h *Health) SetLaunchRates(matchRate, expireRate float64) {
	h.mu.Lock()
	h.launchMatchRate = matchRate
	h.launchExpireRate = expireRate
	h.mu.Unlock()
}

// RecordRecovery timestamps the most recent recovery pass.
func (h *Health) RecordRecovery(at time.Time) {
	h.mu.Lock()
	h.lastRecoveryAt = at
	h.mu.Unlock()
}

// Snapshot is the JSON-friendly view of Health for the `health_check` RPC
// method.
type Snapshot struct {
	WMConnected      bool      `json:"wm_connected"`
	TrackedWindows   int       `json:"tracked_windows"`
	ActiveProject    string    `json:"active_project,omitempty"`
	LaunchMatchRate  float64   `json:"launch_match_rate"`
	LaunchExpireRate float64   `json:"launch_expiration_rate"`
	LastRecoveryAt   time.Time `json:"last_recovery_at,omitempty"`
}

// Snapshot returns the current health state for synchronous RPC
// responses.
func (h *Health) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Snapshot{
		WMConnected:      h.wmConnected,
		TrackedWindows:   h.trackedWindows,
		ActiveProject:    h.activeProject,
		LaunchMatchRate:  h.launchMatchRate,
		LaunchExpireRate: h.launchExpireRate,
		LastRecoveryAt:   h.lastRecoveryAt,
	}
}
