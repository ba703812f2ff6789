package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/vpittamp/i3pm-daemon/internal/log"
)

// Performance tracks per-operation-name latency, generalized from
// orchestration/metrics's counter/histogram idiom: every recorded
// duration both updates an in-process Histogram (for synchronous
// RPC responses) and an OTel Float64Histogram instrument (for external
// scraping).
type Performance struct {
	mu         sync.Mutex
	histograms map[string]*Histogram
	otelHist   metric.Float64Histogram
	target     time.Duration
}

// NewPerformance constructs a Performance tracker. target is the expected
// latency for a "slow operation" warning (emitted at 2x target).
func NewPerformance(meter metric.Meter, target time.Duration) *Performance {
	hist, _ := meter.Float64Histogram(
		"i3pm.operation.duration",
		metric.WithDescription("Duration of daemon operations by name"),
		metric.WithUnit("ms"),
	)
	return &Performance{
		histograms: make(map[string]*Histogram),
		otelHist:   hist,
		target:     target,
	}
}

// Record logs a duration for op, warning if it exceeds 2x the configured
// target.
func (p *Performance) Record(op string, d time.Duration) {
	ms := float64(d.Microseconds()) / 1000.0

	p.mu.Lock()
	h, ok := p.histograms[op]
	if !ok {
		h = NewHistogram()
		p.histograms[op] = h
	}
	p.mu.Unlock()
	h.Record(ms)

	if p.otelHist != nil {
		p.otelHist.Record(context.Background(), ms)
	}

	if p.target > 0 && d > 2*p.target {
		log.Warn(log.CatTelemetry, "slow operation", "op", op, "duration_ms", ms, "target_ms", float64(p.target.Microseconds())/1000.0)
	}
}

// Time returns a func() that, when called, records the elapsed duration
// since Time was called, under op's name.
func (p *Performance) Time(op string) func() {
	start := time.Now()
	return func() { p.Record(op, time.Since(start)) }
}

// Stats returns the current Stats for op, or a zero Stats if nothing has
// been recorded yet.
func (p *Performance) Stats(op string) Stats {
	p.mu.Lock()
	h, ok := p.histograms[op]
	p.mu.Unlock()
	if !ok {
		return Stats{}
	}
	return h.Percentiles()
}

// AllStats returns every tracked operation's Stats, keyed by name.
func (p *Performance) AllStats() map[string]Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]Stats, len(p.histograms))
	for name, h := range p.histograms {
		out[name] = h.Percentiles()
	}
	return out
}
