// Package eventbus provides the daemon's internal event bus: a thin,
// domain-typed wrapper over internal/pubsub's generic broker, used to fan
// out dispatcher-observed changes (project switches, window events,
// recovery outcomes) to the telemetry layer and any JSON-RPC subscribers
// without coupling the dispatcher to their implementations.
package eventbus

import (
	"context"

	"github.com/vpittamp/i3pm-daemon/internal/pubsub"
)

// Kind tags a DaemonEvent's topic.
type Kind string

const (
	KindWindowEvent     Kind = "window_event"
	KindProjectSwitch   Kind = "project_switch"
	KindLaunchCorrelate Kind = "launch_correlate"
	KindRecovery        Kind = "recovery"
	KindConfigReload    Kind = "config_reload"
)

// DaemonEvent is the payload type carried over the bus: a tagged kind plus
// a free-form detail map, kept loosely typed so every subsystem can
// publish without a shared schema — consumers (telemetry, RPC subscribers)
// type-switch on Kind.
type DaemonEvent struct {
	Kind   Kind
	Detail map[string]any
}

// Bus is the daemon-wide event broker.
type Bus struct {
	broker *pubsub.Broker[DaemonEvent]
}

// New constructs a Bus with the broker's default 64-entry subscriber
// buffer.
func New() *Bus {
	return &Bus{broker: pubsub.NewBroker[DaemonEvent]()}
}

// Publish fans out ev to every current subscriber, non-blocking — a slow
// or dead subscriber drops events rather than stalling the publisher.
func (b *Bus) Publish(ev DaemonEvent) {
	b.broker.Publish(pubsub.CreatedEvent, ev)
}

// Subscribe returns a channel of DaemonEvents, closed automatically when
// ctx is canceled.
func (b *Bus) Subscribe(ctx context.Context) <-chan pubsub.Event[DaemonEvent] {
	return b.broker.Subscribe(ctx)
}

// Close shuts down the bus and all subscriber channels.
func (b *Bus) Close() { b.broker.Close() }
