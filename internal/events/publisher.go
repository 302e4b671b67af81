// Package events forwards catalog changes to downstream consumers. Publish
// failures are reported to callers so they can log them; the upload and
// catalog paths never fail a request over a publishing problem.
package events

import "context"

// Publisher appends catalog events to a downstream stream. Implementations
// must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Ping(ctx context.Context) error
	Close() error
}

// NoopPublisher discards all events. It serves deployments without any
// downstream consumers configured.
type NoopPublisher struct{}

// NewNoopPublisher constructs a publisher that discards events.
func NewNoopPublisher() NoopPublisher { return NoopPublisher{} }

// Publish drops the event.
func (NoopPublisher) Publish(context.Context, Event) error { return nil }

// Ping always reports success.
func (NoopPublisher) Ping(context.Context) error { return nil }

// Close is a no-op.
func (NoopPublisher) Close() error { return nil }
