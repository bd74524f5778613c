package dashboard

import (
	"context"

	"github.com/couchcryptid/polygon-weather-dashboard/internal/domain"
)

// EventPublisher emits polygon lifecycle events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.PolygonEvent) error
}

// NopPublisher discards every event. It is used when publishing is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, domain.PolygonEvent) error { return nil }
