package main

import (
	"context"

	"cafepos/internal/domain/events"
	"cafepos/internal/infrastructure/storage/postgres"
	"cafepos/pkg/logger"
)

type lowStockNotifier interface {
	HandleLowStockMessage(ctx context.Context, payload []byte) error
}

type forecastInvalidator interface {
	InvalidateForecasts(ctx context.Context) (int, error)
}

// dispatcher routes outbox messages by event type. A nil dependency turns
// the matching event into a no-op so it is still marked published.
type dispatcher struct {
	notifier    lowStockNotifier
	invalidator forecastInvalidator
}

var _ postgres.OutboxHandler = (*dispatcher)(nil)

func (d *dispatcher) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	switch msg.EventType {
	case events.TypeLowStock:
		if d.notifier == nil {
			return nil
		}
		return d.notifier.HandleLowStockMessage(ctx, msg.Payload)
	case events.TypeOrderPaid:
		if d.invalidator == nil {
			return nil
		}
		n, err := d.invalidator.InvalidateForecasts(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Debug(ctx, "forecast cache invalidated", "keys", n)
		}
		return nil
	default:
		logger.Debug(ctx, "outbox event has no subscriber", "event_type", msg.EventType, "message_id", msg.ID)
		return nil
	}
}
