package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"cafepos/internal/core/id"
	"cafepos/internal/domain/events"
	"cafepos/pkg/logger"
)

// OutboxStatus is the delivery state of an outbox message.
type OutboxStatus string

const (
	OutboxPending   OutboxStatus = "pending"
	OutboxPublished OutboxStatus = "published"
	OutboxFailed    OutboxStatus = "failed"
)

// DefaultOutboxMaxRetries is how many failed deliveries mark a message failed.
const DefaultOutboxMaxRetries = 5

// OutboxMessage is a row of sys_outbox.
type OutboxMessage struct {
	ID            id.ID        `db:"id"`
	AggregateType string       `db:"aggregate_type"`
	AggregateID   id.ID        `db:"aggregate_id"`
	EventType     string       `db:"event_type"`
	Payload       []byte       `db:"payload"`
	Status        OutboxStatus `db:"status"`
	RetryCount    int          `db:"retry_count"`
	LastError     *string      `db:"last_error"`
	NextRetryAt   *time.Time   `db:"next_retry_at"`
	CreatedAt     time.Time    `db:"created_at"`
	PublishedAt   *time.Time   `db:"published_at"`
}

var outboxColumns = []string{
	"id", "aggregate_type", "aggregate_id", "event_type", "payload", "status",
	"retry_count", "last_error", "next_retry_at", "created_at", "published_at",
}

// OutboxPublisher writes domain events into sys_outbox in the caller's transaction.
type OutboxPublisher struct {
	txm *TxManager
}

var _ events.Publisher = (*OutboxPublisher)(nil)

// NewOutboxPublisher creates an outbox publisher.
func NewOutboxPublisher(txm *TxManager) *OutboxPublisher {
	return &OutboxPublisher{txm: txm}
}

// Publish stores the event. It fails outside a transaction.
func (p *OutboxPublisher) Publish(ctx context.Context, event events.Event) error {
	t, err := p.txm.RequireTx(ctx)
	if err != nil {
		return fmt.Errorf("outbox publish %s: %w", event.EventType, err)
	}

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event.EventType, err)
	}

	sql, args, err := buildOutboxInsert(event, payload, time.Now().UTC()).ToSql()
	if err != nil {
		return fmt.Errorf("build outbox insert: %w", err)
	}
	if _, err := t.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}
	return nil
}

func buildOutboxInsert(event events.Event, payload []byte, now time.Time) squirrel.InsertBuilder {
	return Builder().
		Insert("sys_outbox").
		Columns("id", "aggregate_type", "aggregate_id", "event_type", "payload", "status", "created_at").
		Values(id.New(), event.AggregateType, event.AggregateID, event.EventType, payload, OutboxPending, now)
}

// OutboxHandler delivers one message. A returned error schedules a retry.
type OutboxHandler interface {
	Handle(ctx context.Context, msg *OutboxMessage) error
}

// OutboxHandlerFunc adapts a function to OutboxHandler.
type OutboxHandlerFunc func(ctx context.Context, msg *OutboxMessage) error

func (f OutboxHandlerFunc) Handle(ctx context.Context, msg *OutboxMessage) error { return f(ctx, msg) }

// OutboxRelay claims pending messages and hands them to a handler.
type OutboxRelay struct {
	txm        *TxManager
	handler    OutboxHandler
	batchSize  int
	maxRetries int
}

// NewOutboxRelay creates a relay.
func NewOutboxRelay(txm *TxManager, handler OutboxHandler, batchSize int) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &OutboxRelay{
		txm:        txm,
		handler:    handler,
		batchSize:  batchSize,
		maxRetries: DefaultOutboxMaxRetries,
	}
}

// ProcessBatch claims up to batchSize due messages with SKIP LOCKED, delivers
// them and records the outcome, all in one transaction. Several workers can
// run concurrently without delivering a message twice.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (int, error) {
	processed := 0
	err := r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		sql, args, err := buildOutboxClaim(r.batchSize, time.Now().UTC()).ToSql()
		if err != nil {
			return fmt.Errorf("build outbox claim: %w", err)
		}

		var messages []*OutboxMessage
		if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &messages, sql, args...); err != nil {
			return fmt.Errorf("claim outbox messages: %w", err)
		}

		for _, msg := range messages {
			if err := r.deliver(ctx, msg); err != nil {
				return err
			}
			if msg.Status == OutboxPublished {
				processed++
			}
		}
		return nil
	})
	return processed, err
}

func buildOutboxClaim(limit int, now time.Time) squirrel.SelectBuilder {
	return Builder().
		Select(outboxColumns...).
		From("sys_outbox").
		Where(squirrel.Eq{"status": OutboxPending}).
		Where(squirrel.Or{
			squirrel.Eq{"next_retry_at": nil},
			squirrel.LtOrEq{"next_retry_at": now},
		}).
		OrderBy("created_at").
		Limit(uint64(limit)).
		Suffix("FOR UPDATE SKIP LOCKED")
}

// deliver runs the handler and updates the row. Handler errors are recorded
// on the row, not returned; only bookkeeping failures abort the batch.
func (r *OutboxRelay) deliver(ctx context.Context, msg *OutboxMessage) error {
	q := r.txm.GetQuerier(ctx)
	now := time.Now().UTC()

	if handleErr := r.handler.Handle(ctx, msg); handleErr != nil {
		msg.RetryCount++
		status := OutboxPending
		if msg.RetryCount >= r.maxRetries {
			status = OutboxFailed
		}
		next := now.Add(time.Duration(msg.RetryCount) * time.Minute)
		logger.Warn(ctx, "outbox delivery failed",
			"message_id", msg.ID,
			"event_type", msg.EventType,
			"retry", msg.RetryCount,
			"error", handleErr,
		)

		_, err := q.Exec(ctx, `
			UPDATE sys_outbox
			SET retry_count = $1, last_error = $2, next_retry_at = $3, status = $4
			WHERE id = $5
		`, msg.RetryCount, handleErr.Error(), next, status, msg.ID)
		if err != nil {
			return fmt.Errorf("record outbox failure: %w", err)
		}
		msg.Status = status
		return nil
	}

	_, err := q.Exec(ctx, `
		UPDATE sys_outbox SET status = $1, published_at = $2 WHERE id = $3
	`, OutboxPublished, now, msg.ID)
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	msg.Status = OutboxPublished
	return nil
}

// PurgePublished deletes published messages older than the cutoff.
func (r *OutboxRelay) PurgePublished(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx,
		`DELETE FROM sys_outbox WHERE status = $1 AND published_at < $2`,
		OutboxPublished, before)
	if err != nil {
		return 0, fmt.Errorf("purge outbox: %w", err)
	}
	return tag.RowsAffected(), nil
}
