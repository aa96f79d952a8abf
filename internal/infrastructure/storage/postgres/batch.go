package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

// CopyFrom bulk inserts rows with the COPY protocol. It must run inside a
// transaction so the rows commit together with the caller's other writes.
func (m *TxManager) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	t, err := m.RequireTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", table, err)
	}
	n, err := t.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", table, err)
	}
	return n, nil
}

// Batch collects statements for a single round trip.
type Batch struct {
	batch pgx.Batch
}

// Queue adds a raw statement.
func (b *Batch) Queue(sql string, args ...any) {
	b.batch.Queue(sql, args...)
}

// QueueBuilder adds a statement built with squirrel.
func (b *Batch) QueueBuilder(q squirrel.Sqlizer) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build batch statement: %w", err)
	}
	b.batch.Queue(sql, args...)
	return nil
}

// Len returns the number of queued statements.
func (b *Batch) Len() int {
	return b.batch.Len()
}

// ExecBatch sends the batch inside the transaction in ctx and checks every result.
func (m *TxManager) ExecBatch(ctx context.Context, b *Batch) error {
	if b.Len() == 0 {
		return nil
	}
	t, err := m.RequireTx(ctx)
	if err != nil {
		return fmt.Errorf("exec batch: %w", err)
	}

	results := t.SendBatch(ctx, &b.batch)
	for i := 0; i < b.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("batch statement %d: %w", i, err)
		}
	}
	return results.Close()
}
