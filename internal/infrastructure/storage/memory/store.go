// Package memory provides an in-process implementation of every repository
// and of tx.Manager. It backs domain tests and local runs without PostgreSQL.
//
// Transactions are serialized by a single mutex, which also stands in for
// row locks: LockForUpdate inside a transaction is trivially exclusive. A
// transaction works on a private copy of the state that replaces the
// committed state only when fn succeeds, so readers outside it never see
// its intermediate writes. Writes outside a transaction commit at once.
package memory

import (
	"context"
	"sync"

	"cafepos/internal/core/entity"
	"cafepos/internal/core/id"
	"cafepos/internal/core/tx"
	"cafepos/internal/domain/audit"
	"cafepos/internal/domain/auth"
	"cafepos/internal/domain/catalog"
	"cafepos/internal/domain/events"
	"cafepos/internal/domain/inventory"
	"cafepos/internal/domain/orders"
	"cafepos/internal/domain/prep"
	"cafepos/internal/domain/variance"
)

type txKey struct{}

// txState is the working copy of one transaction.
type txState struct {
	mu   sync.Mutex
	work data
}

// AuditEntry is a recorded audit change.
type AuditEntry struct {
	EntityType string
	EntityID   id.ID
	Action     string
	Changes    map[string]any
}

// data is everything a transaction may need to roll back.
type data struct {
	ingredients map[id.ID]inventory.Ingredient
	ledger      []entity.StockTransaction
	products    map[id.ID]catalog.Product
	recipes     map[id.ID]catalog.Recipe // keyed by product id
	waste       []variance.WasteLog
	counts      []variance.PhysicalCount
	records     []variance.Record
	orders      map[id.ID]orders.Order
	payments    map[id.ID]orders.Payment // keyed by order id
	batches     map[id.ID]prep.Batch
	users       map[id.ID]auth.User
	tokens      map[string]auth.RefreshToken
	events      []events.Event
	audit       []AuditEntry
}

func newData() data {
	return data{
		ingredients: make(map[id.ID]inventory.Ingredient),
		products:    make(map[id.ID]catalog.Product),
		recipes:     make(map[id.ID]catalog.Recipe),
		orders:      make(map[id.ID]orders.Order),
		payments:    make(map[id.ID]orders.Payment),
		batches:     make(map[id.ID]prep.Batch),
		users:       make(map[id.ID]auth.User),
		tokens:      make(map[string]auth.RefreshToken),
	}
}

// clone copies maps; stored values are replaced, never mutated in place, so
// a shallow copy per entry is enough. Slices are append-only and are
// restored by length.
func (d data) clone() data {
	c := data{
		ingredients: make(map[id.ID]inventory.Ingredient, len(d.ingredients)),
		ledger:      d.ledger[:len(d.ledger):len(d.ledger)],
		products:    make(map[id.ID]catalog.Product, len(d.products)),
		recipes:     make(map[id.ID]catalog.Recipe, len(d.recipes)),
		waste:       d.waste[:len(d.waste):len(d.waste)],
		counts:      d.counts[:len(d.counts):len(d.counts)],
		records:     d.records[:len(d.records):len(d.records)],
		orders:      make(map[id.ID]orders.Order, len(d.orders)),
		payments:    make(map[id.ID]orders.Payment, len(d.payments)),
		batches:     make(map[id.ID]prep.Batch, len(d.batches)),
		users:       make(map[id.ID]auth.User, len(d.users)),
		tokens:      make(map[string]auth.RefreshToken, len(d.tokens)),
		events:      d.events[:len(d.events):len(d.events)],
		audit:       d.audit[:len(d.audit):len(d.audit)],
	}
	for k, v := range d.ingredients {
		c.ingredients[k] = v
	}
	for k, v := range d.products {
		c.products[k] = v
	}
	for k, v := range d.recipes {
		c.recipes[k] = v
	}
	for k, v := range d.orders {
		c.orders[k] = v
	}
	for k, v := range d.payments {
		c.payments[k] = v
	}
	for k, v := range d.batches {
		c.batches[k] = v
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.tokens {
		c.tokens[k] = v
	}
	return c
}

// Store holds all in-memory state.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	d    data
}

// New creates an empty store.
func New() *Store {
	return &Store{d: newData()}
}

var _ tx.Manager = (*Store)(nil)

// RunInTransaction runs fn exclusively. Nested calls join the outer
// transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.run(ctx, fn, true)
}

// ReadOnly runs fn against a private copy and discards it.
func (s *Store) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.run(ctx, fn, false)
}

func (s *Store) run(ctx context.Context, fn func(ctx context.Context) error, commit bool) error {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	st := &txState{work: s.d.clone()}
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, st)); err != nil {
		return err
	}
	if commit {
		s.mu.Lock()
		s.d = st.work
		s.mu.Unlock()
	}
	return nil
}

func txFrom(ctx context.Context) *txState {
	st, _ := ctx.Value(txKey{}).(*txState)
	return st
}

// read sees the transaction's working copy inside a transaction and the
// committed state otherwise.
func (s *Store) read(ctx context.Context, fn func(d *data)) {
	if st := txFrom(ctx); st != nil {
		st.mu.Lock()
		defer st.mu.Unlock()
		fn(&st.work)
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&s.d)
}

// write outside a transaction waits for running transactions so their
// commit cannot overwrite it.
func (s *Store) write(ctx context.Context, fn func(d *data) error) error {
	if st := txFrom(ctx); st != nil {
		st.mu.Lock()
		defer st.mu.Unlock()
		return fn(&st.work)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.d)
}

// Events returns every event published so far.
func (s *Store) Events() []events.Event {
	var out []events.Event
	s.read(context.Background(), func(d *data) { out = append(out, d.events...) })
	return out
}

// AuditEntries returns every audit entry recorded so far.
func (s *Store) AuditEntries() []AuditEntry {
	var out []AuditEntry
	s.read(context.Background(), func(d *data) { out = append(out, d.audit...) })
	return out
}

// Publish implements events.Publisher.
func (s *Store) Publish(ctx context.Context, event events.Event) error {
	return s.write(ctx, func(d *data) error {
		d.events = append(d.events, event)
		return nil
	})
}

// LogChange implements audit.Recorder.
func (s *Store) LogChange(ctx context.Context, entityType string, entityID id.ID, action audit.Action, changes map[string]any) error {
	return s.write(ctx, func(d *data) error {
		d.audit = append(d.audit, AuditEntry{
			EntityType: entityType,
			EntityID:   entityID,
			Action:     string(action),
			Changes:    changes,
		})
		return nil
	})
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return []T{}
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
