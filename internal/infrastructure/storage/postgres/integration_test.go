//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"cafepos/internal/app"
	"cafepos/internal/config"
	"cafepos/internal/core/apperror"
	"cafepos/internal/core/entity"
	"cafepos/internal/core/id"
	"cafepos/internal/core/types"
	"cafepos/internal/domain/audit"
	"cafepos/internal/domain/catalog"
	"cafepos/internal/domain/events"
	"cafepos/internal/domain/inventory"
	"cafepos/internal/domain/orders"
	"cafepos/internal/domain/variance"
	"cafepos/internal/infrastructure/storage/postgres"
	"cafepos/pkg/logger"
)

var testApp *app.App

func TestMain(m *testing.M) {
	ctx := context.Background()

	pgC, err := tcPostgres.Run(ctx, "postgres:16-alpine",
		tcPostgres.WithDatabase("cafepos_test"),
		tcPostgres.WithUsername("cafepos"),
		tcPostgres.WithPassword("cafepos"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		fmt.Printf("start postgres: %v\n", err)
		os.Exit(1)
	}

	code := func() int {
		defer func() { _ = pgC.Terminate(ctx) }()

		dsn, err := pgC.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			fmt.Printf("connection string: %v\n", err)
			return 1
		}
		testApp, err = app.New(ctx, config.Config{
			DatabaseURL:      dsn,
			JWTSecret:        "integration-secret",
			IdempotencyTTL:   time.Hour,
			ForecastCacheTTL: time.Minute,
		}, logger.Nop())
		if err != nil {
			fmt.Printf("init app: %v\n", err)
			return 1
		}
		defer testApp.Close()

		if err := migrate(ctx, testApp.Pool); err != nil {
			fmt.Printf("migrate: %v\n", err)
			return 1
		}
		return m.Run()
	}()
	os.Exit(code)
}

// migrate applies the Up section of the schema.
func migrate(ctx context.Context, pool *postgres.Pool) error {
	raw, err := os.ReadFile("../../../../migrations/0001_init.sql")
	if err != nil {
		return err
	}
	up, _, _ := strings.Cut(string(raw), "-- +goose Down")
	_, err = pool.Exec(ctx, up)
	return err
}

type menu struct {
	milk  *inventory.Ingredient
	latte *catalog.Product
}

// newMenu creates a latte taking 150 ml from 1000 ml of milk, under unique names.
func newMenu(t *testing.T) menu {
	t.Helper()
	ctx := context.Background()
	suffix := id.New().String()[:8]

	milk := inventory.NewIngredient("Milk "+suffix, inventory.UnitMilliliter, types.NewQuantityFromInt(1000), types.NewQuantityFromInt(200))
	require.NoError(t, testApp.Inventory.Create(ctx, milk))

	latte := catalog.NewProduct("Latte "+suffix, "Coffee", types.MustMoney("150"))
	recipe := &catalog.Recipe{Lines: []catalog.RecipeLine{{IngredientID: milk.ID, QuantityPerUnit: types.NewQuantityFromInt(150)}}}
	require.NoError(t, testApp.Catalog.CreateProduct(ctx, latte, recipe))

	return menu{milk: milk, latte: latte}
}

func (m menu) stock(t *testing.T) types.Quantity {
	t.Helper()
	ing, err := testApp.Inventory.Get(context.Background(), m.milk.ID)
	require.NoError(t, err)
	return ing.CurrentStock
}

func (m menu) order(qty int) orders.Request {
	return orders.Request{Items: []orders.ItemRequest{{ProductID: m.latte.ID, Quantity: qty}}}
}

func TestCheckout_DeductsStockAndWritesLedgerAndOutbox(t *testing.T) {
	ctx := context.Background()
	m := newMenu(t)

	receipt, err := testApp.Orders.Checkout(ctx, m.order(2), id.New())
	require.NoError(t, err)
	assert.Equal(t, orders.StatusInProgress, receipt.Order.Status)
	assert.Equal(t, types.NewQuantityFromInt(700), m.stock(t))

	history, err := testApp.Inventory.History(ctx, m.milk.ID, entity.LedgerFilter{})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, entity.TransactionDeduction, history[0].Type)
	assert.Equal(t, types.NewQuantityFromInt(300), history[0].Quantity)

	var count int
	err = testApp.Pool.QueryRow(ctx,
		`SELECT count(*) FROM sys_outbox WHERE aggregate_id = $1 AND event_type = $2`,
		receipt.Order.ID, events.TypeOrderPaid).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCheckout_ShortageLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	m := newMenu(t)

	_, err := testApp.Orders.Checkout(ctx, m.order(7), id.New())
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))
	assert.Equal(t, types.NewQuantityFromInt(1000), m.stock(t))

	history, err := testApp.Inventory.History(ctx, m.milk.ID, entity.LedgerFilter{})
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestCheckout_ConcurrentOrdersNeverOversell(t *testing.T) {
	ctx := context.Background()
	m := newMenu(t)

	const attempts = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := testApp.Orders.Checkout(ctx, m.order(1), id.New())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case apperror.HasCode(err, apperror.CodeInsufficientStock):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 6, succeeded)
	assert.Equal(t, attempts-6, rejected)
	assert.Equal(t, types.NewQuantityFromInt(100), m.stock(t))
}

func TestIngredientStockConstraint(t *testing.T) {
	ctx := context.Background()
	m := newMenu(t)

	_, err := testApp.Pool.Exec(ctx, `UPDATE ingredients SET current_stock = -1 WHERE id = $1`, m.milk.ID)
	assert.Error(t, err)
}

func TestLogWaste_WritesLedger(t *testing.T) {
	ctx := context.Background()
	m := newMenu(t)

	log, err := testApp.Variance.LogWaste(ctx, variance.WasteRequest{
		IngredientID: m.milk.ID,
		Quantity:     types.NewQuantityFromInt(50),
		Type:         variance.WasteSpoilage,
		Reason:       "expired carton",
	}, id.New())
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromInt(950), m.stock(t))

	history, err := testApp.Inventory.History(ctx, m.milk.ID, entity.LedgerFilter{})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, log.ID, *history[0].ReferenceID)
}

func TestOutboxRelay_DeliversEachMessageOnce(t *testing.T) {
	ctx := context.Background()
	m := newMenu(t)
	_, err := testApp.Orders.Checkout(ctx, m.order(1), id.New())
	require.NoError(t, err)

	var (
		mu   sync.Mutex
		seen = map[id.ID]int{}
	)
	relay := postgres.NewOutboxRelay(testApp.TxM, postgres.OutboxHandlerFunc(func(_ context.Context, msg *postgres.OutboxMessage) error {
		mu.Lock()
		defer mu.Unlock()
		seen[msg.ID]++
		return nil
	}), 1000)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := relay.ProcessBatch(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.NotEmpty(t, seen)
	for msgID, n := range seen {
		assert.Equal(t, 1, n, "message %s delivered %d times", msgID, n)
	}

	n, err := relay.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIdempotencyStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := testApp.Idem
	key := "checkout-" + id.New().String()

	replay, err := store.Acquire(ctx, key, "user-1", "POST /api/v1/orders/checkout", "hash-a")
	require.NoError(t, err)
	assert.Nil(t, replay)

	_, err = store.Acquire(ctx, key, "user-1", "POST /api/v1/orders/checkout", "hash-a")
	assert.True(t, apperror.HasCode(err, apperror.CodeIdempotency))

	require.NoError(t, store.Complete(ctx, key, 201, "application/json", []byte(`{"ok":true}`)))

	replay, err = store.Acquire(ctx, key, "user-1", "POST /api/v1/orders/checkout", "hash-a")
	require.NoError(t, err)
	require.NotNil(t, replay)
	assert.Equal(t, 201, replay.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(replay.Body))

	_, err = store.Acquire(ctx, key, "user-1", "POST /api/v1/orders/checkout", "hash-b")
	assert.Error(t, err)
}

func TestAuditService_CompressesLargeChanges(t *testing.T) {
	ctx := context.Background()
	entityID := id.New()
	big := strings.Repeat("x", postgres.DefaultCompressThreshold*2)

	err := testApp.TxM.RunInTransaction(ctx, func(ctx context.Context) error {
		return testApp.Audit.LogChange(ctx, "ingredient", entityID, audit.ActionUpdate, map[string]any{"notes": big})
	})
	require.NoError(t, err)

	entries, err := testApp.Audit.History(ctx, "ingredient", entityID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, postgres.CompressionZstd, entries[0].CompressionAlgo)
	assert.Contains(t, string(entries[0].Changes), big)
}
