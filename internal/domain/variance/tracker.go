package variance

import (
	"context"
	"fmt"
	"time"

	"cafepos/internal/core/apperror"
	"cafepos/internal/core/entity"
	"cafepos/internal/core/id"
	"cafepos/internal/core/tx"
	"cafepos/internal/core/types"
	"cafepos/internal/domain/audit"
	"cafepos/internal/domain/availability"
	"cafepos/internal/domain/events"
	"cafepos/internal/domain/inventory"
	"cafepos/pkg/logger"
)

// Tracker records waste and physical counts and computes variance.
type Tracker struct {
	txm         tx.Manager
	ingredients inventory.IngredientRepository
	ledger      inventory.LedgerRepository
	waste       WasteRepository
	counts      CountRepository
	records     RecordRepository
	events      events.Publisher
	audit       audit.Recorder
	now         func() time.Time
}

// Config wires the tracker.
type Config struct {
	TxManager   tx.Manager
	Ingredients inventory.IngredientRepository
	Ledger      inventory.LedgerRepository
	Waste       WasteRepository
	Counts      CountRepository
	Records     RecordRepository
	Events      events.Publisher // optional
	Audit       audit.Recorder   // optional
	Now         func() time.Time // optional, defaults to time.Now
}

// NewTracker creates a variance tracker.
func NewTracker(cfg Config) *Tracker {
	t := &Tracker{
		txm:         cfg.TxManager,
		ingredients: cfg.Ingredients,
		ledger:      cfg.Ledger,
		waste:       cfg.Waste,
		counts:      cfg.Counts,
		records:     cfg.Records,
		events:      cfg.Events,
		audit:       cfg.Audit,
		now:         cfg.Now,
	}
	if t.events == nil {
		t.events = events.Nop{}
	}
	if t.audit == nil {
		t.audit = audit.Nop{}
	}
	if t.now == nil {
		t.now = time.Now
	}
	return t
}

// LogWaste removes quantity from stock, writes a waste log and a matching
// ledger entry. Waste larger than current stock is rejected.
func (t *Tracker) LogWaste(ctx context.Context, req WasteRequest, actor id.ID) (*WasteLog, error) {
	if !req.Quantity.IsPositive() {
		return nil, apperror.NewValidation("waste quantity must be positive").WithDetail("field", "quantity")
	}
	if req.Type == "" {
		req.Type = WasteWaste
	}
	if !req.Type.Valid() {
		return nil, apperror.NewValidation("invalid waste type").WithDetail("value", string(req.Type))
	}

	var log *WasteLog
	err := t.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		ing, err := t.lockOne(ctx, req.IngredientID)
		if err != nil {
			return err
		}
		if ing.CurrentStock < req.Quantity {
			return apperror.NewInsufficientStock(
				fmt.Sprintf("Cannot log %s %s of '%s': only %s in stock", req.Quantity, ing.Unit, ing.Name, ing.CurrentStock),
				[]availability.Shortage{{
					Ingredient:   ing.Name,
					IngredientID: ing.ID,
					Needed:       req.Quantity,
					Available:    ing.CurrentStock,
					Shortage:     req.Quantity - ing.CurrentStock,
					Unit:         string(ing.Unit),
					Reason:       availability.ReasonInsufficientStock,
				}},
			)
		}

		remaining := ing.CurrentStock - req.Quantity
		if err := t.ingredients.UpdateStock(ctx, ing.ID, remaining); err != nil {
			return fmt.Errorf("update stock: %w", err)
		}
		ing.CurrentStock = remaining

		log = &WasteLog{
			ID:           id.New(),
			IngredientID: ing.ID,
			Quantity:     req.Quantity,
			WasteType:    req.Type,
			Reason:       req.Reason,
			Notes:        req.Notes,
			ReportedBy:   actorPtr(actor),
			WasteDate:    t.now().UTC(),
			CostImpact:   types.MustMoney("0"),
		}
		if err := t.waste.Create(ctx, log); err != nil {
			return fmt.Errorf("create waste log: %w", err)
		}

		entry := entity.NewStockTransaction(ing.ID, req.Type.LedgerType(), req.Quantity,
			entity.ReferenceWasteLog, log.ID, fmt.Sprintf("%s: %s", req.Type, req.Reason), actor)
		entry.CreatedAt = log.WasteDate
		if err := t.ledger.Append(ctx, entry); err != nil {
			return fmt.Errorf("append ledger: %w", err)
		}
		return t.publishLowStock(ctx, ing)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "waste logged",
		"ingredient_id", req.IngredientID,
		"quantity", req.Quantity,
		"waste_type", req.Type,
	)
	return log, nil
}

// RecordPhysicalCount stores a count against the current stock and, when they
// differ, sets stock to the counted value with an ADJUSTMENT entry for the
// absolute difference.
func (t *Tracker) RecordPhysicalCount(ctx context.Context, ingredientID id.ID, physical types.Quantity, notes string, actor id.ID) (*PhysicalCount, error) {
	if physical.IsNegative() {
		return nil, apperror.NewValidation("physical quantity cannot be negative").WithDetail("field", "physicalQuantity")
	}

	var count *PhysicalCount
	err := t.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		ing, err := t.lockOne(ctx, ingredientID)
		if err != nil {
			return err
		}

		theoretical := ing.CurrentStock
		delta := physical - theoretical
		pct := types.VariancePercent(delta, theoretical)

		count = &PhysicalCount{
			ID:                  id.New(),
			IngredientID:        ing.ID,
			PhysicalQuantity:    physical,
			TheoreticalQuantity: theoretical,
			Variance:            delta,
			VariancePercentage:  pct.Round(2),
			WithinTolerance:     types.WithinTolerance(pct, ing.VarianceAllowance),
			Notes:               notes,
			CountedBy:           actorPtr(actor),
			CountedAt:           t.now().UTC(),
		}
		if err := t.counts.Create(ctx, count); err != nil {
			return fmt.Errorf("create physical count: %w", err)
		}
		if delta.IsZero() {
			return nil
		}

		if err := t.ingredients.UpdateStock(ctx, ing.ID, physical); err != nil {
			return fmt.Errorf("update stock: %w", err)
		}
		ing.CurrentStock = physical

		entry := entity.NewStockTransaction(ing.ID, entity.TransactionAdjustment, delta.Abs(),
			entity.ReferencePhysicalCount, count.ID, "Stock adjustment from physical count: "+notes, actor)
		entry.CreatedAt = count.CountedAt
		if err := t.ledger.Append(ctx, entry); err != nil {
			return fmt.Errorf("append ledger: %w", err)
		}
		if err := t.audit.LogChange(ctx, inventory.AuditEntityIngredient, ing.ID, audit.ActionCount,
			map[string]any{"current_stock": audit.Change(theoretical, physical)}); err != nil {
			return fmt.Errorf("audit count: %w", err)
		}
		return t.publishLowStock(ctx, ing)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "physical count recorded",
		"ingredient_id", ingredientID,
		"physical", physical,
		"variance", count.Variance,
		"within_tolerance", count.WithinTolerance,
	)
	return count, nil
}

// CalculateVariance compares DEDUCTION entries with waste logs over a period.
// A nil to means now; a nil from means the first day of to's month.
func (t *Tracker) CalculateVariance(ctx context.Context, ingredientID id.ID, from, to *time.Time) (*Result, error) {
	end := t.now()
	if to != nil {
		end = *to
	}
	start := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, end.Location())
	if from != nil {
		start = *from
	}
	if end.Before(start) {
		return nil, apperror.NewValidation("period end is before period start")
	}

	ing, err := t.ingredients.GetByID(ctx, ingredientID)
	if err != nil {
		return nil, err
	}

	sums, err := t.ledger.SumByType(ctx, ingredientID, start, end)
	if err != nil {
		return nil, fmt.Errorf("sum ledger: %w", err)
	}
	waste, err := t.waste.Totals(ctx, WasteFilter{IngredientID: &ingredientID, From: &start, To: &end})
	if err != nil {
		return nil, fmt.Errorf("sum waste: %w", err)
	}

	theoretical := sums[entity.TransactionDeduction]
	var actual types.Quantity
	for _, w := range waste {
		actual += w.Quantity
	}
	delta := theoretical - actual
	pct := types.VariancePercent(delta, theoretical)

	return &Result{
		IngredientID:       ing.ID,
		Ingredient:         ing.Name,
		PeriodStart:        start,
		PeriodEnd:          end,
		TheoreticalUsed:    theoretical,
		ActualWaste:        actual,
		Variance:           delta,
		VariancePercentage: pct.Round(2),
		Tolerance:          ing.VarianceAllowance,
		WithinTolerance:    types.WithinTolerance(pct, ing.VarianceAllowance),
		Formula:            FormulaDeductionsVsWaste,
	}, nil
}

// RecordVariance computes the period variance and stores it.
func (t *Tracker) RecordVariance(ctx context.Context, ingredientID id.ID, from, to *time.Time) (*Record, error) {
	res, err := t.CalculateVariance(ctx, ingredientID, from, to)
	if err != nil {
		return nil, err
	}
	rec := &Record{
		ID:                 id.New(),
		IngredientID:       res.IngredientID,
		PeriodStart:        res.PeriodStart,
		PeriodEnd:          res.PeriodEnd,
		TheoreticalUsed:    res.TheoreticalUsed,
		ActualWaste:        res.ActualWaste,
		Variance:           res.Variance,
		VariancePercentage: res.VariancePercentage,
		WithinTolerance:    res.WithinTolerance,
		CreatedAt:          t.now().UTC(),
	}
	if err := t.records.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create variance record: %w", err)
	}
	logger.Info(ctx, "variance recorded", "ingredient_id", ingredientID, "variance_pct", rec.VariancePercentage)
	return rec, nil
}

// LowStockIngredients returns active ingredients below min_stock, lowest stock first.
func (t *Tracker) LowStockIngredients(ctx context.Context) ([]*inventory.Ingredient, error) {
	return t.ingredients.ListLowStock(ctx)
}

func (t *Tracker) lockOne(ctx context.Context, ingredientID id.ID) (*inventory.Ingredient, error) {
	locked, err := t.ingredients.LockForUpdate(ctx, []id.ID{ingredientID})
	if err != nil {
		return nil, fmt.Errorf("lock ingredient: %w", err)
	}
	ing, ok := locked[ingredientID]
	if !ok {
		return nil, apperror.NewNotFound("ingredient", ingredientID)
	}
	return ing, nil
}

func (t *Tracker) publishLowStock(ctx context.Context, ing *inventory.Ingredient) error {
	if !ing.IsLowStock() {
		return nil
	}
	return t.events.Publish(ctx, events.NewLowStock(events.LowStockPayload{
		IngredientID: ing.ID,
		Ingredient:   ing.Name,
		Unit:         string(ing.Unit),
		CurrentStock: ing.CurrentStock,
		MinStock:     ing.MinStock,
	}))
}

func actorPtr(actor id.ID) *id.ID {
	if id.IsNil(actor) {
		return nil
	}
	return &actor
}
