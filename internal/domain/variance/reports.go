package variance

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"cafepos/internal/core/entity"
	"cafepos/internal/core/id"
	"cafepos/internal/core/tx"
	"cafepos/internal/domain/inventory"
)

// Report defaults.
const (
	DefaultReportDays       = 30
	DefaultCriticalPercent  = 25
	recentWasteLimit        = 20
	latestRecordsPerProduct = 5
	bestPerformers          = 3
)

// CriticalLowStock returns active ingredients whose stock is below
// thresholdPercent of min_stock, ordered by that ratio ascending.
// Ingredients without a min_stock are never critical.
func (t *Tracker) CriticalLowStock(ctx context.Context, thresholdPercent decimal.Decimal) ([]*inventory.Ingredient, error) {
	if !thresholdPercent.IsPositive() {
		thresholdPercent = decimal.NewFromInt(DefaultCriticalPercent)
	}
	all, err := t.ingredients.List(ctx, inventory.ListFilter{OnlyActive: true})
	if err != nil {
		return nil, err
	}

	var out []*inventory.Ingredient
	for _, ing := range all {
		if !ing.MinStock.IsPositive() {
			continue
		}
		if ing.StockRatio().LessThan(thresholdPercent) {
			out = append(out, ing)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StockRatio().LessThan(out[j].StockRatio())
	})
	return out, nil
}

// UsageReport groups an ingredient's ledger entries and waste logs over the
// last days days.
func (t *Tracker) UsageReport(ctx context.Context, ingredientID id.ID, days int) (*UsageReport, error) {
	if days <= 0 {
		days = DefaultReportDays
	}
	ing, err := t.ingredients.GetByID(ctx, ingredientID)
	if err != nil {
		return nil, err
	}

	end := t.now()
	start := end.AddDate(0, 0, -days)

	var (
		entries []entity.StockTransaction
		waste   map[WasteType]Totals
	)
	err = tx.Snapshot(ctx, t.txm, func(ctx context.Context) error {
		var err error
		entries, err = t.ledger.List(ctx, entity.LedgerFilter{IngredientID: &ingredientID, From: &start, To: &end})
		if err != nil {
			return fmt.Errorf("list ledger: %w", err)
		}
		waste, err = t.waste.Totals(ctx, WasteFilter{IngredientID: &ingredientID, From: &start, To: &end})
		if err != nil {
			return fmt.Errorf("sum waste: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	byType := make(map[entity.TransactionType]Totals)
	for _, e := range entries {
		tot := byType[e.Type]
		tot.Count++
		tot.Quantity += e.Quantity
		byType[e.Type] = tot
	}

	return &UsageReport{
		IngredientID:       ing.ID,
		Ingredient:         ing.Name,
		Unit:               string(ing.Unit),
		PeriodDays:         days,
		PeriodStart:        start,
		PeriodEnd:          end,
		TransactionsByType: byType,
		WasteByType:        waste,
		TotalTransactions:  len(entries),
		CurrentStock:       ing.CurrentStock,
	}, nil
}

// WasteReport returns the latest waste logs and per-type totals for the last
// days days, optionally restricted to one waste type.
func (t *Tracker) WasteReport(ctx context.Context, days int, wasteType *WasteType) (*WasteReport, error) {
	if days <= 0 {
		days = DefaultReportDays
	}
	end := t.now()
	start := end.AddDate(0, 0, -days)
	filter := WasteFilter{Type: wasteType, From: &start, To: &end}

	totals, err := t.waste.Totals(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("sum waste: %w", err)
	}
	filter.Limit = recentWasteLimit
	recent, err := t.waste.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list waste: %w", err)
	}

	rep := &WasteReport{
		PeriodDays: days,
		WasteType:  wasteType,
		Recent:     recent,
		ByType:     totals,
	}
	for _, tot := range totals {
		rep.Total.Count += tot.Count
		rep.Total.Quantity += tot.Quantity
	}
	return rep, nil
}

// VarianceAnalysis summarizes stored variance records of the last days days
// per active ingredient.
func (t *Tracker) VarianceAnalysis(ctx context.Context, days int) (*Analysis, error) {
	if days <= 0 {
		days = DefaultReportDays
	}
	since := t.now().AddDate(0, 0, -days)

	var (
		records     []Record
		ingredients []*inventory.Ingredient
	)
	err := tx.Snapshot(ctx, t.txm, func(ctx context.Context) error {
		var err error
		if records, err = t.records.ListSince(ctx, since); err != nil {
			return fmt.Errorf("list variance records: %w", err)
		}
		ingredients, err = t.ingredients.List(ctx, inventory.ListFilter{OnlyActive: true})
		return err
	})
	if err != nil {
		return nil, err
	}

	byIngredient := make(map[id.ID][]Record)
	for _, r := range records {
		byIngredient[r.IngredientID] = append(byIngredient[r.IngredientID], r)
	}

	out := &Analysis{
		PeriodDays:       days,
		Ingredients:      []IngredientVariance{},
		OverallAverage:   decimal.Zero,
		Best:             []IngredientVariance{},
		OutsideTolerance: []IngredientVariance{},
	}
	for _, ing := range ingredients {
		recs := byIngredient[ing.ID]
		if len(recs) == 0 {
			continue
		}
		out.Ingredients = append(out.Ingredients, summarize(ing, recs))
	}
	if len(out.Ingredients) == 0 {
		return out, nil
	}

	sort.SliceStable(out.Ingredients, func(i, j int) bool {
		return out.Ingredients[i].AvgVariance.GreaterThan(out.Ingredients[j].AvgVariance)
	})

	sum := decimal.Zero
	for _, iv := range out.Ingredients {
		sum = sum.Add(iv.AvgVariance)
		if iv.AvgVariance.Abs().GreaterThan(iv.VarianceAllowance) {
			out.OutsideTolerance = append(out.OutsideTolerance, iv)
		}
	}
	out.OverallAverage = sum.Div(decimal.NewFromInt(int64(len(out.Ingredients)))).Round(2)

	best := make([]IngredientVariance, len(out.Ingredients))
	copy(best, out.Ingredients)
	sort.SliceStable(best, func(i, j int) bool {
		return best[i].AvgVariance.Abs().LessThan(best[j].AvgVariance.Abs())
	})
	if len(best) > bestPerformers {
		best = best[:bestPerformers]
	}
	out.Best = best
	return out, nil
}

// summarize expects records newest first.
func summarize(ing *inventory.Ingredient, recs []Record) IngredientVariance {
	iv := IngredientVariance{
		IngredientID:      ing.ID,
		Ingredient:        ing.Name,
		RecordCount:       len(recs),
		MaxVariance:       recs[0].VariancePercentage,
		MinVariance:       recs[0].VariancePercentage,
		VarianceAllowance: ing.VarianceAllowance,
	}
	sum := decimal.Zero
	for _, r := range recs {
		sum = sum.Add(r.VariancePercentage)
		if r.VariancePercentage.GreaterThan(iv.MaxVariance) {
			iv.MaxVariance = r.VariancePercentage
		}
		if r.VariancePercentage.LessThan(iv.MinVariance) {
			iv.MinVariance = r.VariancePercentage
		}
		if r.WithinTolerance {
			iv.WithinCount++
		}
	}
	n := decimal.NewFromInt(int64(len(recs)))
	iv.AvgVariance = sum.Div(n).Round(2)
	iv.WithinPercentage = decimal.NewFromInt(int64(iv.WithinCount)).Mul(decimal.NewFromInt(100)).Div(n).Round(2)

	latest := recs
	if len(latest) > latestRecordsPerProduct {
		latest = latest[:latestRecordsPerProduct]
	}
	iv.Latest = append([]Record(nil), latest...)
	return iv
}

