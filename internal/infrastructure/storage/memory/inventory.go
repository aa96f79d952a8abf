package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"cafepos/internal/core/apperror"
	"cafepos/internal/core/entity"
	"cafepos/internal/core/id"
	"cafepos/internal/core/types"
	"cafepos/internal/domain/inventory"
)

// IngredientRepo implements inventory.IngredientRepository.
type IngredientRepo struct{ s *Store }

// Ingredients returns the ingredient repository.
func (s *Store) Ingredients() *IngredientRepo { return &IngredientRepo{s: s} }

var _ inventory.IngredientRepository = (*IngredientRepo)(nil)

func (r *IngredientRepo) GetByID(ctx context.Context, ingredientID id.ID) (*inventory.Ingredient, error) {
	var out *inventory.Ingredient
	r.s.read(ctx, func(d *data) {
		if v, ok := d.ingredients[ingredientID]; ok {
			out = &v
		}
	})
	if out == nil {
		return nil, apperror.NewNotFound("ingredient", ingredientID)
	}
	return out, nil
}

func (r *IngredientRepo) GetByIDs(ctx context.Context, ids []id.ID) (map[id.ID]*inventory.Ingredient, error) {
	out := make(map[id.ID]*inventory.Ingredient, len(ids))
	r.s.read(ctx, func(d *data) {
		for _, ingID := range ids {
			if v, ok := d.ingredients[ingID]; ok {
				out[ingID] = &v
			}
		}
	})
	return out, nil
}

func (r *IngredientRepo) LockForUpdate(ctx context.Context, ids []id.ID) (map[id.ID]*inventory.Ingredient, error) {
	if txFrom(ctx) == nil {
		return nil, fmt.Errorf("lock ingredients: no transaction in context")
	}
	return r.GetByIDs(ctx, ids)
}

func (r *IngredientRepo) List(ctx context.Context, filter inventory.ListFilter) ([]*inventory.Ingredient, error) {
	var out []*inventory.Ingredient
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	r.s.read(ctx, func(d *data) {
		for _, v := range d.ingredients {
			v := v
			if filter.OnlyActive && !v.IsActive {
				continue
			}
			if filter.OnlyLow && !v.IsLowStock() {
				continue
			}
			if filter.Available != nil && v.IsAvailable != *filter.Available {
				continue
			}
			if search != "" && !strings.Contains(strings.ToLower(v.Name), search) {
				continue
			}
			out = append(out, &v)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return paginate(out, filter.Limit, filter.Offset), nil
}

func (r *IngredientRepo) ListLowStock(ctx context.Context) ([]*inventory.Ingredient, error) {
	var out []*inventory.Ingredient
	r.s.read(ctx, func(d *data) {
		for _, v := range d.ingredients {
			v := v
			if v.IsActive && v.IsLowStock() {
				out = append(out, &v)
			}
		}
	})
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CurrentStock == out[j].CurrentStock {
			return out[i].Name < out[j].Name
		}
		return out[i].CurrentStock < out[j].CurrentStock
	})
	return out, nil
}

func (r *IngredientRepo) Create(ctx context.Context, ing *inventory.Ingredient) error {
	return r.s.write(ctx, func(d *data) error {
		for _, v := range d.ingredients {
			if strings.EqualFold(v.Name, ing.Name) {
				return apperror.NewDuplicate("ingredient", "name", ing.Name)
			}
		}
		if id.IsNil(ing.ID) {
			ing.ID = id.New()
		}
		d.ingredients[ing.ID] = *ing
		return nil
	})
}

func (r *IngredientRepo) UpdateStock(ctx context.Context, ingredientID id.ID, stock types.Quantity) error {
	return r.s.write(ctx, func(d *data) error {
		v, ok := d.ingredients[ingredientID]
		if !ok {
			return apperror.NewNotFound("ingredient", ingredientID)
		}
		if stock.IsNegative() {
			return fmt.Errorf("ingredient %s: current_stock cannot be negative", ingredientID)
		}
		v.CurrentStock = stock
		v.UpdatedAt = time.Now().UTC()
		d.ingredients[ingredientID] = v
		return nil
	})
}

func (r *IngredientRepo) SetAvailability(ctx context.Context, ingredientID id.ID, available bool) error {
	return r.s.write(ctx, func(d *data) error {
		v, ok := d.ingredients[ingredientID]
		if !ok {
			return apperror.NewNotFound("ingredient", ingredientID)
		}
		v.IsAvailable = available
		v.UpdatedAt = time.Now().UTC()
		d.ingredients[ingredientID] = v
		return nil
	})
}

// LedgerRepo implements inventory.LedgerRepository.
type LedgerRepo struct{ s *Store }

// Ledger returns the ledger repository.
func (s *Store) Ledger() *LedgerRepo { return &LedgerRepo{s: s} }

var _ inventory.LedgerRepository = (*LedgerRepo)(nil)

func (r *LedgerRepo) Append(ctx context.Context, entries ...entity.StockTransaction) error {
	return r.s.write(ctx, func(d *data) error {
		for _, e := range entries {
			if !e.Type.Valid() {
				return fmt.Errorf("invalid transaction type %q", e.Type)
			}
			if !e.Quantity.IsPositive() {
				return fmt.Errorf("ledger quantity must be positive")
			}
		}
		d.ledger = append(d.ledger, entries...)
		return nil
	})
}

func (r *LedgerRepo) List(ctx context.Context, filter entity.LedgerFilter) ([]entity.StockTransaction, error) {
	var out []entity.StockTransaction
	r.s.read(ctx, func(d *data) {
		for i := len(d.ledger) - 1; i >= 0; i-- {
			e := d.ledger[i]
			if matchLedger(e, filter.IngredientID, filter.From, filter.To) && matchTypes(e.Type, filter.Types) {
				out = append(out, e)
			}
		}
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, filter.Limit, filter.Offset), nil
}

func (r *LedgerRepo) SumByType(ctx context.Context, ingredientID id.ID, from, to time.Time) (map[entity.TransactionType]types.Quantity, error) {
	out := make(map[entity.TransactionType]types.Quantity)
	r.s.read(ctx, func(d *data) {
		for _, e := range d.ledger {
			if matchLedger(e, &ingredientID, &from, &to) {
				out[e.Type] += e.Quantity
			}
		}
	})
	return out, nil
}

// All returns every ledger entry in insertion order.
func (r *LedgerRepo) All() []entity.StockTransaction {
	var out []entity.StockTransaction
	r.s.read(context.Background(), func(d *data) { out = append(out, d.ledger...) })
	return out
}

func matchLedger(e entity.StockTransaction, ingredientID *id.ID, from, to *time.Time) bool {
	if ingredientID != nil && e.IngredientID != *ingredientID {
		return false
	}
	if from != nil && e.CreatedAt.Before(*from) {
		return false
	}
	if to != nil && e.CreatedAt.After(*to) {
		return false
	}
	return true
}

func matchTypes(t entity.TransactionType, want []entity.TransactionType) bool {
	if len(want) == 0 {
		return true
	}
	for _, v := range want {
		if v == t {
			return true
		}
	}
	return false
}
