package inventory

import (
	"context"
	"fmt"

	"cafepos/internal/core/apperror"
	"cafepos/internal/core/entity"
	"cafepos/internal/core/id"
	"cafepos/internal/core/tx"
	"cafepos/internal/domain/audit"
	"cafepos/pkg/logger"
)

// AuditEntityIngredient is the audit entity type for ingredients.
const AuditEntityIngredient = "ingredient"

// Service provides read access to ingredients and their ledger, and the
// cashier availability override.
type Service struct {
	txm         tx.Manager
	ingredients IngredientRepository
	ledger      LedgerRepository
	audit       audit.Recorder
}

// NewService creates a new inventory service. A nil recorder disables auditing.
func NewService(txm tx.Manager, ingredients IngredientRepository, ledger LedgerRepository, rec audit.Recorder) *Service {
	if rec == nil {
		rec = audit.Nop{}
	}
	return &Service{
		txm:         txm,
		ingredients: ingredients,
		ledger:      ledger,
		audit:       rec,
	}
}

// Get returns one ingredient.
func (s *Service) Get(ctx context.Context, ingredientID id.ID) (*Ingredient, error) {
	return s.ingredients.GetByID(ctx, ingredientID)
}

// List returns ingredients matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Ingredient, error) {
	return s.ingredients.List(ctx, filter)
}

// Create validates and stores a new ingredient.
func (s *Service) Create(ctx context.Context, ing *Ingredient) error {
	if err := ing.Validate(ctx); err != nil {
		return err
	}
	if err := s.ingredients.Create(ctx, ing); err != nil {
		return fmt.Errorf("create ingredient: %w", err)
	}
	logger.Info(ctx, "ingredient created", "ingredient_id", ing.ID, "name", ing.Name)
	return nil
}

// SetAvailability sets the manual availability flag. Stock is not touched.
func (s *Service) SetAvailability(ctx context.Context, ingredientID id.ID, available bool) (*Ingredient, error) {
	var result *Ingredient
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		locked, err := s.ingredients.LockForUpdate(ctx, []id.ID{ingredientID})
		if err != nil {
			return err
		}
		ing, ok := locked[ingredientID]
		if !ok {
			return apperror.NewNotFound("ingredient", ingredientID)
		}
		result = ing
		if ing.IsAvailable == available {
			return nil
		}

		if err := s.ingredients.SetAvailability(ctx, ingredientID, available); err != nil {
			return fmt.Errorf("set availability: %w", err)
		}
		if err := s.audit.LogChange(ctx, AuditEntityIngredient, ingredientID, audit.ActionUpdate,
			map[string]any{"is_available": audit.Change(ing.IsAvailable, available)}); err != nil {
			return fmt.Errorf("audit availability: %w", err)
		}
		ing.IsAvailable = available
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "ingredient availability set",
		"ingredient_id", ingredientID,
		"available", available,
	)
	return result, nil
}

// ToggleAvailability flips the manual availability flag.
func (s *Service) ToggleAvailability(ctx context.Context, ingredientID id.ID) (*Ingredient, error) {
	ing, err := s.ingredients.GetByID(ctx, ingredientID)
	if err != nil {
		return nil, err
	}
	return s.SetAvailability(ctx, ingredientID, !ing.IsAvailable)
}

// History returns ledger entries for an ingredient, newest first.
func (s *Service) History(ctx context.Context, ingredientID id.ID, filter entity.LedgerFilter) ([]entity.StockTransaction, error) {
	if _, err := s.ingredients.GetByID(ctx, ingredientID); err != nil {
		return nil, err
	}
	filter.IngredientID = &ingredientID
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	return s.ledger.List(ctx, filter)
}
