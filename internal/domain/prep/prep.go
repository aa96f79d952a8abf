// Package prep manages prep batches: products made ahead of sale whose
// ingredients are consumed when the batch completes.
package prep

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cafepos/internal/core/apperror"
	"cafepos/internal/core/id"
	"cafepos/internal/core/tx"
	"cafepos/internal/core/types"
	"cafepos/internal/domain/catalog"
	"cafepos/internal/domain/deduction"
	"cafepos/pkg/logger"
)

// Status is the batch lifecycle state.
type Status string

const (
	StatusPlanned    Status = "PLANNED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// Batch is a planned or executed production run.
type Batch struct {
	ID               id.ID      `db:"id" json:"id"`
	Name             string     `db:"name" json:"name"`
	ProductID        id.ID      `db:"product_id" json:"productId"`
	RecipeID         id.ID      `db:"recipe_id" json:"recipeId"`
	QuantityProduced int        `db:"quantity_produced" json:"quantityProduced"`
	Status           Status     `db:"status" json:"status"`
	PreparedBy       *id.ID     `db:"prepared_by" json:"preparedBy,omitempty"`
	PrepStart        *time.Time `db:"prep_start" json:"prepStart,omitempty"`
	PrepEnd          *time.Time `db:"prep_end" json:"prepEnd,omitempty"`
	Notes            string     `db:"notes" json:"notes"`
	CreatedAt        time.Time  `db:"created_at" json:"createdAt"`
}

// Usage is the expected consumption of one ingredient by a batch.
type Usage struct {
	IngredientID id.ID          `json:"ingredientId"`
	Ingredient   string         `json:"ingredient"`
	Quantity     types.Quantity `json:"quantity"`
	Unit         string         `json:"unit"`
}

// Repository persists prep batches.
type Repository interface {
	Create(ctx context.Context, batch *Batch) error
	GetByID(ctx context.Context, batchID id.ID) (*Batch, error)
	GetForUpdate(ctx context.Context, batchID id.ID) (*Batch, error)
	Update(ctx context.Context, batch *Batch) error
}

// PlanRequest is the input of Plan.
type PlanRequest struct {
	Name      string
	ProductID id.ID
	Quantity  int
	Notes     string
}

// Service runs the prep batch lifecycle.
type Service struct {
	txm     tx.Manager
	batches Repository
	recipes catalog.RecipeRepository
	engine  *deduction.Engine
	now     func() time.Time
}

// NewService creates the prep service.
func NewService(txm tx.Manager, batches Repository, recipes catalog.RecipeRepository, engine *deduction.Engine) *Service {
	return &Service{txm: txm, batches: batches, recipes: recipes, engine: engine, now: time.Now}
}

// Plan creates a PLANNED batch for a recipe-backed product.
func (s *Service) Plan(ctx context.Context, req PlanRequest, actor id.ID) (*Batch, error) {
	if req.Quantity <= 0 {
		return nil, apperror.NewValidation("quantity produced must be positive")
	}
	if err := catalog.ValidateUnits(req.Quantity); err != nil {
		return nil, err
	}
	recipe, err := s.recipes.GetByProductID(ctx, req.ProductID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewMissingRecipe(req.ProductID, "")
		}
		return nil, err
	}
	if recipe.IsEmpty() {
		return nil, apperror.NewMissingRecipe(req.ProductID, recipe.ProductName)
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = fmt.Sprintf("%s x%d", recipe.ProductName, req.Quantity)
	}
	b := &Batch{
		ID:               id.New(),
		Name:             name,
		ProductID:        req.ProductID,
		RecipeID:         recipe.ID,
		QuantityProduced: req.Quantity,
		Status:           StatusPlanned,
		PreparedBy:       actorPtr(actor),
		Notes:            req.Notes,
		CreatedAt:        s.now().UTC(),
	}
	if err := s.batches.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("create prep batch: %w", err)
	}
	logger.Info(ctx, "prep batch planned", "batch_id", b.ID, "product_id", b.ProductID, "quantity", b.QuantityProduced)
	return b, nil
}

// Get returns a batch.
func (s *Service) Get(ctx context.Context, batchID id.ID) (*Batch, error) {
	return s.batches.GetByID(ctx, batchID)
}

// Start moves a PLANNED batch to IN_PROGRESS.
func (s *Service) Start(ctx context.Context, batchID id.ID) (*Batch, error) {
	return s.transition(ctx, batchID, "start", func(ctx context.Context, b *Batch) error {
		if b.Status != StatusPlanned {
			return apperror.NewInvalidState("prep batch", string(b.Status), "start")
		}
		now := s.now().UTC()
		b.Status = StatusInProgress
		b.PrepStart = &now
		return nil
	})
}

// Cancel cancels a batch that has not completed. Nothing was deducted yet.
func (s *Service) Cancel(ctx context.Context, batchID id.ID) (*Batch, error) {
	return s.transition(ctx, batchID, "cancel", func(ctx context.Context, b *Batch) error {
		if b.Status != StatusPlanned && b.Status != StatusInProgress {
			return apperror.NewInvalidState("prep batch", string(b.Status), "cancel")
		}
		b.Status = StatusCancelled
		return nil
	})
}

// Complete consumes the batch's ingredients through the deduction engine and
// marks it COMPLETED in the same transaction.
func (s *Service) Complete(ctx context.Context, batchID id.ID, actor id.ID) (*Batch, *deduction.Result, error) {
	var res *deduction.Result
	b, err := s.transition(ctx, batchID, "complete", func(ctx context.Context, b *Batch) error {
		if b.Status != StatusPlanned && b.Status != StatusInProgress {
			return apperror.NewInvalidState("prep batch", string(b.Status), "complete")
		}
		var err error
		res, err = s.engine.DeductForPrep(ctx, deduction.PrepBatch{
			ID:        b.ID,
			Name:      b.Name,
			ProductID: b.ProductID,
			Quantity:  b.QuantityProduced,
		}, actor)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		if b.PrepStart == nil {
			b.PrepStart = &now
		}
		b.PrepEnd = &now
		b.Status = StatusCompleted
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return b, res, nil
}

// ExpectedUsage lists what the batch will consume.
func (s *Service) ExpectedUsage(ctx context.Context, batchID id.ID) ([]Usage, error) {
	b, err := s.batches.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	recipe, err := s.recipes.GetByProductID(ctx, b.ProductID)
	if err != nil {
		return nil, err
	}
	out := make([]Usage, 0, len(recipe.Lines))
	for _, l := range recipe.Lines {
		needed, err := l.Needed(b.QuantityProduced)
		if err != nil {
			return nil, err
		}
		out = append(out, Usage{
			IngredientID: l.IngredientID,
			Ingredient:   l.IngredientName,
			Quantity:     needed,
			Unit:         l.Unit,
		})
	}
	return out, nil
}

func (s *Service) transition(ctx context.Context, batchID id.ID, action string, apply func(context.Context, *Batch) error) (*Batch, error) {
	var batch *Batch
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		b, err := s.batches.GetForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		if err := apply(ctx, b); err != nil {
			return err
		}
		if err := s.batches.Update(ctx, b); err != nil {
			return fmt.Errorf("update prep batch: %w", err)
		}
		batch = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "prep batch "+action, "batch_id", batchID, "status", batch.Status)
	return batch, nil
}

func actorPtr(actor id.ID) *id.ID {
	if id.IsNil(actor) {
		return nil
	}
	return &actor
}
