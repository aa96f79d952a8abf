// Package deduction turns sold or prepared product quantities into atomic
// ingredient decrements and ledger entries.
//
// A deduction runs VALIDATING -> COMMITTING -> COMMITTED inside one
// transaction, or ends ABORTED with nothing written. All ingredient rows
// touched are locked before validation, so the stock read in validation is
// the stock written in commit.
package deduction

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"cafepos/internal/core/apperror"
	"cafepos/internal/core/entity"
	"cafepos/internal/core/id"
	"cafepos/internal/core/tx"
	"cafepos/internal/core/types"
	"cafepos/internal/domain/availability"
	"cafepos/internal/domain/catalog"
	"cafepos/internal/domain/events"
	"cafepos/internal/domain/inventory"
	"cafepos/pkg/logger"
)

var tracer = otel.Tracer("cafepos/deduction")

// State is the deduction state machine position.
type State string

const (
	StateValidating State = "VALIDATING"
	StateCommitting State = "COMMITTING"
	StateCommitted  State = "COMMITTED"
	StateAborted    State = "ABORTED"
)

// Line is one product line of an order or batch.
type Line struct {
	ProductID id.ID
	Quantity  int
}

// Order is the part of an order the engine needs.
type Order struct {
	ID     id.ID
	Number string
	Items  []Line
}

// PrepBatch is the part of a prep batch the engine needs.
type PrepBatch struct {
	ID        id.ID
	Name      string
	ProductID id.ID
	Quantity  int
}

// Deduction is one applied decrement.
type Deduction struct {
	IngredientID     id.ID          `json:"ingredientId"`
	Ingredient       string         `json:"ingredient"`
	Product          string         `json:"product"`
	QuantityDeducted types.Quantity `json:"quantityDeducted"`
	Unit             string         `json:"unit"`
	Cost             types.Money    `json:"cost"`
	RemainingStock   types.Quantity `json:"remainingStock"`
}

// Result describes a committed deduction.
type Result struct {
	ReferenceID id.ID       `json:"referenceId"`
	Deductions  []Deduction `json:"deductions"`
	TotalCost   types.Money `json:"totalCost"`
	State       State       `json:"state"`
}

// Engine is the only component that decrements stock for sales and prep.
type Engine struct {
	txm         tx.Manager
	products    catalog.ProductRepository
	recipes     catalog.RecipeRepository
	ingredients inventory.IngredientRepository
	ledger      inventory.LedgerRepository
	events      events.Publisher
}

// Config wires the engine's collaborators.
type Config struct {
	TxManager   tx.Manager
	Products    catalog.ProductRepository
	Recipes     catalog.RecipeRepository
	Ingredients inventory.IngredientRepository
	Ledger      inventory.LedgerRepository
	Events      events.Publisher // optional
}

// NewEngine creates a deduction engine.
func NewEngine(cfg Config) *Engine {
	pub := cfg.Events
	if pub == nil {
		pub = events.Nop{}
	}
	return &Engine{
		txm:         cfg.TxManager,
		products:    cfg.Products,
		recipes:     cfg.Recipes,
		ingredients: cfg.Ingredients,
		ledger:      cfg.Ledger,
		events:      pub,
	}
}

// job is the common shape of order and prep deductions.
type job struct {
	refType entity.ReferenceType
	refID   id.ID
	txType  entity.TransactionType
	lines   []Line
	notes   func(product string) string
	label   string
}

// DeductForOrder validates and deducts all ingredients for the order's items.
// It joins the caller's transaction when one is open, so checkout can write the
// order, the deduction and the payment atomically.
func (e *Engine) DeductForOrder(ctx context.Context, order Order, actor id.ID) (*Result, error) {
	return e.run(ctx, job{
		refType: entity.ReferenceOrder,
		refID:   order.ID,
		txType:  entity.TransactionDeduction,
		lines:   order.Items,
		label:   order.Number,
		notes: func(product string) string {
			return fmt.Sprintf("Deduction for %s (Order: %s)", product, order.Number)
		},
	}, actor)
}

// DeductForPrep consumes the ingredients of a completed prep batch and writes
// PREP ledger entries referencing the batch.
func (e *Engine) DeductForPrep(ctx context.Context, batch PrepBatch, actor id.ID) (*Result, error) {
	return e.run(ctx, job{
		refType: entity.ReferencePrepBatch,
		refID:   batch.ID,
		txType:  entity.TransactionPrep,
		lines:   []Line{{ProductID: batch.ProductID, Quantity: batch.Quantity}},
		label:   batch.Name,
		notes: func(product string) string {
			return fmt.Sprintf("Prep batch %s: %s", batch.Name, product)
		},
	}, actor)
}

func (e *Engine) run(ctx context.Context, j job, actor id.ID) (*Result, error) {
	ctx, span := tracer.Start(ctx, "deduction.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("reference.type", string(j.refType)),
		attribute.String("reference.id", j.refID.String()),
		attribute.Int("lines", len(j.lines)),
	)

	if err := validateLines(j.lines); err != nil {
		return nil, err
	}

	var result *Result
	err := e.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := e.validate(ctx, j)
		if err != nil {
			return err
		}
		result, err = e.commit(ctx, j, p, actor)
		return err
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		logger.Warn(ctx, "deduction aborted",
			"state", StateAborted,
			"reference_type", j.refType,
			"reference_id", j.refID,
			"error", err,
		)
		if apperror.IsAppError(err) {
			return nil, err
		}
		return nil, apperror.NewTransaction("stock deduction", err)
	}

	result.State = StateCommitted
	logger.Info(ctx, "ingredients deducted",
		"reference_type", j.refType,
		"reference_id", j.refID,
		"reference", j.label,
		"entries", len(result.Deductions),
	)
	return result, nil
}

func validateLines(lines []Line) error {
	if len(lines) == 0 {
		return apperror.NewValidation("nothing to deduct: no items")
	}
	for i, l := range lines {
		if id.IsNil(l.ProductID) {
			return apperror.NewValidation("product is required").WithDetail("line", i)
		}
		if err := catalog.ValidateUnits(l.Quantity); err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				return appErr.WithDetail("line", i)
			}
			return err
		}
	}
	return nil
}

// plan is the validated work of one deduction.
type plan struct {
	products    map[id.ID]*catalog.Product
	recipes     map[id.ID]*catalog.Recipe
	ingredients map[id.ID]*inventory.Ingredient
}

// validate is phase one: resolve recipes, lock rows, compare aggregated demand
// with locked stock. Nothing is written.
func (e *Engine) validate(ctx context.Context, j job) (*plan, error) {
	productIDs := make([]id.ID, 0, len(j.lines))
	for _, l := range j.lines {
		productIDs = append(productIDs, l.ProductID)
	}
	productIDs = id.SortedUnique(productIDs)

	products, err := e.products.GetByIDs(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	for _, pid := range productIDs {
		if _, ok := products[pid]; !ok {
			return nil, apperror.NewNotFound("product", pid)
		}
	}

	recipes, err := e.recipes.GetByProductIDs(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("load recipes: %w", err)
	}

	var ingredientIDs []id.ID
	for _, l := range j.lines {
		p := products[l.ProductID]
		if !p.RequiresBOM {
			continue
		}
		r, ok := recipes[l.ProductID]
		if !ok || r.IsEmpty() {
			return nil, apperror.NewMissingRecipe(p.ID, p.Name)
		}
		ingredientIDs = append(ingredientIDs, r.IngredientIDs()...)
	}

	locked, err := e.ingredients.LockForUpdate(ctx, id.SortedUnique(ingredientIDs))
	if err != nil {
		return nil, fmt.Errorf("lock ingredients: %w", err)
	}

	p := &plan{products: products, recipes: recipes, ingredients: locked}
	shortages, err := p.shortages(j.lines)
	if err != nil {
		return nil, err
	}
	if len(shortages) > 0 {
		return nil, shortageError(shortages)
	}
	return p, nil
}

// demand is the total need for one ingredient across the whole job.
type demand struct {
	line     catalog.RecipeLine
	needed   types.Quantity
	products []string
}

// shortages aggregates demand per ingredient before comparing it with stock,
// so two lines sharing an ingredient cannot jointly overdraw it. Demand that
// overflows a Quantity is rejected before any stock is compared.
func (p *plan) shortages(lines []Line) ([]availability.Shortage, error) {
	totals := make(map[id.ID]*demand)
	var order []id.ID
	var out []availability.Shortage

	for _, l := range lines {
		product := p.products[l.ProductID]
		if !product.RequiresBOM {
			continue
		}
		for _, rl := range p.recipes[l.ProductID].Lines {
			d, ok := totals[rl.IngredientID]
			if !ok {
				d = &demand{line: rl}
				totals[rl.IngredientID] = d
				order = append(order, rl.IngredientID)
			}
			needed, err := rl.AddNeeded(d.needed, l.Quantity)
			if err != nil {
				return nil, err
			}
			d.needed = needed
			if !containsString(d.products, product.Name) {
				d.products = append(d.products, product.Name)
			}
		}
	}

	for _, ingID := range order {
		d := totals[ingID]
		ing, ok := p.ingredients[ingID]
		if s, short := availability.ShortageFor(ing, ok, d.line, d.needed); short {
			s.Product = strings.Join(d.products, ", ")
			out = append(out, s)
		}
	}
	return out, nil
}

// commit is phase two: apply every (item, recipe line) decrement in order and
// append one ledger entry per pair.
func (e *Engine) commit(ctx context.Context, j job, p *plan, actor id.ID) (*Result, error) {
	logger.Debug(ctx, "deduction state", "state", StateCommitting, "reference_id", j.refID)

	res := &Result{
		ReferenceID: j.refID,
		Deductions:  []Deduction{},
		TotalCost:   types.MustMoney("0"),
		State:       StateCommitting,
	}
	var entries []entity.StockTransaction
	touched := make(map[id.ID]struct{})

	for _, l := range j.lines {
		product := p.products[l.ProductID]
		if !product.RequiresBOM {
			ok, err := e.products.DecrementStock(ctx, product.ID, l.Quantity)
			if err != nil {
				return nil, apperror.NewTransaction("stock deduction", err)
			}
			if !ok {
				return nil, simpleStockError(product, l.Quantity)
			}
			continue
		}

		for _, rl := range p.recipes[l.ProductID].Lines {
			ing := p.ingredients[rl.IngredientID]
			needed, err := rl.Needed(l.Quantity)
			if err != nil {
				return nil, err
			}
			remaining := ing.CurrentStock - needed

			if err := e.ingredients.UpdateStock(ctx, ing.ID, remaining); err != nil {
				return nil, apperror.NewTransaction("stock deduction", err)
			}
			ing.CurrentStock = remaining
			touched[ing.ID] = struct{}{}

			entries = append(entries, entity.NewStockTransaction(
				ing.ID, j.txType, needed, j.refType, j.refID, j.notes(product.Name), actor,
			))
			res.Deductions = append(res.Deductions, Deduction{
				IngredientID:     ing.ID,
				Ingredient:       ing.Name,
				Product:          product.Name,
				QuantityDeducted: needed,
				Unit:             string(ing.Unit),
				Cost:             types.MustMoney("0"),
				RemainingStock:   remaining,
			})
		}
	}

	if len(entries) > 0 {
		if err := e.ledger.Append(ctx, entries...); err != nil {
			return nil, apperror.NewTransaction("stock deduction", err)
		}
	}
	if err := e.publish(ctx, j, res, p, touched); err != nil {
		return nil, apperror.NewTransaction("stock deduction", err)
	}
	return res, nil
}

func (e *Engine) publish(ctx context.Context, j job, res *Result, p *plan, touched map[id.ID]struct{}) error {
	if len(res.Deductions) == 0 {
		return nil
	}

	payload := events.DeductedPayload{
		ReferenceType: string(j.refType),
		ReferenceID:   j.refID,
		Reference:     j.label,
	}
	for _, d := range res.Deductions {
		payload.Lines = append(payload.Lines, events.DeductedLine{
			IngredientID: d.IngredientID,
			Ingredient:   d.Ingredient,
			Quantity:     d.QuantityDeducted,
			Remaining:    d.RemainingStock,
		})
	}
	aggregate := events.AggregateOrder
	if j.refType == entity.ReferencePrepBatch {
		aggregate = events.AggregatePrepBatch
	}
	if err := e.events.Publish(ctx, events.Event{
		AggregateType: aggregate,
		AggregateID:   j.refID,
		EventType:     events.TypeInventoryDeducted,
		Payload:       payload,
	}); err != nil {
		return fmt.Errorf("publish deducted: %w", err)
	}

	ids := make([]id.ID, 0, len(touched))
	for ingID := range touched {
		ids = append(ids, ingID)
	}
	for _, ingID := range id.SortedUnique(ids) {
		ing := p.ingredients[ingID]
		if !ing.IsLowStock() {
			continue
		}
		if err := e.events.Publish(ctx, events.NewLowStock(events.LowStockPayload{
			IngredientID: ing.ID,
			Ingredient:   ing.Name,
			Unit:         string(ing.Unit),
			CurrentStock: ing.CurrentStock,
			MinStock:     ing.MinStock,
		})); err != nil {
			return fmt.Errorf("publish low stock: %w", err)
		}
	}
	return nil
}

// shortageError picks INSUFFICIENT_STOCK when any shortage is a real stock
// shortage, UNAVAILABLE_INGREDIENT when all are manual overrides.
func shortageError(shortages []availability.Shortage) error {
	sort.SliceStable(shortages, func(a, b int) bool {
		return !shortages[a].IsManualOverride() && shortages[b].IsManualOverride()
	})
	first := shortages[0]

	if first.IsManualOverride() {
		return apperror.NewUnavailableIngredient(
			fmt.Sprintf("'%s' is marked as unavailable (needed for %s)", first.Ingredient, first.Product),
			shortages,
		)
	}
	return apperror.NewInsufficientStock(
		fmt.Sprintf("Insufficient '%s' for %s. Need %s %s, but only %s available.",
			first.Ingredient, first.Product, first.Needed, first.Unit, first.Available),
		shortages,
	)
}

func simpleStockError(p *catalog.Product, qty int) error {
	return apperror.NewInsufficientStock(
		fmt.Sprintf("Insufficient stock for %s", p.Name),
		[]availability.Shortage{{
			Product:    p.Name,
			Ingredient: p.Name,
			Needed:     types.NewQuantityFromInt(int64(qty)),
			Unit:       string(inventory.UnitPiece),
			Reason:     availability.ReasonInsufficientStock,
		}},
	)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// IsShortage reports whether err is a stock or availability rejection.
func IsShortage(err error) bool {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Code == apperror.CodeInsufficientStock || appErr.Code == apperror.CodeUnavailableIngredient
}
