package memory

import (
	"context"
	"sort"
	"strings"

	"cafepos/internal/core/apperror"
	"cafepos/internal/core/id"
	"cafepos/internal/domain/catalog"
)

// ProductRepo implements catalog.ProductRepository.
type ProductRepo struct{ s *Store }

// Products returns the product repository.
func (s *Store) Products() *ProductRepo { return &ProductRepo{s: s} }

var _ catalog.ProductRepository = (*ProductRepo)(nil)

func (r *ProductRepo) GetByID(ctx context.Context, productID id.ID) (*catalog.Product, error) {
	var out *catalog.Product
	r.s.read(ctx, func(d *data) {
		if v, ok := d.products[productID]; ok {
			out = &v
		}
	})
	if out == nil {
		return nil, apperror.NewNotFound("product", productID)
	}
	return out, nil
}

func (r *ProductRepo) GetByIDs(ctx context.Context, ids []id.ID) (map[id.ID]*catalog.Product, error) {
	out := make(map[id.ID]*catalog.Product, len(ids))
	r.s.read(ctx, func(d *data) {
		for _, pid := range ids {
			if v, ok := d.products[pid]; ok {
				out[pid] = &v
			}
		}
	})
	return out, nil
}

func (r *ProductRepo) List(ctx context.Context, filter catalog.ProductFilter) ([]*catalog.Product, error) {
	var out []*catalog.Product
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	r.s.read(ctx, func(d *data) {
		for _, v := range d.products {
			v := v
			if v.IsArchived && !filter.IncludeArchived {
				continue
			}
			if filter.Category != "" && v.Category != filter.Category {
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

func (r *ProductRepo) Create(ctx context.Context, p *catalog.Product) error {
	return r.s.write(ctx, func(d *data) error {
		if _, exists := d.products[p.ID]; exists {
			return apperror.NewDuplicate("product", "id", p.ID.String())
		}
		d.products[p.ID] = *p
		return nil
	})
}

func (r *ProductRepo) DecrementStock(ctx context.Context, productID id.ID, qty int) (bool, error) {
	ok := false
	err := r.s.write(ctx, func(d *data) error {
		v, found := d.products[productID]
		if !found {
			return apperror.NewNotFound("product", productID)
		}
		if v.Stock < qty {
			return nil
		}
		v.Stock -= qty
		d.products[productID] = v
		ok = true
		return nil
	})
	return ok, err
}

// RecipeRepo implements catalog.RecipeRepository.
type RecipeRepo struct{ s *Store }

// Recipes returns the recipe repository.
func (s *Store) Recipes() *RecipeRepo { return &RecipeRepo{s: s} }

var _ catalog.RecipeRepository = (*RecipeRepo)(nil)

func (r *RecipeRepo) GetByProductID(ctx context.Context, productID id.ID) (*catalog.Recipe, error) {
	var out *catalog.Recipe
	r.s.read(ctx, func(d *data) {
		if v, ok := d.recipes[productID]; ok {
			v.Lines = append([]catalog.RecipeLine(nil), v.Lines...)
			out = &v
		}
	})
	if out == nil {
		return nil, apperror.NewNotFound("recipe", productID)
	}
	return out, nil
}

func (r *RecipeRepo) GetByProductIDs(ctx context.Context, productIDs []id.ID) (map[id.ID]*catalog.Recipe, error) {
	out := make(map[id.ID]*catalog.Recipe, len(productIDs))
	r.s.read(ctx, func(d *data) {
		for _, pid := range productIDs {
			if v, ok := d.recipes[pid]; ok {
				v.Lines = append([]catalog.RecipeLine(nil), v.Lines...)
				out[pid] = &v
			}
		}
	})
	return out, nil
}

// Create stores the recipe, filling ingredient names and units from the
// ingredient rows.
func (r *RecipeRepo) Create(ctx context.Context, recipe *catalog.Recipe) error {
	return r.s.write(ctx, func(d *data) error {
		if _, exists := d.recipes[recipe.ProductID]; exists {
			return apperror.NewDuplicate("recipe", "product_id", recipe.ProductID.String())
		}
		if id.IsNil(recipe.ID) {
			recipe.ID = id.New()
		}
		if p, ok := d.products[recipe.ProductID]; ok && recipe.ProductName == "" {
			recipe.ProductName = p.Name
		}
		lines := make([]catalog.RecipeLine, len(recipe.Lines))
		for i, l := range recipe.Lines {
			ing, ok := d.ingredients[l.IngredientID]
			if !ok {
				return apperror.NewNotFound("ingredient", l.IngredientID)
			}
			l.RecipeID = recipe.ID
			l.IngredientName = ing.Name
			l.Unit = string(ing.Unit)
			lines[i] = l
		}
		recipe.Lines = lines
		stored := *recipe
		stored.Lines = append([]catalog.RecipeLine(nil), lines...)
		d.recipes[recipe.ProductID] = stored
		return nil
	})
}
