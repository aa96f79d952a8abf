// Package main seeds staff accounts and a small cafe catalog. It is safe to
// run repeatedly: existing users are kept and the catalog is only created on
// an empty ingredient table.
package main

import (
	"context"
	"fmt"
	"os"

	"cafepos/internal/app"
	"cafepos/internal/config"
	"cafepos/internal/core/apperror"
	"cafepos/internal/core/types"
	"cafepos/internal/domain/auth"
	"cafepos/internal/domain/catalog"
	"cafepos/internal/domain/inventory"
	"cafepos/pkg/logger"
)

type seedUser struct {
	username string
	envVar   string
	fallback string
	role     string
}

var users = []seedUser{
	{username: "admin", envVar: "SEED_ADMIN_PASSWORD", fallback: "admin12345", role: auth.RoleAdmin},
	{username: "cashier", envVar: "SEED_CASHIER_PASSWORD", fallback: "cashier12345", role: auth.RoleCashier},
}

type seedIngredient struct {
	name     string
	unit     inventory.Unit
	stock    int64
	minStock int64
}

var ingredients = []seedIngredient{
	{"Espresso beans", inventory.UnitGram, 5000, 1000},
	{"Milk", inventory.UnitMilliliter, 10000, 2000},
	{"Vanilla syrup", inventory.UnitMilliliter, 1000, 200},
	{"Cup 12oz", inventory.UnitPiece, 300, 50},
	{"Butter croissant", inventory.UnitPiece, 40, 10},
}

type seedLine struct {
	ingredient string
	perUnit    string
}

type seedProduct struct {
	name     string
	category string
	price    string
	lines    []seedLine
	stock    int // simple-stock products only
}

var products = []seedProduct{
	{name: "Espresso", category: "Coffee", price: "90", lines: []seedLine{{"Espresso beans", "18"}, {"Cup 12oz", "1"}}},
	{name: "Latte", category: "Coffee", price: "150", lines: []seedLine{{"Espresso beans", "18"}, {"Milk", "200"}, {"Cup 12oz", "1"}}},
	{name: "Vanilla latte", category: "Coffee", price: "180", lines: []seedLine{{"Espresso beans", "18"}, {"Milk", "200"}, {"Vanilla syrup", "20"}, {"Cup 12oz", "1"}}},
	{name: "Cappuccino", category: "Coffee", price: "140", lines: []seedLine{{"Espresso beans", "18"}, {"Milk", "120"}, {"Cup 12oz", "1"}}},
	{name: "Croissant", category: "Bakery", price: "110", lines: []seedLine{{"Butter croissant", "1"}}},
	{name: "Bottled water", category: "Drinks", price: "60", stock: 48},
}

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	logger.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalw("invalid configuration", "error", err)
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to connect", "error", err)
	}
	defer a.Close()

	if err := seedUsers(ctx, a, log); err != nil {
		log.Fatalw("failed to seed users", "error", err)
	}
	if err := seedCatalog(ctx, a, log); err != nil {
		log.Fatalw("failed to seed catalog", "error", err)
	}

	log.Info("seed completed")
}

func seedUsers(ctx context.Context, a *app.App, log *logger.Logger) error {
	for _, u := range users {
		password := os.Getenv(u.envVar)
		if password == "" {
			password = u.fallback
		}
		user, err := a.Auth.CreateStaff(ctx, auth.NewStaff{Username: u.username, Password: password, Role: u.role})
		if apperror.HasCode(err, apperror.CodeDuplicate) {
			log.Infow("user already exists", "username", u.username)
			continue
		}
		if err != nil {
			return fmt.Errorf("create %s: %w", u.username, err)
		}
		log.Infow("user created", "username", user.Username, "role", user.Role)
	}
	return nil
}

func seedCatalog(ctx context.Context, a *app.App, log *logger.Logger) error {
	existing, err := a.Inventory.List(ctx, inventory.ListFilter{Limit: 1})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		log.Info("catalog already seeded, skipping")
		return nil
	}

	byName := make(map[string]*inventory.Ingredient, len(ingredients))
	for _, si := range ingredients {
		ing := inventory.NewIngredient(si.name, si.unit, types.NewQuantityFromInt(si.stock), types.NewQuantityFromInt(si.minStock))
		if err := a.Inventory.Create(ctx, ing); err != nil {
			return fmt.Errorf("create ingredient %s: %w", si.name, err)
		}
		byName[si.name] = ing
	}

	for _, sp := range products {
		product := catalog.NewProduct(sp.name, sp.category, types.MustMoney(sp.price))

		var recipe *catalog.Recipe
		if len(sp.lines) == 0 {
			product.RequiresBOM = false
			product.Stock = sp.stock
		} else {
			recipe = &catalog.Recipe{ProductID: product.ID, Name: sp.name}
			for _, l := range sp.lines {
				ing, ok := byName[l.ingredient]
				if !ok {
					return fmt.Errorf("product %s: unknown ingredient %s", sp.name, l.ingredient)
				}
				recipe.Lines = append(recipe.Lines, catalog.RecipeLine{
					IngredientID:    ing.ID,
					QuantityPerUnit: types.MustQuantity(l.perUnit),
				})
			}
		}

		if err := a.Catalog.CreateProduct(ctx, product, recipe); err != nil {
			return fmt.Errorf("create product %s: %w", sp.name, err)
		}
	}

	log.Infow("catalog seeded", "ingredients", len(ingredients), "products", len(products))
	return nil
}
