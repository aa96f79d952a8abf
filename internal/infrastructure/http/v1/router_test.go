package v1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cafepos/internal/core/types"
	"cafepos/internal/domain/auth"
	"cafepos/internal/domain/availability"
	"cafepos/internal/domain/catalog"
	"cafepos/internal/domain/deduction"
	"cafepos/internal/domain/inventory"
	"cafepos/internal/domain/orders"
	"cafepos/internal/domain/variance"
	v1 "cafepos/internal/infrastructure/http/v1"
	"cafepos/internal/infrastructure/storage/memory"
	"cafepos/pkg/logger"
)

type app struct {
	router *gin.Engine
	store  *memory.Store
	milk   *inventory.Ingredient
	latte  *catalog.Product
}

// newApp serves a latte that takes 150 ml from 1000 ml of milk.
func newApp(t *testing.T) *app {
	t.Helper()
	ctx := context.Background()
	s := memory.New()

	milk, err := s.AddIngredient(ctx, "Milk", inventory.UnitMilliliter, types.NewQuantityFromInt(1000), types.NewQuantityFromInt(200))
	require.NoError(t, err)
	latte, err := s.AddProduct(ctx, "Latte", types.MustMoney("120"), memory.Use{Ingredient: milk, PerUnit: types.NewQuantityFromInt(150)})
	require.NoError(t, err)

	jwt := auth.NewJWTService(auth.DefaultJWTConfig("test-secret"))
	authSvc := auth.NewService(s.Users(), s.Tokens(), jwt, auth.DefaultServiceConfig())
	_, err = authSvc.CreateStaff(ctx, auth.NewStaff{Username: "admin", Password: "admin-password", Role: auth.RoleAdmin})
	require.NoError(t, err)
	_, err = authSvc.CreateStaff(ctx, auth.NewStaff{Username: "cashier", Password: "cashier-password", Role: auth.RoleCashier})
	require.NoError(t, err)

	checker := availability.NewChecker(s.Products(), s.Recipes(), s.Ingredients())
	engine := deduction.NewEngine(deduction.Config{
		TxManager:   s,
		Products:    s.Products(),
		Recipes:     s.Recipes(),
		Ingredients: s.Ingredients(),
		Ledger:      s.Ledger(),
		Events:      s,
	})

	router := v1.NewRouter(v1.RouterConfig{
		Logger:       logger.Nop(),
		JWTValidator: jwt,
		AuthService:  authSvc,
		Catalog:      catalog.NewService(s, s.Products(), s.Recipes(), s.Ingredients()),
		Checker:      checker,
		Inventory:    inventory.NewService(s, s.Ingredients(), s.Ledger(), s),
		Variance: variance.NewTracker(variance.Config{
			TxManager:   s,
			Ingredients: s.Ingredients(),
			Ledger:      s.Ledger(),
			Waste:       s.Waste(),
			Counts:      s.Counts(),
			Records:     s.VarianceRecords(),
			Events:      s,
			Audit:       s,
			Now:         time.Now,
		}),
		Orders: orders.NewService(orders.Config{
			TxManager: s,
			Orders:    s.Orders(),
			Payments:  s.Payments(),
			Products:  s.Products(),
			Checker:   checker,
			Engine:    engine,
			Events:    s,
			Audit:     s,
			Now:       time.Now,
		}),
		CriticalStockPercent: decimal.NewFromInt(25),
	})

	return &app{router: router, store: s, milk: milk, latte: latte}
}

func (a *app) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *app) login(t *testing.T, username, password string) string {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": username, "password": password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Tokens struct {
			AccessToken string `json:"accessToken"`
		} `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Tokens.AccessToken)
	return resp.Tokens.AccessToken
}

func (a *app) milkStock(t *testing.T) types.Quantity {
	t.Helper()
	ing, err := a.store.Ingredients().GetByID(context.Background(), a.milk.ID)
	require.NoError(t, err)
	return ing.CurrentStock
}

func TestRouter_RequiresToken(t *testing.T) {
	a := newApp(t)

	w := a.do(t, http.MethodGet, "/api/v1/products", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_CheckoutDeductsStock(t *testing.T) {
	a := newApp(t)
	token := a.login(t, "cashier", "cashier-password")

	w := a.do(t, http.MethodPost, "/api/v1/orders/checkout", token, gin.H{
		"items": []gin.H{{"productId": a.latte.ID.String(), "quantity": 2}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var receipt struct {
		Order struct {
			Status string `json:"status"`
		} `json:"order"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &receipt))
	assert.Equal(t, string(orders.StatusInProgress), receipt.Order.Status)
	assert.Equal(t, types.NewQuantityFromInt(700), a.milkStock(t))
}

func TestRouter_CheckoutShortageIsRejected(t *testing.T) {
	a := newApp(t)
	token := a.login(t, "cashier", "cashier-password")

	w := a.do(t, http.MethodPost, "/api/v1/orders/checkout", token, gin.H{
		"items": []gin.H{{"productId": a.latte.ID.String(), "quantity": 7}},
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())

	var resp struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INSUFFICIENT_STOCK", resp.Code)
	assert.Equal(t, types.NewQuantityFromInt(1000), a.milkStock(t))
}

func TestRouter_ProductAvailability(t *testing.T) {
	a := newApp(t)
	token := a.login(t, "cashier", "cashier-password")

	w := a.do(t, http.MethodGet, "/api/v1/products/"+a.latte.ID.String()+"/availability?quantity=6", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Available bool `json:"available"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Available)
}

func TestRouter_CashierCannotLogWaste(t *testing.T) {
	a := newApp(t)
	cashier := a.login(t, "cashier", "cashier-password")
	admin := a.login(t, "admin", "admin-password")
	path := "/api/v1/ingredients/" + a.milk.ID.String() + "/waste"
	body := gin.H{"quantity": 50, "wasteType": "WASTE", "reason": "dropped jug"}

	w := a.do(t, http.MethodPost, path, cashier, body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(t, http.MethodPost, path, admin, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, types.NewQuantityFromInt(950), a.milkStock(t))
}

func TestRouter_CashierTogglesIngredient(t *testing.T) {
	a := newApp(t)
	token := a.login(t, "cashier", "cashier-password")

	w := a.do(t, http.MethodPost, "/api/v1/ingredients/"+a.milk.ID.String()+"/availability", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	ing, err := a.store.Ingredients().GetByID(context.Background(), a.milk.ID)
	require.NoError(t, err)
	assert.False(t, ing.IsAvailable)
}

func TestRouter_LowStockRouteIsNotAnID(t *testing.T) {
	a := newApp(t)
	token := a.login(t, "admin", "admin-password")

	w := a.do(t, http.MethodGet, "/api/v1/ingredients/low-stock", token, nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestRouter_PrepRoutesDisabledWithoutService(t *testing.T) {
	a := newApp(t)
	token := a.login(t, "admin", "admin-password")

	w := a.do(t, http.MethodGet, "/api/v1/prep-batches/"+a.latte.ID.String(), token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_StaffManagementIsAdminOnly(t *testing.T) {
	a := newApp(t)
	cashier := a.login(t, "cashier", "cashier-password")
	admin := a.login(t, "admin", "admin-password")
	body := gin.H{"username": "barista", "password": "barista-password", "phone": "0917 555 0101"}

	w := a.do(t, http.MethodPost, "/api/v1/staff", cashier, body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(t, http.MethodPost, "/api/v1/staff", admin, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		ID   string `json:"id"`
		Role string `json:"role"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, auth.RoleCashier, created.Role)

	w = a.do(t, http.MethodPost, "/api/v1/staff/"+created.ID+"/archive", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "barista", "password": "barista-password"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(t, http.MethodGet, "/api/v1/staff?role=cashier", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var list struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Total)
}

func TestRouter_BindingErrorsListFields(t *testing.T) {
	a := newApp(t)
	admin := a.login(t, "admin", "admin-password")

	w := a.do(t, http.MethodPost, "/api/v1/staff", admin, gin.H{"username": "barista", "password": "barista-password", "role": "owner"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp struct {
		Code    string `json:"code"`
		Details struct {
			Fields map[string]string `json:"fields"`
		} `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
	assert.Equal(t, "oneof=admin cashier", resp.Details.Fields["Role"])
}

func TestRouter_CheckoutQuantityAboveInt4IsRejected(t *testing.T) {
	a := newApp(t)
	token := a.login(t, "cashier", "cashier-password")

	w := a.do(t, http.MethodPost, "/api/v1/orders/checkout", token, gin.H{
		"items": []gin.H{{"productId": a.latte.ID.String(), "quantity": 3_000_000_000}},
	})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	var resp struct {
		Details struct {
			Fields map[string]string `json:"fields"`
		} `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "max=2147483647", resp.Details.Fields["Quantity"])
	assert.Equal(t, types.NewQuantityFromInt(1000), a.milkStock(t))
}
