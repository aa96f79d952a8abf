// Package orders provides orders, payments and the checkout workflow that
// drives stock deduction.
package orders

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"cafepos/internal/core/entity"
	"cafepos/internal/core/id"
	"cafepos/internal/core/types"
)

// Status is the order lifecycle state.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusFinished   Status = "FINISHED"
	StatusCancelled  Status = "CANCELLED"
	StatusExpired    Status = "EXPIRED"
)

// CanCancel reports whether an order in this state may be cancelled.
func (s Status) CanCancel() bool {
	return s == StatusPending || s == StatusInProgress
}

// PaymentMethod is how an order was paid.
type PaymentMethod string

const (
	MethodCash   PaymentMethod = "CASH"
	MethodOnline PaymentMethod = "ONLINE"
)

// Valid reports a known payment method.
func (m PaymentMethod) Valid() bool {
	return m == MethodCash || m == MethodOnline
}

// PaymentStatus is the payment state.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentSuccess PaymentStatus = "SUCCESS"
	PaymentFailed  PaymentStatus = "FAILED"
)

// Order is a customer order.
type Order struct {
	ID           id.ID       `db:"id" json:"id"`
	Number       string      `db:"order_number" json:"orderNumber"`
	Status       Status      `db:"status" json:"status"`
	TotalAmount  types.Money `db:"total_amount" json:"totalAmount"`
	CustomerName string      `db:"customer_name" json:"customerName"`
	TableNumber  string      `db:"table_number" json:"tableNumber"`
	Notes        string      `db:"notes" json:"notes"`
	CreatedBy    *id.ID      `db:"created_by" json:"createdBy,omitempty"`

	Items   []Item   `db:"-" json:"items"`
	Payment *Payment `db:"-" json:"payment,omitempty"`

	entity.Timestamps
}

// Item is an order line with product name and price captured at order time.
type Item struct {
	ID           id.ID       `db:"id" json:"id"`
	OrderID      id.ID       `db:"order_id" json:"-"`
	ProductID    id.ID       `db:"product_id" json:"productId"`
	ProductName  string      `db:"product_name" json:"productName"`
	ProductPrice types.Money `db:"product_price" json:"productPrice"`
	Quantity     int         `db:"quantity" json:"quantity"`
	Subtotal     types.Money `db:"subtotal" json:"subtotal"`
	CreatedAt    time.Time   `db:"created_at" json:"createdAt"`
}

// Payment is the single payment of an order.
type Payment struct {
	ID              id.ID         `db:"id" json:"id"`
	OrderID         id.ID         `db:"order_id" json:"orderId"`
	Method          PaymentMethod `db:"method" json:"method"`
	Status          PaymentStatus `db:"status" json:"status"`
	Amount          types.Money   `db:"amount" json:"amount"`
	ReferenceNumber string        `db:"reference_number" json:"referenceNumber"`
	ProcessedBy     *id.ID        `db:"processed_by" json:"processedBy,omitempty"`

	entity.Timestamps
}

// NewNumber returns an order number of the form ORD-XXXXXXXX.
// The suffix is random, not time ordered, so numbers do not leak volume.
func NewNumber() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "ORD-" + strings.ToUpper(hex[:8])
}

// ItemRequest is one requested product line.
type ItemRequest struct {
	ProductID id.ID `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// Request is the input of Checkout and PlaceOrder.
type Request struct {
	Items           []ItemRequest
	CustomerName    string
	TableNumber     string
	Notes           string
	Method          PaymentMethod
	ReferenceNumber string
}

// ListFilter narrows order listings.
type ListFilter struct {
	Status *Status
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}
