package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order statuses. These are the only values accepted by order updates.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// ValidStatus reports whether s is one of the known order statuses.
func ValidStatus(s string) bool {
	return s == StatusPending || s == StatusCompleted || s == StatusCancelled
}

// Order represents a customer order and owns its line items.
// Deleting an order cascades to its items.
type Order struct {
	ID            uint            `json:"id" gorm:"primaryKey"`
	CustomerName  string          `json:"customer_name" gorm:"type:varchar(255);not null"`
	CustomerEmail string          `json:"customer_email" gorm:"type:varchar(255);not null"`
	TotalAmount   decimal.Decimal `json:"total_amount" gorm:"type:decimal(12,2)"`
	Status        string          `json:"status" gorm:"type:varchar(20);default:pending"`
	Items         []OrderItem     `json:"items" gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// OrderItem is a single line of an order. ProductName and UnitPrice are
// snapshots of the upstream product at the time the line was created or
// last updated; they are not kept in sync with the product service.
type OrderItem struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	OrderID     uint            `json:"order_id" gorm:"not null;index"`
	ProductID   uint            `json:"product_id" gorm:"not null"`
	ProductName string          `json:"product_name" gorm:"type:varchar(255)"`
	Quantity    int             `json:"quantity" gorm:"not null"`
	UnitPrice   decimal.Decimal `json:"unit_price" gorm:"type:decimal(12,2)"`
	TotalPrice  decimal.Decimal `json:"total_price" gorm:"type:decimal(12,2)"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// LineTotal returns unit_price * quantity under decimal arithmetic.
func (i *OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Recompute re-sums the item totals into TotalAmount. Callers that mutate
// the item set incrementally may instead adjust TotalAmount directly, but
// the resulting value must always equal what Recompute would produce.
func (o *Order) Recompute() {
	total := decimal.Zero
	for i := range o.Items {
		total = total.Add(o.Items[i].TotalPrice)
	}
	o.TotalAmount = total
}
