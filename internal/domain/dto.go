package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ItemKind string

const (
	ItemProduct ItemKind = "product"
	ItemRoom    ItemKind = "room"
)

// OrderItem is one persisted cart line. Room items always carry quantity 1.
type OrderItem struct {
	Kind       ItemKind        `json:"kind"`
	ProductID  string          `json:"product_id,omitempty"`
	Name       string          `json:"name"`
	CategoryID string          `json:"category_id,omitempty"`
	Note       string          `json:"note,omitempty"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`

	RoomID        string `json:"room_id,omitempty"`
	StartHour     int    `json:"start_hour,omitempty"`
	DurationHours int    `json:"duration_hours,omitempty"`
}

// OrderSnapshot is what a commit sends to the order service.
type OrderSnapshot struct {
	RequestID     string      `json:"request_id"`
	SessionID     string      `json:"session_id"`
	Status        OrderStatus `json:"status"`
	CustomerLabel string      `json:"customer_label"`
	OrderType     OrderType   `json:"order_type"`
	LocationLabel string      `json:"location_label,omitempty"`
	BookingDate   time.Time   `json:"booking_date"`
	Items         []OrderItem `json:"items"`

	DiscountPercent decimal.Decimal `json:"discount_percent"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	TotalAmount     decimal.Decimal `json:"total_amount"`

	// set only when Status is StatusPaid
	PaymentMethod PaymentMethod    `json:"payment_method,omitempty"`
	CashGiven     *decimal.Decimal `json:"cash_given,omitempty"`
}

type CommitResult struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
}

// SavedOrder is an order as returned by the order service.
type SavedOrder struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	OrderSnapshot
}
