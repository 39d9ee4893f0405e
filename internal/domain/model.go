package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderType string

const (
	OrderTypeDineIn   OrderType = "dine_in"
	OrderTypeTakeaway OrderType = "takeaway"
	OrderTypePickup   OrderType = "pickup"
)

func (t OrderType) Valid() bool {
	return t == OrderTypeDineIn || t == OrderTypeTakeaway || t == OrderTypePickup
}

// RequiresLocation reports whether orders of this type need a table/location label.
func (t OrderType) RequiresLocation() bool { return t == OrderTypeDineIn }

type PaymentMethod string

const (
	PaymentCash        PaymentMethod = "cash"
	PaymentCardPresent PaymentMethod = "card_present"
	PaymentQR          PaymentMethod = "qr"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentCash || m == PaymentCardPresent || m == PaymentQR
}

type OrderStatus string

const (
	StatusDraft     OrderStatus = "draft"
	StatusSaved     OrderStatus = "saved"
	StatusPaid      OrderStatus = "paid"
	StatusCancelled OrderStatus = "cancelled"
)

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Product struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	CategoryID string          `json:"category_id"`
	Price      decimal.Decimal `json:"price"`
}

// Catalog is the per-session snapshot of everything sellable.
type Catalog struct {
	Products       []Product       `json:"products"`
	Categories     []Category      `json:"categories"`
	OrderTypes     []OrderType     `json:"order_types"`
	TaxRatePercent decimal.Decimal `json:"tax_rate_percent"`
	LoadedAt       time.Time       `json:"loaded_at"`
}

type Room struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DurationPackage is a purchasable booking length with a fixed price.
type DurationPackage struct {
	DurationHours int             `json:"duration_hours"`
	Price         decimal.Decimal `json:"price"`
}

// RoomAvailability is the backend's view of one room for one date.
// BookedHours holds start hours of already-taken one-hour cells.
type RoomAvailability struct {
	Room        Room              `json:"room"`
	BookedHours []int             `json:"booked_hours"`
	Packages    []DurationPackage `json:"packages"`
}

func (a RoomAvailability) Package(durationHours int) (DurationPackage, bool) {
	for _, p := range a.Packages {
		if p.DurationHours == durationHours {
			return p, true
		}
	}
	return DurationPackage{}, false
}

// Session is an open cashier shift. Only its presence gates commits.
type Session struct {
	ID           string          `json:"session_id"`
	Cashier      string          `json:"cashier"`
	OpenedAt     time.Time       `json:"opened_at"`
	StartingCash decimal.Decimal `json:"starting_cash"`
}

type StatusEvent struct {
	Status    OrderStatus `json:"status"`
	ChangedBy string      `json:"changed_by"`
	ChangedAt time.Time   `json:"changed_at"`
	Notes     string      `json:"notes,omitempty"`
}
