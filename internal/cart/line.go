package cart

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"pos-terminal/internal/booking"
	"pos-terminal/internal/domain"
)

type Kind uint8

const (
	KindProduct Kind = iota + 1
	KindRoom
)

func (k Kind) String() string {
	switch k {
	case KindProduct:
		return "product"
	case KindRoom:
		return "room"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// LineKey identifies a cart line. It is a comparable tuple so a note
// containing any character cannot collide with another key.
//
//	product lines: (KindProduct, productID, note)
//	room lines:    (KindRoom, roomID, startHour)
type LineKey struct {
	Kind      Kind   `json:"k"`
	ID        string `json:"id"`
	Note      string `json:"n,omitempty"`
	StartHour int    `json:"h,omitempty"`
}

func ProductKey(productID, note string) LineKey {
	return LineKey{Kind: KindProduct, ID: productID, Note: note}
}

func RoomKey(roomID string, startHour int) LineKey {
	return LineKey{Kind: KindRoom, ID: roomID, StartHour: startHour}
}

// Token is an opaque, URL-safe encoding of the key for UI round-trips.
func (k LineKey) Token() string {
	b, _ := json.Marshal(k)
	return base64.RawURLEncoding.EncodeToString(b)
}

func ParseToken(s string) (LineKey, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return LineKey{}, fmt.Errorf("decode line key: %w", err)
	}
	var k LineKey
	if err := json.Unmarshal(b, &k); err != nil {
		return LineKey{}, fmt.Errorf("decode line key: %w", err)
	}
	if k.Kind != KindProduct && k.Kind != KindRoom {
		return LineKey{}, fmt.Errorf("decode line key: unknown kind %d", k.Kind)
	}
	return k, nil
}

type ProductLine struct {
	ProductID  string          `json:"product_id"`
	Name       string          `json:"name"`
	CategoryID string          `json:"category_id"`
	Note       string          `json:"note,omitempty"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Quantity   int             `json:"quantity"`
}

func (p ProductLine) Amount() decimal.Decimal {
	return p.UnitPrice.Mul(decimal.NewFromInt(int64(p.Quantity)))
}

// RoomLine is a fixed-price reservation. Quantity is always 1.
type RoomLine struct {
	RoomID        string          `json:"room_id"`
	RoomName      string          `json:"room_name"`
	StartHour     int             `json:"start_hour"`
	DurationHours int             `json:"duration_hours"`
	Price         decimal.Decimal `json:"price"`
}

func (r RoomLine) Span() booking.Interval { return booking.Span(r.StartHour, r.DurationHours) }

// Line is the tagged union stored in the ledger: exactly one of Product or Room is set.
type Line struct {
	Key     LineKey      `json:"-"`
	Product *ProductLine `json:"product,omitempty"`
	Room    *RoomLine    `json:"room,omitempty"`
}

func (l Line) Kind() Kind { return l.Key.Kind }

func (l Line) Amount() decimal.Decimal {
	switch {
	case l.Product != nil:
		return l.Product.Amount()
	case l.Room != nil:
		return l.Room.Price
	}
	return decimal.Zero
}

func (l Line) clone() Line {
	out := Line{Key: l.Key}
	if l.Product != nil {
		p := *l.Product
		out.Product = &p
	}
	if l.Room != nil {
		r := *l.Room
		out.Room = &r
	}
	return out
}

// OrderItem converts the line to its persisted form.
func (l Line) OrderItem() domain.OrderItem {
	if l.Room != nil {
		return domain.OrderItem{
			Kind:          domain.ItemRoom,
			Name:          l.Room.RoomName,
			Quantity:      1,
			UnitPrice:     l.Room.Price,
			RoomID:        l.Room.RoomID,
			StartHour:     l.Room.StartHour,
			DurationHours: l.Room.DurationHours,
		}
	}
	return domain.OrderItem{
		Kind:       domain.ItemProduct,
		ProductID:  l.Product.ProductID,
		Name:       l.Product.Name,
		CategoryID: l.Product.CategoryID,
		Note:       l.Product.Note,
		Quantity:   l.Product.Quantity,
		UnitPrice:  l.Product.UnitPrice,
	}
}

// LineFromItem is the inverse of OrderItem.
func LineFromItem(it domain.OrderItem) (Line, error) {
	switch it.Kind {
	case domain.ItemProduct:
		if it.Quantity < 1 {
			return Line{}, domain.Ef(domain.CodeInvalidQuantity, "item %s: quantity %d", it.ProductID, it.Quantity)
		}
		return Line{
			Key: ProductKey(it.ProductID, it.Note),
			Product: &ProductLine{
				ProductID: it.ProductID, Name: it.Name, CategoryID: it.CategoryID,
				Note: it.Note, UnitPrice: it.UnitPrice, Quantity: it.Quantity,
			},
		}, nil
	case domain.ItemRoom:
		if it.DurationHours <= 0 {
			return Line{}, domain.Ef(domain.CodeInvalidQuantity, "room %s: duration %d", it.RoomID, it.DurationHours)
		}
		return Line{
			Key: RoomKey(it.RoomID, it.StartHour),
			Room: &RoomLine{
				RoomID: it.RoomID, RoomName: it.Name, StartHour: it.StartHour,
				DurationHours: it.DurationHours, Price: it.UnitPrice,
			},
		}, nil
	}
	return Line{}, fmt.Errorf("unknown item kind %q", it.Kind)
}
