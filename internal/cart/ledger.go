package cart

import (
	"pos-terminal/internal/booking"
	"pos-terminal/internal/domain"
)

// SlotValidator approves a room reservation against the reservations the
// cart already holds for that room. booking.RoomCheck satisfies it.
type SlotValidator interface {
	ValidateSlot(roomID string, startHour, durationHours int, held []booking.Interval) error
}

// Ledger is the ordered set of lines for the order being built.
// Insertion order is display order. It does no I/O and is not safe for
// concurrent use; the coordinator serializes access.
type Ledger struct {
	lines []Line
}

func NewLedger() *Ledger { return &Ledger{} }

func (l *Ledger) find(k LineKey) int {
	for i := range l.lines {
		if l.lines[i].Key == k {
			return i
		}
	}
	return -1
}

// AddProduct inserts a product line or merges quantity into the line with
// the same product and note.
func (l *Ledger) AddProduct(p domain.Product, quantity int, note string) (LineKey, error) {
	if quantity < 1 {
		return LineKey{}, domain.Ef(domain.CodeInvalidQuantity, "quantity must be at least 1, got %d", quantity)
	}
	k := ProductKey(p.ID, note)
	if i := l.find(k); i >= 0 {
		l.lines[i].Product.Quantity += quantity
		return k, nil
	}
	l.lines = append(l.lines, Line{
		Key: k,
		Product: &ProductLine{
			ProductID:  p.ID,
			Name:       p.Name,
			CategoryID: p.CategoryID,
			Note:       note,
			UnitPrice:  p.Price,
			Quantity:   quantity,
		},
	})
	return k, nil
}

// AddRoomReservation inserts a room line when v approves the slot.
func (l *Ledger) AddRoomReservation(room domain.Room, startHour int, pkg domain.DurationPackage, v SlotValidator) (LineKey, error) {
	if startHour < 0 || startHour > 23 {
		return LineKey{}, domain.Ef(domain.CodeSlotConflict, "start hour %d out of range", startHour)
	}
	if pkg.DurationHours <= 0 {
		return LineKey{}, domain.Ef(domain.CodeInvalidQuantity, "package duration must be positive, got %d", pkg.DurationHours)
	}
	k := RoomKey(room.ID, startHour)
	if l.find(k) >= 0 {
		return LineKey{}, domain.Ef(domain.CodeDuplicateReservation, "room %s at %02d:00 already in cart", room.ID, startHour)
	}
	if err := v.ValidateSlot(room.ID, startHour, pkg.DurationHours, l.RoomReservations(room.ID)); err != nil {
		return LineKey{}, err
	}
	l.lines = append(l.lines, Line{
		Key: k,
		Room: &RoomLine{
			RoomID:        room.ID,
			RoomName:      room.Name,
			StartHour:     startHour,
			DurationHours: pkg.DurationHours,
			Price:         pkg.Price,
		},
	})
	return k, nil
}

// UpdateQuantity sets a product line's quantity; a quantity of 0 or less removes it.
// Room lines are quantity-fixed and only go away through RemoveLine.
func (l *Ledger) UpdateQuantity(k LineKey, quantity int) error {
	i := l.find(k)
	if i < 0 {
		return domain.E(domain.CodeNotFound, "line not in cart")
	}
	if l.lines[i].Room != nil {
		return domain.Ef(domain.CodeNotRemovable, "room %s quantity is fixed; remove the line instead", k.ID)
	}
	if quantity <= 0 {
		l.removeAt(i)
		return nil
	}
	l.lines[i].Product.Quantity = quantity
	return nil
}

// RemoveLine is idempotent: an absent key is a no-op.
func (l *Ledger) RemoveLine(k LineKey) {
	if i := l.find(k); i >= 0 {
		l.removeAt(i)
	}
}

func (l *Ledger) removeAt(i int) {
	l.lines = append(l.lines[:i], l.lines[i+1:]...)
}

func (l *Ledger) Clear() { l.lines = nil }

// Restore replaces the ledger content with previously persisted lines.
// Nothing is changed if any line is invalid or keys repeat.
func (l *Ledger) Restore(lines []Line) error {
	seen := make(map[LineKey]struct{}, len(lines))
	out := make([]Line, 0, len(lines))
	for _, ln := range lines {
		if (ln.Product == nil) == (ln.Room == nil) {
			return domain.E(domain.CodeInvalidQuantity, "line must be a product or a room")
		}
		if ln.Product != nil && ln.Product.Quantity < 1 {
			return domain.Ef(domain.CodeInvalidQuantity, "product %s: quantity %d", ln.Product.ProductID, ln.Product.Quantity)
		}
		if _, dup := seen[ln.Key]; dup {
			if ln.Room != nil {
				return domain.Ef(domain.CodeDuplicateReservation, "room %s at %02d:00 repeated", ln.Room.RoomID, ln.Room.StartHour)
			}
			// same product+note persisted twice: merge
			for i := range out {
				if out[i].Key == ln.Key {
					out[i].Product.Quantity += ln.Product.Quantity
				}
			}
			continue
		}
		seen[ln.Key] = struct{}{}
		out = append(out, ln.clone())
	}
	l.lines = out
	return nil
}

// Lines returns a copy of the lines in display order.
func (l *Ledger) Lines() []Line {
	out := make([]Line, len(l.lines))
	for i, ln := range l.lines {
		out[i] = ln.clone()
	}
	return out
}

func (l *Ledger) Line(k LineKey) (Line, bool) {
	if i := l.find(k); i >= 0 {
		return l.lines[i].clone(), true
	}
	return Line{}, false
}

// RoomReservations returns the spans the cart holds for roomID.
func (l *Ledger) RoomReservations(roomID string) []booking.Interval {
	var out []booking.Interval
	for _, ln := range l.lines {
		if ln.Room != nil && ln.Room.RoomID == roomID {
			out = append(out, ln.Room.Span())
		}
	}
	return out
}

func (l *Ledger) HasRooms() bool {
	for _, ln := range l.lines {
		if ln.Room != nil {
			return true
		}
	}
	return false
}

func (l *Ledger) Len() int { return len(l.lines) }

func (l *Ledger) IsEmpty() bool { return len(l.lines) == 0 }

func (l *Ledger) OrderItems() []domain.OrderItem {
	out := make([]domain.OrderItem, 0, len(l.lines))
	for _, ln := range l.lines {
		out = append(out, ln.OrderItem())
	}
	return out
}
