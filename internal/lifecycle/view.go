package lifecycle

import (
	"time"

	"github.com/shopspring/decimal"

	"pos-terminal/internal/booking"
	"pos-terminal/internal/cart"
	"pos-terminal/internal/domain"
	"pos-terminal/internal/pricing"
)

// View is everything the UI renders for the current order.
type View struct {
	State              State
	Header             Header
	EditingOrderID     string
	EditingOrderNumber string
	Lines              []cart.Line
	DiscountPercent    decimal.Decimal
	Totals             pricing.Totals
	CommitInFlight     bool
	BookingDate        time.Time // zero outside booking mode
	Rooms              []domain.Room
	Availability       *AvailabilityView
	LastCommit         *domain.CommitResult
	Receipt            *Receipt
}

// AvailabilityView is the slot grid for the selected room.
type AvailabilityView struct {
	Date  time.Time      `json:"date"`
	Room  domain.Room    `json:"room"`
	Slots []booking.Slot `json:"slots"`
}

func (c *Coordinator) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		State:              c.state,
		Header:             c.header,
		EditingOrderID:     c.editingID,
		EditingOrderNumber: c.editingNumber,
		Lines:              c.ledger.Lines(),
		DiscountPercent:    c.discount,
		Totals:             c.totalsLocked(),
		CommitInFlight:     c.busy,
		BookingDate:        c.bookingDate,
	}
	if c.lastCommit != nil {
		lc := *c.lastCommit
		v.LastCommit = &lc
	}
	if c.lastReceipt != nil {
		rc := *c.lastReceipt
		v.Receipt = &rc
	}
	if c.bookingDate.IsZero() || !c.opts.Availability.Date().Equal(c.bookingDate) {
		return v
	}
	for _, ra := range c.opts.Availability.Rooms() {
		v.Rooms = append(v.Rooms, ra.Room)
	}
	if c.selectedRoom == "" {
		return v
	}
	if avail, ok := c.roomLocked(c.selectedRoom); ok {
		v.Availability = &AvailabilityView{
			Date:  c.bookingDate,
			Room:  avail.Room,
			Slots: c.opts.Scheduler.Slots(c.bookingDate, avail, c.ledger.RoomReservations(avail.Room.ID)),
		}
	}
	return v
}
