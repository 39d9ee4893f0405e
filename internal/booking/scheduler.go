package booking

import (
	"time"

	"pos-terminal/internal/domain"
)

type Reason string

const (
	ReasonNone            Reason = ""
	ReasonPast            Reason = "past"
	ReasonBooked          Reason = "booked"
	ReasonInCart          Reason = "in_cart"
	ReasonOutsideHours    Reason = "outside_hours"
	ReasonPastClosing     Reason = "past_closing"
	ReasonSlotUnavailable Reason = "slot_unavailable"
)

type Slot struct {
	Hour       int    `json:"hour"`
	Selectable bool   `json:"selectable"`
	Reason     Reason `json:"reason,omitempty"`
}

type PackageOption struct {
	Package domain.DurationPackage `json:"package"`
	Valid   bool                   `json:"valid"`
	Reason  Reason                 `json:"reason,omitempty"`
}

// Scheduler decides which start hours and duration packages a room offers,
// given the backend's booked hours and the reservations already in the cart.
// It holds no state; every answer is recomputed from its inputs.
type Scheduler struct {
	OpeningHour int
	ClosingHour int // exclusive
	Location    *time.Location
	Now         func() time.Time
}

func NewScheduler(opening, closing int, loc *time.Location) Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return Scheduler{OpeningHour: opening, ClosingHour: closing, Location: loc, Now: time.Now}
}

func (s Scheduler) now() time.Time {
	if s.Now == nil {
		return time.Now().In(s.loc())
	}
	return s.Now().In(s.loc())
}

func (s Scheduler) loc() *time.Location {
	if s.Location == nil {
		return time.Local
	}
	return s.Location
}

// firstOpenHour is the earliest start hour not in the past for date.
// Dates before today are entirely past; dates after today are entirely open.
func (s Scheduler) firstOpenHour(date time.Time) int {
	now := s.now()
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, s.loc())
	dy, dm, dd := date.In(s.loc()).Date()
	day := time.Date(dy, dm, dd, 0, 0, 0, 0, s.loc())
	switch {
	case day.Before(today):
		return 24
	case day.After(today):
		return 0
	default:
		return now.Hour()
	}
}

func (s Scheduler) slotReason(hour, firstOpen int, booked, held []Interval) Reason {
	cell := Span(hour, 1)
	switch {
	case hour < s.OpeningHour || hour >= s.ClosingHour:
		return ReasonOutsideHours
	case hour < firstOpen:
		return ReasonPast
	case overlapsAny(cell, booked):
		return ReasonBooked
	case overlapsAny(cell, held):
		return ReasonInCart
	}
	return ReasonNone
}

// Slots lists every start hour from opening to closing-1.
func (s Scheduler) Slots(date time.Time, avail domain.RoomAvailability, held []Interval) []Slot {
	firstOpen := s.firstOpenHour(date)
	booked := bookedCells(avail.BookedHours)
	out := make([]Slot, 0, s.ClosingHour-s.OpeningHour)
	for h := s.OpeningHour; h < s.ClosingHour; h++ {
		r := s.slotReason(h, firstOpen, booked, held)
		out = append(out, Slot{Hour: h, Selectable: r == ReasonNone, Reason: r})
	}
	return out
}

func (s Scheduler) packageReason(span Interval, booked, held []Interval) Reason {
	switch {
	case span.Hours() <= 0:
		return ReasonOutsideHours
	case span.End > s.ClosingHour:
		return ReasonPastClosing
	case overlapsAny(span, booked):
		return ReasonBooked
	case overlapsAny(span, held):
		return ReasonInCart
	}
	return ReasonNone
}

// Packages evaluates every package of the room for a chosen start hour.
// When the start slot itself is unselectable every package is invalid.
func (s Scheduler) Packages(date time.Time, avail domain.RoomAvailability, held []Interval, startHour int) []PackageOption {
	booked := bookedCells(avail.BookedHours)
	slot := s.slotReason(startHour, s.firstOpenHour(date), booked, held)
	out := make([]PackageOption, 0, len(avail.Packages))
	for _, p := range avail.Packages {
		r := ReasonSlotUnavailable
		if slot == ReasonNone {
			r = s.packageReason(Span(startHour, p.DurationHours), booked, held)
		}
		out = append(out, PackageOption{Package: p, Valid: r == ReasonNone, Reason: r})
	}
	return out
}

// Check validates one reservation. It fails with SlotConflict when either the
// start slot or the full span is unavailable.
func (s Scheduler) Check(date time.Time, avail domain.RoomAvailability, held []Interval, startHour, durationHours int) error {
	booked := bookedCells(avail.BookedHours)
	if r := s.slotReason(startHour, s.firstOpenHour(date), booked, held); r != ReasonNone {
		return domain.Ef(domain.CodeSlotConflict, "room %s: start %02d:00 unavailable (%s)", avail.Room.ID, startHour, r)
	}
	span := Span(startHour, durationHours)
	if r := s.packageReason(span, booked, held); r != ReasonNone {
		return domain.Ef(domain.CodeSlotConflict, "room %s: %s unavailable (%s)", avail.Room.ID, span, r)
	}
	return nil
}

// RoomCheck binds a scheduler to one room's availability on one date.
type RoomCheck struct {
	s     Scheduler
	date  time.Time
	avail domain.RoomAvailability
}

func (s Scheduler) ForRoom(date time.Time, avail domain.RoomAvailability) RoomCheck {
	return RoomCheck{s: s, date: date, avail: avail}
}

func (c RoomCheck) ValidateSlot(roomID string, startHour, durationHours int, held []Interval) error {
	if roomID != c.avail.Room.ID {
		return domain.Ef(domain.CodeUnknownRoom, "no availability loaded for room %s", roomID)
	}
	return c.s.Check(c.date, c.avail, held, startHour, durationHours)
}
