package booking

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pos-terminal/internal/domain"
)

func fixedScheduler(now time.Time) Scheduler {
	s := NewScheduler(8, 22, time.UTC)
	s.Now = func() time.Time { return now }
	return s
}

func roomR() domain.RoomAvailability {
	return domain.RoomAvailability{
		Room:        domain.Room{ID: "R", Name: "Karaoke R"},
		BookedHours: []int{14, 15},
		Packages: []domain.DurationPackage{
			{DurationHours: 1, Price: decimal.NewFromInt(60000)},
			{DurationHours: 2, Price: decimal.NewFromInt(110000)},
			{DurationHours: 3, Price: decimal.NewFromInt(150000)},
		},
	}
}

var (
	day     = time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)
	morning = time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)
)

func TestIntervalOverlapIsHalfOpenAndSymmetric(t *testing.T) {
	a := Span(10, 2)
	assert.True(t, a.Overlaps(Span(11, 2)))
	assert.True(t, Span(11, 2).Overlaps(a))
	assert.False(t, a.Overlaps(Span(12, 2)))
	assert.False(t, Span(12, 2).Overlaps(a))
	assert.False(t, Span(8, 2).Overlaps(a))
}

func TestCheck_BookedHoursConflict(t *testing.T) {
	s := fixedScheduler(morning)

	err := s.Check(day, roomR(), nil, 13, 3)
	assert.ErrorIs(t, err, domain.ErrSlotConflict)

	assert.NoError(t, s.Check(day, roomR(), nil, 13, 1))
}

func TestCheck_ClosingBoundaryIsExclusive(t *testing.T) {
	s := fixedScheduler(morning)
	avail := roomR()
	avail.BookedHours = nil

	assert.NoError(t, s.Check(day, avail, nil, 20, 2))
	assert.ErrorIs(t, s.Check(day, avail, nil, 20, 3), domain.ErrSlotConflict)
	assert.ErrorIs(t, s.Check(day, avail, nil, 22, 1), domain.ErrSlotConflict)
}

func TestCheck_CartReservationsConflict(t *testing.T) {
	s := fixedScheduler(morning)
	held := []Interval{Span(10, 2)}

	assert.ErrorIs(t, s.Check(day, roomR(), held, 11, 1), domain.ErrSlotConflict)
	assert.ErrorIs(t, s.Check(day, roomR(), held, 9, 2), domain.ErrSlotConflict)
	assert.NoError(t, s.Check(day, roomR(), held, 12, 2))
}

func TestSlots_Reasons(t *testing.T) {
	s := fixedScheduler(morning)
	slots := s.Slots(day, roomR(), []Interval{Span(10, 2)})

	require.Len(t, slots, 14)
	byHour := map[int]Slot{}
	for _, sl := range slots {
		byHour[sl.Hour] = sl
	}
	assert.Equal(t, ReasonPast, byHour[8].Reason)
	assert.True(t, byHour[9].Selectable, "current hour is still selectable")
	assert.Equal(t, ReasonInCart, byHour[10].Reason)
	assert.Equal(t, ReasonInCart, byHour[11].Reason)
	assert.True(t, byHour[12].Selectable)
	assert.Equal(t, ReasonBooked, byHour[14].Reason)
	assert.Equal(t, ReasonBooked, byHour[15].Reason)
	assert.True(t, byHour[21].Selectable)
}

func TestSlots_OtherDays(t *testing.T) {
	s := fixedScheduler(morning)

	for _, sl := range s.Slots(day.AddDate(0, 0, 1), roomR(), nil) {
		if sl.Hour == 14 || sl.Hour == 15 {
			continue
		}
		assert.True(t, sl.Selectable, "hour %d tomorrow", sl.Hour)
	}
	for _, sl := range s.Slots(day.AddDate(0, 0, -1), roomR(), nil) {
		assert.False(t, sl.Selectable, "hour %d yesterday", sl.Hour)
	}
}

func TestPackages_ForStartHour(t *testing.T) {
	s := fixedScheduler(morning)

	opts := s.Packages(day, roomR(), nil, 13)
	require.Len(t, opts, 3)
	assert.True(t, opts[0].Valid)
	assert.Equal(t, ReasonBooked, opts[1].Reason)
	assert.Equal(t, ReasonBooked, opts[2].Reason)

	opts = s.Packages(day, roomR(), nil, 20)
	assert.True(t, opts[0].Valid)
	assert.True(t, opts[1].Valid)
	assert.Equal(t, ReasonPastClosing, opts[2].Reason)

	opts = s.Packages(day, roomR(), nil, 14)
	for _, o := range opts {
		assert.Equal(t, ReasonSlotUnavailable, o.Reason)
	}
}

func TestRoomCheck_RejectsOtherRoom(t *testing.T) {
	c := fixedScheduler(morning).ForRoom(day, roomR())
	assert.ErrorIs(t, c.ValidateSlot("X", 10, 1, nil), domain.ErrUnknownRoom)
	assert.NoError(t, c.ValidateSlot("R", 10, 1, nil))
}
