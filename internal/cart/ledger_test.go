package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pos-terminal/internal/booking"
	"pos-terminal/internal/domain"
)

var latte = domain.Product{ID: "p-latte", Name: "Latte", CategoryID: "drinks", Price: decimal.NewFromInt(50000)}

type allowAll struct{ held []booking.Interval }

func (a *allowAll) ValidateSlot(_ string, _, _ int, held []booking.Interval) error {
	a.held = held
	return nil
}

type denyAll struct{}

func (denyAll) ValidateSlot(roomID string, start, _ int, _ []booking.Interval) error {
	return domain.Ef(domain.CodeSlotConflict, "room %s at %d taken", roomID, start)
}

var (
	roomR = domain.Room{ID: "R", Name: "Room R"}
	pkg2  = domain.DurationPackage{DurationHours: 2, Price: decimal.NewFromInt(110000)}
)

func TestAddProduct_MergesSameNote(t *testing.T) {
	l := NewLedger()
	k1, err := l.AddProduct(latte, 1, "less sugar")
	require.NoError(t, err)
	k2, err := l.AddProduct(latte, 2, "less sugar")
	require.NoError(t, err)

	assert.Equal(t, k1, k2)
	require.Equal(t, 1, l.Len())
	ln, ok := l.Line(k1)
	require.True(t, ok)
	assert.Equal(t, 3, ln.Product.Quantity)
}

func TestAddProduct_DifferentNotesAreDistinct(t *testing.T) {
	l := NewLedger()
	_, _ = l.AddProduct(latte, 1, "")
	_, _ = l.AddProduct(latte, 1, "oat milk")
	assert.Equal(t, 2, l.Len())
}

func TestAddProduct_NotesAreKeptVerbatim(t *testing.T) {
	l := NewLedger()
	k1, _ := l.AddProduct(latte, 1, "oat milk")
	k2, _ := l.AddProduct(latte, 1, "oat milk ")
	assert.NotEqual(t, k1, k2)
	assert.Equal(t, 2, l.Len())

	ln, ok := l.Line(k2)
	require.True(t, ok)
	assert.Equal(t, "oat milk ", ln.Product.Note)
}

func TestAddProduct_NoteWithDelimiterDoesNotCollide(t *testing.T) {
	assert.NotEqual(t, ProductKey("a|b", "c"), ProductKey("a", "b|c"))
}

func TestAddProduct_InvalidQuantity(t *testing.T) {
	l := NewLedger()
	_, err := l.AddProduct(latte, 0, "")
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	assert.True(t, l.IsEmpty())
}

func TestAddRoomReservation(t *testing.T) {
	l := NewLedger()
	v := &allowAll{}
	k, err := l.AddRoomReservation(roomR, 10, pkg2, v)
	require.NoError(t, err)
	assert.Empty(t, v.held)

	_, err = l.AddRoomReservation(roomR, 10, pkg2, v)
	assert.ErrorIs(t, err, domain.ErrDuplicateReservation)

	_, err = l.AddRoomReservation(roomR, 12, pkg2, v)
	require.NoError(t, err)
	assert.Equal(t, []booking.Interval{{Start: 10, End: 12}}, v.held)

	ln, ok := l.Line(k)
	require.True(t, ok)
	assert.True(t, ln.Amount().Equal(decimal.NewFromInt(110000)))
}

func TestAddRoomReservation_ValidatorRejects(t *testing.T) {
	l := NewLedger()
	_, err := l.AddRoomReservation(roomR, 10, pkg2, denyAll{})
	assert.ErrorIs(t, err, domain.ErrSlotConflict)
	assert.True(t, l.IsEmpty())
}

func TestUpdateQuantity(t *testing.T) {
	l := NewLedger()
	pk, _ := l.AddProduct(latte, 2, "")
	rk, _ := l.AddRoomReservation(roomR, 10, pkg2, &allowAll{})

	require.NoError(t, l.UpdateQuantity(pk, 5))
	ln, _ := l.Line(pk)
	assert.Equal(t, 5, ln.Product.Quantity)

	assert.ErrorIs(t, l.UpdateQuantity(rk, 2), domain.ErrNotRemovable)
	assert.ErrorIs(t, l.UpdateQuantity(rk, 0), domain.ErrNotRemovable)

	require.NoError(t, l.UpdateQuantity(pk, 0))
	_, ok := l.Line(pk)
	assert.False(t, ok, "zero quantity removes the line")

	assert.ErrorIs(t, l.UpdateQuantity(pk, 1), domain.ErrNotFound)
}

func TestRemoveLine_Idempotent(t *testing.T) {
	l := NewLedger()
	pk, _ := l.AddProduct(latte, 1, "")
	_, _ = l.AddProduct(latte, 1, "hot")

	l.RemoveLine(pk)
	once := l.Lines()
	l.RemoveLine(pk)
	assert.Equal(t, once, l.Lines())
	assert.Equal(t, 1, l.Len())
}

func TestLinesReturnsCopies(t *testing.T) {
	l := NewLedger()
	pk, _ := l.AddProduct(latte, 1, "")
	lines := l.Lines()
	lines[0].Product.Quantity = 99

	ln, _ := l.Line(pk)
	assert.Equal(t, 1, ln.Product.Quantity)
}

func TestRestoreRoundTripsOrderItems(t *testing.T) {
	l := NewLedger()
	_, _ = l.AddProduct(latte, 2, "hot")
	_, _ = l.AddRoomReservation(roomR, 10, pkg2, &allowAll{})

	var lines []Line
	for _, it := range l.OrderItems() {
		ln, err := LineFromItem(it)
		require.NoError(t, err)
		lines = append(lines, ln)
	}

	restored := NewLedger()
	require.NoError(t, restored.Restore(lines))
	assert.Equal(t, l.Lines(), restored.Lines())
}

func TestRestoreRejectsDuplicateRooms(t *testing.T) {
	ln := Line{Key: RoomKey("R", 10), Room: &RoomLine{RoomID: "R", StartHour: 10, DurationHours: 1}}
	l := NewLedger()
	_, _ = l.AddProduct(latte, 1, "")

	err := l.Restore([]Line{ln, ln})
	assert.ErrorIs(t, err, domain.ErrDuplicateReservation)
	assert.Equal(t, 1, l.Len(), "failed restore leaves ledger untouched")
}

func TestLineKeyToken(t *testing.T) {
	k := ProductKey("p-latte", "extra shot, no \"foam\"")
	got, err := ParseToken(k.Token())
	require.NoError(t, err)
	assert.Equal(t, k, got)

	_, err = ParseToken("!!!")
	assert.Error(t, err)
}
