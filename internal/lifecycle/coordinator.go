// Package lifecycle drives one terminal's order from draft to payment.
//
// A Coordinator owns the cart ledger, the discount and the order header for
// the order on screen. Pricing and availability are recomputed from that
// state on every View. Remote calls (save, pay, resume, availability) run
// without holding the lock so cart edits stay possible while a commit is in
// flight; a second commit is rejected with CommitInFlight until the first
// resolves.
package lifecycle

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"pos-terminal/internal/booking"
	"pos-terminal/internal/cart"
	"pos-terminal/internal/common/logger"
	"pos-terminal/internal/domain"
	"pos-terminal/internal/pricing"
)

// Backend is the order service.
type Backend interface {
	CreateOrder(ctx context.Context, snap domain.OrderSnapshot) (domain.CommitResult, error)
	UpdateOrder(ctx context.Context, orderID string, snap domain.OrderSnapshot) (domain.CommitResult, error)
	FinalizeOrder(ctx context.Context, orderID string, snap domain.OrderSnapshot) (domain.CommitResult, error)
	FetchOrder(ctx context.Context, orderID string) (domain.SavedOrder, error)
}

// SessionSource reports the open cashier session; a nil session means none.
type SessionSource interface {
	CurrentSession(ctx context.Context) (*domain.Session, error)
}

// Catalog is satisfied by *catalog.Cache.
type Catalog interface {
	Product(id string) (domain.Product, bool)
	TaxRatePercent() decimal.Decimal
	HasOrderType(t domain.OrderType) bool
}

// Availability is satisfied by *catalog.Index.
type Availability interface {
	Refresh(ctx context.Context, date time.Time) error
	Room(roomID string) (domain.RoomAvailability, bool)
	Rooms() []domain.RoomAvailability
	Date() time.Time
}

type State string

const (
	StateDraft State = "draft"
	StateSaved State = "saved"
	StatePaid  State = "paid"
)

type Header struct {
	CustomerLabel string           `json:"customer_label"`
	OrderType     domain.OrderType `json:"order_type"`
	LocationLabel string           `json:"location_label,omitempty"`
}

type Payment struct {
	Method    domain.PaymentMethod
	CashGiven decimal.Decimal // read for cash only
}

type Receipt struct {
	OrderID     string               `json:"order_id"`
	OrderNumber string               `json:"order_number"`
	Header      Header               `json:"header"`
	Lines       []cart.Line          `json:"-"`
	Totals      pricing.Totals       `json:"totals"`
	Method      domain.PaymentMethod `json:"payment_method"`
	CashGiven   *decimal.Decimal     `json:"cash_given,omitempty"`
	Change      decimal.Decimal      `json:"change"`
	PaidAt      time.Time            `json:"paid_at"`
}

type Options struct {
	Catalog      Catalog
	Availability Availability
	Scheduler    booking.Scheduler
	Backend      Backend
	Sessions     SessionSource
	// RoomTaxRatePercent taxes room subtotals net of their discount share.
	RoomTaxRatePercent decimal.Decimal
	Logger             *logger.Logger
	Now                func() time.Time
}

type commitKind int

const (
	commitSave commitKind = iota + 1
	commitPay
)

type Coordinator struct {
	opts Options

	mu            sync.Mutex
	state         State
	header        Header
	editingID     string
	editingNumber string
	ledger        *cart.Ledger
	discount      decimal.Decimal
	bookingDate   time.Time // zero outside booking mode
	selectedRoom  string
	// hours the order under edit already holds, per room; shown as free
	released map[string][]int

	busy        bool
	resuming    bool // the cart is about to be replaced; edits are refused
	rev         uint64
	requestID   string
	requestKind commitKind

	lastCommit  *domain.CommitResult
	lastReceipt *Receipt
}

func New(opts Options) *Coordinator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	return &Coordinator{opts: opts, state: StateDraft, ledger: cart.NewLedger()}
}

// touch marks a content change; the next commit gets a fresh request id.
func (c *Coordinator) touch() {
	c.rev++
	c.requestID = ""
}

func (c *Coordinator) midEdit() bool {
	return c.state == StateDraft && (c.editingID != "" || !c.ledger.IsEmpty())
}

func (c *Coordinator) requireDraft() error {
	if c.state != StateDraft {
		return domain.Ef(domain.CodeInvalidTransition, "order is %s; start a new order or resume one first", c.state)
	}
	return nil
}

// requireEditable gates cart and header edits.
func (c *Coordinator) requireEditable() error {
	if c.resuming {
		return domain.E(domain.CodeCommitInFlight, "an order is being resumed")
	}
	return c.requireDraft()
}

func (c *Coordinator) resetLocked() {
	c.state = StateDraft
	c.header = Header{}
	c.editingID, c.editingNumber = "", ""
	c.ledger.Clear()
	c.discount = decimal.Zero
	c.bookingDate = time.Time{}
	c.selectedRoom = ""
	c.released = nil
	c.touch()
}

func (c *Coordinator) validateHeader(h Header) (Header, error) {
	h.CustomerLabel = strings.TrimSpace(h.CustomerLabel)
	h.LocationLabel = strings.TrimSpace(h.LocationLabel)
	if !h.OrderType.Valid() || !c.opts.Catalog.HasOrderType(h.OrderType) {
		return h, domain.Ef(domain.CodeInvalidOrderType, "order type %q not offered", h.OrderType)
	}
	if h.OrderType.RequiresLocation() && h.LocationLabel == "" {
		return h, domain.Ef(domain.CodeLocationRequired, "%s orders need a location label", h.OrderType)
	}
	return h, nil
}

// StartNewOrder discards nothing: it fails while an order is mid-edit.
func (c *Coordinator) StartNewOrder(h Header) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return domain.E(domain.CodeCommitInFlight, "wait for the pending commit")
	}
	if c.midEdit() {
		return domain.E(domain.CodeInvalidTransition, "an order is being edited; save, pay or cancel it first")
	}
	h, err := c.validateHeader(h)
	if err != nil {
		return err
	}
	c.resetLocked()
	c.header = h
	c.lastCommit, c.lastReceipt = nil, nil
	return nil
}

// SetHeader changes the customer, order type or location of the draft.
func (c *Coordinator) SetHeader(h Header) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireEditable(); err != nil {
		return err
	}
	h, err := c.validateHeader(h)
	if err != nil {
		return err
	}
	c.header = h
	c.touch()
	return nil
}

func (c *Coordinator) SetDiscount(percent decimal.Decimal) error {
	if err := pricing.ValidateDiscount(percent); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireEditable(); err != nil {
		return err
	}
	c.discount = percent
	c.touch()
	return nil
}

func (c *Coordinator) AddProduct(productID string, quantity int, note string) (cart.LineKey, error) {
	p, ok := c.opts.Catalog.Product(productID)
	if !ok {
		return cart.LineKey{}, domain.Ef(domain.CodeUnknownProduct, "product %s not in catalog", productID)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireEditable(); err != nil {
		return cart.LineKey{}, err
	}
	k, err := c.ledger.AddProduct(p, quantity, note)
	if err != nil {
		return cart.LineKey{}, err
	}
	c.touch()
	return k, nil
}

// AddRoom reserves roomID from startHour for the package of durationHours on
// the booking date.
func (c *Coordinator) AddRoom(roomID string, startHour, durationHours int) (cart.LineKey, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireEditable(); err != nil {
		return cart.LineKey{}, err
	}
	if c.bookingDate.IsZero() {
		return cart.LineKey{}, domain.E(domain.CodeInvalidTransition, "enter booking mode first")
	}
	avail, ok := c.roomLocked(roomID)
	if !ok {
		return cart.LineKey{}, domain.Ef(domain.CodeUnknownRoom, "room %s has no availability for %s", roomID, c.bookingDate.Format(time.DateOnly))
	}
	pkg, ok := avail.Package(durationHours)
	if !ok {
		return cart.LineKey{}, domain.Ef(domain.CodeUnknownPackage, "room %s has no %dh package", roomID, durationHours)
	}
	k, err := c.ledger.AddRoomReservation(avail.Room, startHour, pkg, c.opts.Scheduler.ForRoom(c.bookingDate, avail))
	if err != nil {
		return cart.LineKey{}, err
	}
	c.selectedRoom = roomID
	c.touch()
	return k, nil
}

func (c *Coordinator) UpdateQuantity(k cart.LineKey, quantity int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireEditable(); err != nil {
		return err
	}
	if err := c.ledger.UpdateQuantity(k, quantity); err != nil {
		return err
	}
	c.touch()
	return nil
}

func (c *Coordinator) RemoveLine(k cart.LineKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireEditable(); err != nil {
		return err
	}
	if _, ok := c.ledger.Line(k); !ok {
		return nil
	}
	c.ledger.RemoveLine(k)
	c.touch()
	return nil
}

// EnterBookingMode loads room availability for date. Every room line of an
// order shares one date, so switching dates needs an empty room side.
func (c *Coordinator) EnterBookingMode(ctx context.Context, date time.Time) error {
	date = c.dayOf(date)
	c.mu.Lock()
	if err := c.requireEditable(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.ledger.HasRooms() && !c.bookingDate.Equal(date) {
		c.mu.Unlock()
		return domain.Ef(domain.CodeInvalidTransition, "cart already holds rooms for %s", c.bookingDate.Format(time.DateOnly))
	}
	c.mu.Unlock()

	if err := c.opts.Availability.Refresh(ctx, date); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ledger.HasRooms() && !c.bookingDate.Equal(date) {
		return domain.Ef(domain.CodeInvalidTransition, "cart already holds rooms for %s", c.bookingDate.Format(time.DateOnly))
	}
	if !c.bookingDate.Equal(date) {
		c.selectedRoom = ""
	}
	c.bookingDate = date
	return nil
}

func (c *Coordinator) SelectRoom(roomID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bookingDate.IsZero() {
		return domain.E(domain.CodeInvalidTransition, "enter booking mode first")
	}
	if _, ok := c.roomLocked(roomID); !ok {
		return domain.Ef(domain.CodeUnknownRoom, "room %s not found", roomID)
	}
	c.selectedRoom = roomID
	return nil
}

// Packages evaluates the selected room's packages for startHour.
func (c *Coordinator) Packages(startHour int) ([]booking.PackageOption, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selectedRoom == "" {
		return nil, domain.E(domain.CodeInvalidTransition, "select a room first")
	}
	avail, ok := c.roomLocked(c.selectedRoom)
	if !ok {
		return nil, domain.Ef(domain.CodeUnknownRoom, "room %s not found", c.selectedRoom)
	}
	return c.opts.Scheduler.Packages(c.bookingDate, avail, c.ledger.RoomReservations(avail.Room.ID), startHour), nil
}

func (c *Coordinator) dayOf(t time.Time) time.Time {
	loc := c.opts.Scheduler.Location
	if loc == nil {
		loc = time.Local
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// roomLocked returns the indexed availability for the booking date, with
// hours held by the order under edit treated as free.
func (c *Coordinator) roomLocked(roomID string) (domain.RoomAvailability, bool) {
	if !c.opts.Availability.Date().Equal(c.bookingDate) {
		return domain.RoomAvailability{}, false
	}
	avail, ok := c.opts.Availability.Room(roomID)
	if !ok {
		return avail, false
	}
	own := c.released[roomID]
	if len(own) == 0 {
		return avail, true
	}
	free := make(map[int]bool, len(own))
	for _, h := range own {
		free[h] = true
	}
	kept := make([]int, 0, len(avail.BookedHours))
	for _, h := range avail.BookedHours {
		if !free[h] {
			kept = append(kept, h)
		}
	}
	avail.BookedHours = kept
	return avail, true
}

func releasedHours(items []domain.OrderItem) map[string][]int {
	var out map[string][]int
	for _, it := range items {
		if it.Kind != domain.ItemRoom {
			continue
		}
		if out == nil {
			out = make(map[string][]int)
		}
		for h := it.StartHour; h < it.StartHour+it.DurationHours; h++ {
			out[it.RoomID] = append(out[it.RoomID], h)
		}
	}
	return out
}

func (c *Coordinator) totalsLocked() pricing.Totals {
	return pricing.ComputeTotalsWithRoomTax(c.ledger.Lines(), c.discount, c.opts.Catalog.TaxRatePercent(), c.opts.RoomTaxRatePercent)
}

// Cancel drops the draft and any edit reference. Persisted orders are untouched.
func (c *Coordinator) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return domain.E(domain.CodeCommitInFlight, "wait for the pending commit")
	}
	editing := c.editingID
	c.resetLocked()
	c.lastCommit, c.lastReceipt = nil, nil
	c.opts.Logger.Info("order_cancelled", map[string]any{"editing_order_id": editing})
	return nil
}
