package features

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/cucumber/godog"
	"github.com/shopspring/decimal"

	"pos-terminal/internal/booking"
	"pos-terminal/internal/catalog"
	"pos-terminal/internal/common/logger"
	"pos-terminal/internal/domain"
	"pos-terminal/internal/lifecycle"
	"pos-terminal/internal/pricing"
)

var (
	clock       = time.Date(2026, 10, 14, 7, 0, 0, 0, time.UTC)
	bookingDate = time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)
)

type catalogSource struct{ cat domain.Catalog }

func (s *catalogSource) LoadCatalog(context.Context) (domain.Catalog, error) { return s.cat, nil }

type roomSource struct {
	rooms map[string]*domain.RoomAvailability
}

func (s *roomSource) LoadRoomAvailability(context.Context, time.Time) ([]domain.RoomAvailability, error) {
	out := make([]domain.RoomAvailability, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, *r)
	}
	return out, nil
}

type sessionSource struct{ open bool }

func (s *sessionSource) CurrentSession(context.Context) (*domain.Session, error) {
	if !s.open {
		return nil, nil
	}
	return &domain.Session{ID: "shift-1", Cashier: "dina"}, nil
}

type orderService struct {
	orders    map[string]domain.SavedOrder
	finalized int
}

func (o *orderService) CreateOrder(_ context.Context, snap domain.OrderSnapshot) (domain.CommitResult, error) {
	id := fmt.Sprintf("o-%d", len(o.orders)+1)
	res := domain.CommitResult{OrderID: id, OrderNumber: fmt.Sprintf("ORD_20261014_%03d", len(o.orders)+1)}
	o.orders[id] = domain.SavedOrder{OrderID: id, OrderNumber: res.OrderNumber, OrderSnapshot: snap}
	return res, nil
}

func (o *orderService) UpdateOrder(_ context.Context, id string, snap domain.OrderSnapshot) (domain.CommitResult, error) {
	so, ok := o.orders[id]
	if !ok {
		return domain.CommitResult{}, domain.E(domain.CodeNotFound, id)
	}
	so.OrderSnapshot = snap
	o.orders[id] = so
	return domain.CommitResult{OrderID: id, OrderNumber: so.OrderNumber}, nil
}

func (o *orderService) FinalizeOrder(ctx context.Context, id string, snap domain.OrderSnapshot) (domain.CommitResult, error) {
	res, err := o.UpdateOrder(ctx, id, snap)
	if err == nil {
		o.finalized++
	}
	return res, err
}

func (o *orderService) FetchOrder(_ context.Context, id string) (domain.SavedOrder, error) {
	so, ok := o.orders[id]
	if !ok {
		return domain.SavedOrder{}, domain.E(domain.CodeNotFound, id)
	}
	return so, nil
}

type checkoutContext struct {
	catalog   *catalogSource
	rooms     *roomSource
	sessions  *sessionSource
	orders    *orderService
	opening   int
	closing   int
	c         *lifecycle.Coordinator
	err       error
	lastSaved string
	receipt   lifecycle.Receipt
}

func (tc *checkoutContext) reset() {
	tc.catalog = &catalogSource{}
	tc.rooms = &roomSource{rooms: map[string]*domain.RoomAvailability{}}
	tc.sessions = &sessionSource{}
	tc.orders = &orderService{orders: map[string]domain.SavedOrder{}}
	tc.opening, tc.closing = 8, 22
	tc.c = nil
	tc.err = nil
	tc.lastSaved = ""
	tc.receipt = lifecycle.Receipt{}
}

func (tc *checkoutContext) room(id string) *domain.RoomAvailability {
	r, ok := tc.rooms.rooms[id]
	if !ok {
		r = &domain.RoomAvailability{Room: domain.Room{ID: id, Name: "Room " + id}}
		tc.rooms.rooms[id] = r
	}
	return r
}

func (tc *checkoutContext) productPriced(id string, price int) error {
	tc.catalog.cat.Products = append(tc.catalog.cat.Products, domain.Product{
		ID: id, Name: "Product " + id, Price: decimal.NewFromInt(int64(price)),
	})
	return nil
}

func (tc *checkoutContext) taxRate(pct int) error {
	tc.catalog.cat.TaxRatePercent = decimal.NewFromInt(int64(pct))
	return nil
}

func (tc *checkoutContext) roomBookedAt(id, hours string) error {
	r := tc.room(id)
	for _, h := range strings.Split(hours, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(h))
		if err != nil {
			return err
		}
		r.BookedHours = append(r.BookedHours, n)
	}
	return nil
}

func (tc *checkoutContext) roomOffersPackage(id string, hours, price int) error {
	r := tc.room(id)
	r.Packages = append(r.Packages, domain.DurationPackage{DurationHours: hours, Price: decimal.NewFromInt(int64(price))})
	return nil
}

func (tc *checkoutContext) terminalHours(opening, closing int) error {
	tc.opening, tc.closing = opening, closing
	return nil
}

func (tc *checkoutContext) sessionOpen() error {
	tc.sessions.open = true
	return nil
}

func (tc *checkoutContext) sessionClosed() error {
	tc.sessions.open = false
	return nil
}

func (tc *checkoutContext) newOrder(orderType, customer string) error {
	cache := catalog.NewCache(tc.catalog, nil, logger.NewNop())
	if err := cache.Load(context.Background()); err != nil {
		return err
	}
	sched := booking.NewScheduler(tc.opening, tc.closing, time.UTC)
	sched.Now = func() time.Time { return clock }
	tc.c = lifecycle.New(lifecycle.Options{
		Catalog:      cache,
		Availability: catalog.NewIndex(tc.rooms),
		Scheduler:    sched,
		Backend:      tc.orders,
		Sessions:     tc.sessions,
		Now:          func() time.Time { return clock },
	})
	return tc.c.StartNewOrder(lifecycle.Header{CustomerLabel: customer, OrderType: domain.OrderType(orderType)})
}

func (tc *checkoutContext) addProduct(qty int, id string) error {
	_, err := tc.c.AddProduct(id, qty, "")
	return err
}

func (tc *checkoutContext) addProductWithNote(qty int, id, note string) error {
	_, err := tc.c.AddProduct(id, qty, note)
	return err
}

func (tc *checkoutContext) setDiscount(pct int) error {
	return tc.c.SetDiscount(decimal.NewFromInt(int64(pct)))
}

func (tc *checkoutContext) bookRoom(id string, start, hours int) error {
	if tc.c.View().BookingDate.IsZero() {
		if err := tc.c.EnterBookingMode(context.Background(), bookingDate); err != nil {
			return err
		}
	}
	_, tc.err = tc.c.AddRoom(id, start, hours)
	return nil
}

func (tc *checkoutContext) payCash(amount int) error {
	tc.receipt, tc.err = tc.c.Pay(context.Background(), lifecycle.Payment{
		Method: domain.PaymentCash, CashGiven: decimal.NewFromInt(int64(amount)),
	})
	return nil
}

func (tc *checkoutContext) payBy(method string) error {
	tc.receipt, tc.err = tc.c.Pay(context.Background(), lifecycle.Payment{Method: domain.PaymentMethod(method)})
	return nil
}

func (tc *checkoutContext) saveOrder() error {
	var res domain.CommitResult
	res, tc.err = tc.c.Save(context.Background())
	if tc.err == nil {
		tc.lastSaved = res.OrderID
	}
	return nil
}

func (tc *checkoutContext) resumeLastSaved() error {
	if tc.lastSaved == "" {
		return errors.New("no order saved in this scenario")
	}
	return tc.c.ResumeEditing(context.Background(), tc.lastSaved)
}

func (tc *checkoutContext) operationFailsWith(code string) error {
	if tc.err == nil {
		return fmt.Errorf("expected %s, operation succeeded", code)
	}
	if got := domain.CodeOf(tc.err); string(got) != code {
		return fmt.Errorf("expected %s, got %s (%v)", code, got, tc.err)
	}
	return nil
}

func (tc *checkoutContext) operationSucceeds() error {
	if tc.err != nil {
		return fmt.Errorf("expected success, got %v", tc.err)
	}
	return nil
}

func (tc *checkoutContext) cartHasLines(n int) error {
	if got := len(tc.c.View().Lines); got != n {
		return fmt.Errorf("expected %d lines, got %d", n, got)
	}
	return nil
}

func (tc *checkoutContext) orderState(state string) error {
	if got := tc.c.View().State; string(got) != state {
		return fmt.Errorf("expected state %s, got %s", state, got)
	}
	return nil
}

func (tc *checkoutContext) changeDue(amount int) error {
	if !tc.receipt.Change.Equal(decimal.NewFromInt(int64(amount))) {
		return fmt.Errorf("expected change %d, got %s", amount, tc.receipt.Change)
	}
	return nil
}

func (tc *checkoutContext) finalized(n int) error {
	if tc.orders.finalized != n {
		return fmt.Errorf("expected %d finalized orders, got %d", n, tc.orders.finalized)
	}
	return nil
}

func totalsStep(tc *checkoutContext, name string, pick func(pricing.Totals) decimal.Decimal) func(int) error {
	return func(want int) error {
		got := pick(tc.c.View().Totals)
		if !got.Equal(decimal.NewFromInt(int64(want))) {
			return fmt.Errorf("expected %s %d, got %s", name, want, got)
		}
		return nil
	}
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &checkoutContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	// Given steps
	ctx.Step(`^product "([^"]*)" priced (\d+)$`, tc.productPriced)
	ctx.Step(`^the food and beverage tax rate is (\d+) percent$`, tc.taxRate)
	ctx.Step(`^room "([^"]*)" is booked at hours "([^"]*)"$`, tc.roomBookedAt)
	ctx.Step(`^room "([^"]*)" offers a (\d+) hour package for (\d+)$`, tc.roomOffersPackage)
	ctx.Step(`^the terminal opens at (\d+) and closes at (\d+)$`, tc.terminalHours)
	ctx.Step(`^the cashier session is open$`, tc.sessionOpen)
	ctx.Step(`^the cashier session is closed$`, tc.sessionClosed)
	ctx.Step(`^a new (\w+) order for "([^"]*)"$`, tc.newOrder)

	// When steps
	ctx.Step(`^I add (\d+) of product "([^"]*)"$`, tc.addProduct)
	ctx.Step(`^I add (\d+) of product "([^"]*)" with note "([^"]*)"$`, tc.addProductWithNote)
	ctx.Step(`^I set the discount to (\d+) percent$`, tc.setDiscount)
	ctx.Step(`^I book room "([^"]*)" at (\d+) for (\d+) hours$`, tc.bookRoom)
	ctx.Step(`^I pay (\d+) in cash$`, tc.payCash)
	ctx.Step(`^I pay by "([^"]*)"$`, tc.payBy)
	ctx.Step(`^I save the order$`, tc.saveOrder)
	ctx.Step(`^I resume the last saved order$`, tc.resumeLastSaved)

	// Then steps
	ctx.Step(`^the operation fails with "([^"]*)"$`, tc.operationFailsWith)
	ctx.Step(`^the operation succeeds$`, tc.operationSucceeds)
	ctx.Step(`^the cart has (\d+) lines$`, tc.cartHasLines)
	ctx.Step(`^the order state is "([^"]*)"$`, tc.orderState)
	ctx.Step(`^the change due is (\d+)$`, tc.changeDue)
	ctx.Step(`^the order service finalized (\d+) order$`, tc.finalized)
	ctx.Step(`^the subtotal is (\d+)$`, totalsStep(tc, "subtotal", func(t pricing.Totals) decimal.Decimal { return t.Subtotal }))
	ctx.Step(`^the product subtotal is (\d+)$`, totalsStep(tc, "product subtotal", func(t pricing.Totals) decimal.Decimal { return t.SubtotalProduct }))
	ctx.Step(`^the room subtotal is (\d+)$`, totalsStep(tc, "room subtotal", func(t pricing.Totals) decimal.Decimal { return t.SubtotalRoom }))
	ctx.Step(`^the discount nominal is (\d+)$`, totalsStep(tc, "discount", func(t pricing.Totals) decimal.Decimal { return t.DiscountNominal }))
	ctx.Step(`^the product discount share is (\d+)$`, totalsStep(tc, "product discount share", func(t pricing.Totals) decimal.Decimal { return t.ProductDiscountShare }))
	ctx.Step(`^the taxable amount is (\d+)$`, totalsStep(tc, "taxable amount", func(t pricing.Totals) decimal.Decimal { return t.TaxableAmount }))
	ctx.Step(`^the tax is (\d+)$`, totalsStep(tc, "tax", func(t pricing.Totals) decimal.Decimal { return t.TaxNominal }))
	ctx.Step(`^the grand total is (\d+)$`, totalsStep(tc, "grand total", func(t pricing.Totals) decimal.Decimal { return t.GrandTotal }))
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"checkout.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
