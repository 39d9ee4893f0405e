package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pos-terminal/internal/cart"
	"pos-terminal/internal/domain"
	"pos-terminal/internal/pricing"
)

// pendingCommit is what a commit captured under the lock.
type pendingCommit struct {
	kind      commitKind
	rev       uint64
	editingID string
	snap      domain.OrderSnapshot
	lines     []cart.Line
	totals    pricing.Totals
	header    Header
}

// beginCommit runs the local checks, marks the coordinator busy and captures
// the snapshot. Callers must hold c.mu.
func (c *Coordinator) beginCommit(kind commitKind, pay *Payment) (*pendingCommit, error) {
	if c.busy {
		return nil, domain.E(domain.CodeCommitInFlight, "a commit is already in flight")
	}
	if err := c.requireDraft(); err != nil {
		return nil, err
	}
	if c.ledger.IsEmpty() {
		return nil, domain.E(domain.CodeEmptyCartCommit, "cart is empty")
	}
	if !c.header.OrderType.Valid() {
		return nil, domain.E(domain.CodeInvalidOrderType, "start the order with an order type first")
	}

	lines := c.ledger.Lines()
	tot := c.totalsLocked()

	if pay != nil {
		if !pay.Method.Valid() {
			return nil, domain.Ef(domain.CodePaymentMethodRequired, "payment method %q", pay.Method)
		}
		if pay.Method == domain.PaymentCash && !tot.Covers(pay.CashGiven) {
			return nil, domain.Ef(domain.CodeInsufficientPayment, "cash %s does not cover total %s",
				pay.CashGiven.StringFixed(2), tot.GrandTotal.StringFixed(2))
		}
	}

	if c.requestID == "" || c.requestKind != kind {
		c.requestID = uuid.NewString()
		c.requestKind = kind
	}

	snap := domain.OrderSnapshot{
		RequestID:       c.requestID,
		Status:          domain.StatusSaved,
		CustomerLabel:   c.header.CustomerLabel,
		OrderType:       c.header.OrderType,
		LocationLabel:   c.header.LocationLabel,
		Items:           c.ledger.OrderItems(),
		DiscountPercent: c.discount,
		Subtotal:        tot.Subtotal,
		DiscountAmount:  tot.DiscountNominal,
		TaxAmount:       tot.TotalTax(),
		TotalAmount:     tot.GrandTotal,
	}
	if c.ledger.HasRooms() {
		snap.BookingDate = c.bookingDate
	}
	if pay != nil {
		snap.Status = domain.StatusPaid
		snap.PaymentMethod = pay.Method
		if pay.Method == domain.PaymentCash {
			cash := pay.CashGiven
			snap.CashGiven = &cash
		}
	}

	c.busy = true
	return &pendingCommit{
		kind:      kind,
		rev:       c.rev,
		editingID: c.editingID,
		snap:      snap,
		lines:     lines,
		totals:    tot,
		header:    c.header,
	}, nil
}

// attachSession fills in the session id or clears busy on failure.
func (c *Coordinator) attachSession(ctx context.Context, p *pendingCommit) error {
	sess, err := c.opts.Sessions.CurrentSession(ctx)
	if err == nil && sess == nil {
		err = domain.E(domain.CodeNoActiveSession, "no open cashier session")
	}
	if err != nil {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
		if domain.CodeOf(err) == "" {
			err = domain.Wrap(domain.CodeRemoteUnavailable, "session lookup", err)
		}
		return err
	}
	p.snap.SessionID = sess.ID
	return nil
}

func remoteError(op string, err error) error {
	if domain.IsRemote(err) {
		return err
	}
	return domain.Wrap(domain.CodeRemoteUnavailable, op, err)
}

// failCommitLocked releases busy and keeps the request id for a retry of the
// same content.
func (c *Coordinator) failCommitLocked(p *pendingCommit, err error) error {
	c.busy = false
	c.opts.Logger.Error("commit_failed", err, map[string]any{
		"request_id": p.snap.RequestID,
		"status":     string(p.snap.Status),
		"order_id":   p.editingID,
		"code":       string(domain.CodeOf(err)),
	})
	return err
}

// Save persists the draft without payment. A new order is created; an order
// under edit is updated in place.
func (c *Coordinator) Save(ctx context.Context) (domain.CommitResult, error) {
	c.mu.Lock()
	p, err := c.beginCommit(commitSave, nil)
	c.mu.Unlock()
	if err != nil {
		return domain.CommitResult{}, err
	}
	if err := c.attachSession(ctx, p); err != nil {
		return domain.CommitResult{}, err
	}

	var res domain.CommitResult
	if p.editingID == "" {
		res, err = c.opts.Backend.CreateOrder(ctx, p.snap)
	} else {
		res, err = c.opts.Backend.UpdateOrder(ctx, p.editingID, p.snap)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		return domain.CommitResult{}, c.failCommitLocked(p, remoteError("save order", err))
	}
	c.busy = false
	c.requestID = ""
	c.lastCommit = &res
	c.lastReceipt = nil

	if c.rev != p.rev {
		// edits arrived while saving: keep them as an edit of the saved order
		c.editingID, c.editingNumber = res.OrderID, res.OrderNumber
		c.released = releasedHours(p.snap.Items)
		c.opts.Logger.Warn("cart_changed_during_save", nil, map[string]any{"order_id": res.OrderID})
	} else {
		c.state = StateSaved
		c.editingID, c.editingNumber = "", ""
		c.ledger.Clear()
		c.discount = decimal.Zero
		c.bookingDate = time.Time{}
		c.selectedRoom = ""
		c.released = nil
	}
	c.opts.Logger.Info("order_saved", map[string]any{
		"order_id":     res.OrderID,
		"order_number": res.OrderNumber,
		"request_id":   p.snap.RequestID,
		"total":        p.totals.GrandTotal.StringFixed(2),
		"items":        len(p.snap.Items),
	})
	return res, nil
}

// Pay commits the draft as paid: create for a new order, finalize for one
// under edit. On success the ledger is cleared and a receipt is returned.
func (c *Coordinator) Pay(ctx context.Context, pay Payment) (Receipt, error) {
	c.mu.Lock()
	p, err := c.beginCommit(commitPay, &pay)
	c.mu.Unlock()
	if err != nil {
		return Receipt{}, err
	}
	if err := c.attachSession(ctx, p); err != nil {
		return Receipt{}, err
	}

	var res domain.CommitResult
	if p.editingID == "" {
		res, err = c.opts.Backend.CreateOrder(ctx, p.snap)
	} else {
		res, err = c.opts.Backend.FinalizeOrder(ctx, p.editingID, p.snap)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		return Receipt{}, c.failCommitLocked(p, remoteError("pay order", err))
	}

	rc := Receipt{
		OrderID:     res.OrderID,
		OrderNumber: res.OrderNumber,
		Header:      p.header,
		Lines:       p.lines,
		Totals:      p.totals,
		Method:      pay.Method,
		CashGiven:   p.snap.CashGiven,
		Change:      decimal.Zero,
		PaidAt:      c.opts.Now(),
	}
	if pay.Method == domain.PaymentCash {
		rc.Change = p.totals.ChangeDue(pay.CashGiven)
	}

	if c.rev != p.rev {
		c.opts.Logger.Warn("cart_edits_discarded", nil, map[string]any{"order_id": res.OrderID})
	}
	c.busy = false
	header := c.header
	c.resetLocked()
	c.header = header
	c.state = StatePaid
	c.lastCommit = &res
	c.lastReceipt = &rc

	c.opts.Logger.Info("order_paid", map[string]any{
		"order_id":       res.OrderID,
		"order_number":   res.OrderNumber,
		"request_id":     p.snap.RequestID,
		"payment_method": string(pay.Method),
		"total":          p.totals.GrandTotal.StringFixed(2),
		"change":         rc.Change.StringFixed(2),
	})
	return rc, nil
}

// ResumeEditing loads a saved order back into the ledger.
func (c *Coordinator) ResumeEditing(ctx context.Context, orderID string) error {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return domain.E(domain.CodeCommitInFlight, "wait for the pending commit")
	}
	if c.midEdit() {
		c.mu.Unlock()
		return domain.E(domain.CodeInvalidTransition, "an order is being edited; save, pay or cancel it first")
	}
	c.busy, c.resuming = true, true
	c.mu.Unlock()

	done := func(err error) error {
		c.mu.Lock()
		c.busy, c.resuming = false, false
		c.mu.Unlock()
		return err
	}

	saved, err := c.opts.Backend.FetchOrder(ctx, orderID)
	if err != nil {
		if domain.CodeOf(err) == domain.CodeNotFound {
			return done(err)
		}
		return done(remoteError("fetch order", err))
	}
	if saved.Status != domain.StatusSaved {
		return done(domain.Ef(domain.CodeInvalidTransition, "order %s is %s", orderID, saved.Status))
	}
	lines := make([]cart.Line, 0, len(saved.Items))
	hasRooms := false
	for _, it := range saved.Items {
		ln, err := cart.LineFromItem(it)
		if err != nil {
			return done(err)
		}
		hasRooms = hasRooms || ln.Room != nil
		lines = append(lines, ln)
	}
	restored := cart.NewLedger()
	if err := restored.Restore(lines); err != nil {
		return done(err)
	}

	var date time.Time
	if hasRooms {
		date = c.dayOf(saved.BookingDate)
		if err := c.opts.Availability.Refresh(ctx, date); err != nil {
			return done(err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy, c.resuming = false, false
	c.resetLocked()
	c.ledger = restored
	c.header = Header{
		CustomerLabel: saved.CustomerLabel,
		OrderType:     saved.OrderType,
		LocationLabel: saved.LocationLabel,
	}
	c.discount = saved.DiscountPercent
	c.editingID = saved.OrderID
	c.editingNumber = saved.OrderNumber
	c.bookingDate = date
	c.released = releasedHours(saved.Items)
	c.lastCommit, c.lastReceipt = nil, nil

	c.opts.Logger.Info("order_resumed", map[string]any{
		"order_id":     saved.OrderID,
		"order_number": saved.OrderNumber,
		"items":        len(lines),
	})
	return nil
}
