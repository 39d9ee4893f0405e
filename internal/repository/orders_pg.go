package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"pos-terminal/internal/domain"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Postgres implements the order service, catalog, availability and session
// lookups for one terminal.
type Postgres struct {
	pool       *pgxpool.Pool
	terminalID string
	loc        *time.Location
}

func NewPostgres(pool *pgxpool.Pool, terminalID string, loc *time.Location) *Postgres {
	if loc == nil {
		loc = time.Local
	}
	return &Postgres{pool: pool, terminalID: terminalID, loc: loc}
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (r *Postgres) Migrate(ctx context.Context) error {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		b, err := migrations.ReadFile(name)
		if err != nil {
			return err
		}
		if _, err := r.pool.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
	}
	return nil
}

func orderNumber(day string, seq int) string {
	return fmt.Sprintf("ORD_%s_%03d", day, seq)
}

// sqlDate keeps the calendar date of t and drops its zone.
func sqlDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func nullDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return sqlDate(t)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (r *Postgres) nextOrderNumber(ctx context.Context, tx pgx.Tx) (string, error) {
	day := time.Now().In(r.loc)
	var seq int
	err := tx.QueryRow(ctx, `
INSERT INTO order_counters (day, last) VALUES ($1, 1)
ON CONFLICT (day) DO UPDATE SET last = order_counters.last + 1
RETURNING last
`, sqlDate(day)).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("failed to allocate order number: %w", err)
	}
	return orderNumber(day.Format("20060102"), seq), nil
}

// CreateOrder inserts a saved or paid order. A repeated request id returns
// the order created by the first attempt.
func (r *Postgres) CreateOrder(ctx context.Context, snap domain.OrderSnapshot) (domain.CommitResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.CommitResult{}, mapError("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var res domain.CommitResult
	err = tx.QueryRow(ctx, `SELECT id, order_number FROM orders WHERE request_id = $1`, snap.RequestID).
		Scan(&res.OrderID, &res.OrderNumber)
	if err == nil {
		return res, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.CommitResult{}, mapError("lookup request", err)
	}

	res.OrderNumber, err = r.nextOrderNumber(ctx, tx)
	if err != nil {
		return domain.CommitResult{}, mapError("create order", err)
	}

	var paidAt any
	if snap.Status == domain.StatusPaid {
		paidAt = time.Now().UTC()
	}
	err = tx.QueryRow(ctx, `
INSERT INTO orders
    (order_number, request_id, session_id, terminal_id, status, customer_label, order_type,
     location_label, booking_date, discount_percent, subtotal, discount_amount, tax_amount,
     total_amount, payment_method, cash_given, paid_at)
VALUES
    ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
RETURNING id
`,
		res.OrderNumber,
		snap.RequestID,
		snap.SessionID,
		r.terminalID,
		string(snap.Status),
		snap.CustomerLabel,
		string(snap.OrderType),
		snap.LocationLabel,
		nullDate(snap.BookingDate),
		snap.DiscountPercent,
		snap.Subtotal,
		snap.DiscountAmount,
		snap.TaxAmount,
		snap.TotalAmount,
		nullString(string(snap.PaymentMethod)),
		snap.CashGiven,
		paidAt,
	).Scan(&res.OrderID)
	if err != nil {
		return domain.CommitResult{}, mapError("create order", err)
	}

	if err := r.writeLines(ctx, tx, res.OrderID, snap); err != nil {
		return domain.CommitResult{}, mapError("create order", err)
	}
	if err := r.logStatus(ctx, tx, res.OrderID, snap.Status, "created"); err != nil {
		return domain.CommitResult{}, mapError("create order", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.CommitResult{}, mapError("commit", err)
	}
	return res, nil
}

// UpdateOrder replaces the content of a saved order.
func (r *Postgres) UpdateOrder(ctx context.Context, orderID string, snap domain.OrderSnapshot) (domain.CommitResult, error) {
	snap.Status = domain.StatusSaved
	snap.PaymentMethod = ""
	snap.CashGiven = nil
	return r.rewrite(ctx, orderID, snap, "updated")
}

// FinalizeOrder replaces the content of a saved order and marks it paid.
func (r *Postgres) FinalizeOrder(ctx context.Context, orderID string, snap domain.OrderSnapshot) (domain.CommitResult, error) {
	snap.Status = domain.StatusPaid
	if !snap.PaymentMethod.Valid() {
		return domain.CommitResult{}, domain.E(domain.CodePaymentMethodRequired, "finalize without payment method")
	}
	return r.rewrite(ctx, orderID, snap, "finalized")
}

func (r *Postgres) rewrite(ctx context.Context, orderID string, snap domain.OrderSnapshot, note string) (domain.CommitResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.CommitResult{}, mapError("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	res := domain.CommitResult{OrderID: orderID}
	var status string
	err = tx.QueryRow(ctx, `SELECT order_number, status FROM orders WHERE id = $1 FOR UPDATE`, orderID).
		Scan(&res.OrderNumber, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CommitResult{}, domain.Ef(domain.CodeNotFound, "order %s not found", orderID)
	}
	if err != nil {
		return domain.CommitResult{}, mapError("lock order", err)
	}
	if domain.OrderStatus(status) == domain.StatusPaid && snap.Status == domain.StatusPaid {
		// retried finalize
		return res, nil
	}
	if domain.OrderStatus(status) != domain.StatusSaved {
		return domain.CommitResult{}, domain.Ef(domain.CodeRemoteConflict, "order %s is already %s", orderID, status)
	}

	var paidAt any
	if snap.Status == domain.StatusPaid {
		paidAt = time.Now().UTC()
	}
	_, err = tx.Exec(ctx, `
UPDATE orders SET
    status = $2, session_id = $3, customer_label = $4, order_type = $5, location_label = $6,
    booking_date = $7, discount_percent = $8, subtotal = $9, discount_amount = $10,
    tax_amount = $11, total_amount = $12, payment_method = $13, cash_given = $14,
    paid_at = $15, updated_at = now()
WHERE id = $1
`,
		orderID,
		string(snap.Status),
		snap.SessionID,
		snap.CustomerLabel,
		string(snap.OrderType),
		snap.LocationLabel,
		nullDate(snap.BookingDate),
		snap.DiscountPercent,
		snap.Subtotal,
		snap.DiscountAmount,
		snap.TaxAmount,
		snap.TotalAmount,
		nullString(string(snap.PaymentMethod)),
		snap.CashGiven,
		paidAt,
	)
	if err != nil {
		return domain.CommitResult{}, mapError("update order", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID); err != nil {
		return domain.CommitResult{}, mapError("update order", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM room_bookings WHERE order_id = $1`, orderID); err != nil {
		return domain.CommitResult{}, mapError("update order", err)
	}
	if err := r.writeLines(ctx, tx, orderID, snap); err != nil {
		return domain.CommitResult{}, mapError("update order", err)
	}
	if err := r.logStatus(ctx, tx, orderID, snap.Status, note); err != nil {
		return domain.CommitResult{}, mapError("update order", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.CommitResult{}, mapError("commit", err)
	}
	return res, nil
}

// writeLines inserts items and, for room items, the booking rows the
// exclusion constraint checks.
func (r *Postgres) writeLines(ctx context.Context, tx pgx.Tx, orderID string, snap domain.OrderSnapshot) error {
	batch := &pgx.Batch{}
	for i, it := range snap.Items {
		batch.Queue(`
INSERT INTO order_items
    (order_id, position, kind, product_id, category_id, room_id, name, note, quantity, unit_price, start_hour, duration_hours)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`, orderID, i, string(it.Kind), it.ProductID, it.CategoryID, it.RoomID, it.Name, it.Note,
			it.Quantity, it.UnitPrice, it.StartHour, it.DurationHours)
		if it.Kind == domain.ItemRoom {
			batch.Queue(`
INSERT INTO room_bookings (order_id, room_id, booking_date, hours)
VALUES ($1, $2, $3, int4range($4, $5))
`, orderID, it.RoomID, nullDate(snap.BookingDate), it.StartHour, it.StartHour+it.DurationHours)
		}
	}
	if batch.Len() == 0 {
		return nil
	}
	return tx.SendBatch(ctx, batch).Close()
}

func (r *Postgres) logStatus(ctx context.Context, tx pgx.Tx, orderID string, status domain.OrderStatus, note string) error {
	_, err := tx.Exec(ctx, `
INSERT INTO order_status_log (order_id, status, changed_by, changed_at, notes)
VALUES ($1, $2, $3, now(), $4)
`, orderID, string(status), r.terminalID, nullString(note))
	if err != nil {
		return fmt.Errorf("failed to insert order status log: %w", err)
	}
	return nil
}

func (r *Postgres) FetchOrder(ctx context.Context, orderID string) (domain.SavedOrder, error) {
	var (
		o        domain.SavedOrder
		status   string
		otype    string
		date     *time.Time
		method   *string
		cash     decimal.NullDecimal
		location string
	)
	err := r.pool.QueryRow(ctx, `
SELECT id, order_number, request_id, session_id, status, customer_label, order_type, location_label,
       booking_date, discount_percent, subtotal, discount_amount, tax_amount, total_amount,
       payment_method, cash_given
FROM orders WHERE id = $1
`, orderID).Scan(
		&o.OrderID, &o.OrderNumber, &o.RequestID, &o.SessionID, &status, &o.CustomerLabel, &otype, &location,
		&date, &o.DiscountPercent, &o.Subtotal, &o.DiscountAmount, &o.TaxAmount, &o.TotalAmount,
		&method, &cash,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SavedOrder{}, domain.Ef(domain.CodeNotFound, "order %s not found", orderID)
	}
	if err != nil {
		return domain.SavedOrder{}, mapError("fetch order", err)
	}
	o.Status = domain.OrderStatus(status)
	o.OrderType = domain.OrderType(otype)
	o.LocationLabel = location
	if date != nil {
		y, m, d := date.Date()
		o.BookingDate = time.Date(y, m, d, 0, 0, 0, 0, r.loc)
	}
	if method != nil {
		o.PaymentMethod = domain.PaymentMethod(*method)
	}
	if cash.Valid {
		v := cash.Decimal
		o.CashGiven = &v
	}

	rows, err := r.pool.Query(ctx, `
SELECT kind, product_id, category_id, room_id, name, note, quantity, unit_price, start_hour, duration_hours
FROM order_items WHERE order_id = $1 ORDER BY position
`, orderID)
	if err != nil {
		return domain.SavedOrder{}, mapError("fetch items", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it domain.OrderItem
		var kind string
		if err := rows.Scan(&kind, &it.ProductID, &it.CategoryID, &it.RoomID, &it.Name, &it.Note,
			&it.Quantity, &it.UnitPrice, &it.StartHour, &it.DurationHours); err != nil {
			return domain.SavedOrder{}, mapError("scan item", err)
		}
		it.Kind = domain.ItemKind(kind)
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return domain.SavedOrder{}, mapError("fetch items", err)
	}
	return o, nil
}

// OrderTimeline lists the status changes of an order, oldest first.
func (r *Postgres) OrderTimeline(ctx context.Context, orderID string) ([]domain.StatusEvent, error) {
	rows, err := r.pool.Query(ctx, `
SELECT status, changed_by, changed_at, COALESCE(notes, '')
FROM order_status_log WHERE order_id = $1
ORDER BY changed_at ASC, id ASC
`, orderID)
	if err != nil {
		return nil, mapError("timeline", err)
	}
	defer rows.Close()

	var out []domain.StatusEvent
	for rows.Next() {
		var e domain.StatusEvent
		var status string
		if err := rows.Scan(&status, &e.ChangedBy, &e.ChangedAt, &e.Notes); err != nil {
			return nil, mapError("timeline", err)
		}
		e.Status = domain.OrderStatus(status)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("timeline", err)
	}
	if len(out) == 0 {
		return nil, domain.Ef(domain.CodeNotFound, "order %s not found", orderID)
	}
	return out, nil
}
