package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"pos-terminal/internal/domain"
)

const settingTaxRate = "tax_rate_percent"

func (r *Postgres) LoadCatalog(ctx context.Context) (domain.Catalog, error) {
	cat := domain.Catalog{TaxRatePercent: decimal.Zero, LoadedAt: time.Now().UTC()}

	rows, err := r.pool.Query(ctx, `SELECT id, name FROM categories ORDER BY sort_order, name`)
	if err != nil {
		return domain.Catalog{}, mapError("load categories", err)
	}
	cat.Categories, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Category, error) {
		var c domain.Category
		err := row.Scan(&c.ID, &c.Name)
		return c, err
	})
	if err != nil {
		return domain.Catalog{}, mapError("load categories", err)
	}

	rows, err = r.pool.Query(ctx, `
SELECT id, name, category_id, price FROM products
WHERE active ORDER BY sort_order, name
`)
	if err != nil {
		return domain.Catalog{}, mapError("load products", err)
	}
	cat.Products, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Product, error) {
		var p domain.Product
		err := row.Scan(&p.ID, &p.Name, &p.CategoryID, &p.Price)
		return p, err
	})
	if err != nil {
		return domain.Catalog{}, mapError("load products", err)
	}

	rows, err = r.pool.Query(ctx, `SELECT code FROM order_types WHERE active ORDER BY code`)
	if err != nil {
		return domain.Catalog{}, mapError("load order types", err)
	}
	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return domain.Catalog{}, mapError("load order types", err)
	}
	for _, c := range codes {
		cat.OrderTypes = append(cat.OrderTypes, domain.OrderType(c))
	}

	var rate string
	err = r.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, settingTaxRate).Scan(&rate)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return domain.Catalog{}, mapError("load tax rate", err)
	default:
		d, perr := decimal.NewFromString(strings.TrimSpace(rate))
		if perr != nil {
			return domain.Catalog{}, domain.Wrap(domain.CodeRemoteUnavailable, "invalid tax_rate_percent setting", perr)
		}
		cat.TaxRatePercent = d
	}
	return cat, nil
}

func expandHours(out []int, lower, upper int) []int {
	for h := lower; h < upper; h++ {
		out = append(out, h)
	}
	return out
}

// LoadRoomAvailability returns every active room with its packages and the
// hours already booked on date by orders that are not cancelled.
func (r *Postgres) LoadRoomAvailability(ctx context.Context, date time.Time) ([]domain.RoomAvailability, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM rooms WHERE active ORDER BY name, id`)
	if err != nil {
		return nil, mapError("load rooms", err)
	}
	rooms, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Room, error) {
		var rm domain.Room
		err := row.Scan(&rm.ID, &rm.Name)
		return rm, err
	})
	if err != nil {
		return nil, mapError("load rooms", err)
	}

	out := make([]domain.RoomAvailability, len(rooms))
	byID := make(map[string]*domain.RoomAvailability, len(rooms))
	for i, rm := range rooms {
		out[i] = domain.RoomAvailability{Room: rm}
		byID[rm.ID] = &out[i]
	}

	rows, err = r.pool.Query(ctx, `
SELECT room_id, duration_hours, price FROM room_packages
ORDER BY room_id, duration_hours
`)
	if err != nil {
		return nil, mapError("load packages", err)
	}
	defer rows.Close()
	for rows.Next() {
		var roomID string
		var p domain.DurationPackage
		if err := rows.Scan(&roomID, &p.DurationHours, &p.Price); err != nil {
			return nil, mapError("load packages", err)
		}
		if ra, ok := byID[roomID]; ok {
			ra.Packages = append(ra.Packages, p)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("load packages", err)
	}

	brows, err := r.pool.Query(ctx, `
SELECT b.room_id, lower(b.hours), upper(b.hours)
FROM room_bookings b JOIN orders o ON o.id = b.order_id
WHERE b.booking_date = $1 AND o.status <> 'cancelled'
ORDER BY b.room_id, lower(b.hours)
`, sqlDate(date))
	if err != nil {
		return nil, mapError("load bookings", err)
	}
	defer brows.Close()
	for brows.Next() {
		var roomID string
		var lower, upper int
		if err := brows.Scan(&roomID, &lower, &upper); err != nil {
			return nil, mapError("load bookings", err)
		}
		if ra, ok := byID[roomID]; ok {
			ra.BookedHours = expandHours(ra.BookedHours, lower, upper)
		}
	}
	if err := brows.Err(); err != nil {
		return nil, mapError("load bookings", err)
	}
	return out, nil
}

// CurrentSession returns the open session of this terminal, or nil.
func (r *Postgres) CurrentSession(ctx context.Context) (*domain.Session, error) {
	var s domain.Session
	err := r.pool.QueryRow(ctx, `
SELECT id, cashier, opened_at, starting_cash
FROM cashier_sessions
WHERE terminal_id = $1 AND closed_at IS NULL
ORDER BY opened_at DESC LIMIT 1
`, r.terminalID).Scan(&s.ID, &s.Cashier, &s.OpenedAt, &s.StartingCash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError("load session", err)
	}
	return &s, nil
}
