package terminal

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"

	"pos-terminal/internal/booking"
	"pos-terminal/internal/cart"
	"pos-terminal/internal/common/httpx"
	"pos-terminal/internal/common/logger"
	"pos-terminal/internal/domain"
	"pos-terminal/internal/lifecycle"
	"pos-terminal/internal/pricing"
)

// CatalogView is satisfied by *catalog.Cache.
type CatalogView interface {
	Loaded() bool
	Products() []domain.Product
	Categories() []domain.Category
	OrderTypes() []domain.OrderType
	TaxRatePercent() decimal.Decimal
	Reload(ctx context.Context) error
}

// ReadinessCheck reports whether a dependency can serve requests.
type ReadinessCheck func(ctx context.Context) error

type namedCheck struct {
	name  string
	check ReadinessCheck
}

type TimelineSource interface {
	OrderTimeline(ctx context.Context, orderID string) ([]domain.StatusEvent, error)
}

type Handler struct {
	orders   *lifecycle.Coordinator
	catalog  CatalogView
	sessions lifecycle.SessionSource
	timeline TimelineSource
	loc      *time.Location
	lg       *logger.Logger
	checks   []namedCheck
}

func NewHandler(orders *lifecycle.Coordinator, cat CatalogView, sessions lifecycle.SessionSource,
	timeline TimelineSource, loc *time.Location, lg *logger.Logger) *Handler {
	if loc == nil {
		loc = time.Local
	}
	return &Handler{orders: orders, catalog: cat, sessions: sessions, timeline: timeline, loc: loc, lg: lg}
}

func (h *Handler) AddReadiness(name string, check ReadinessCheck) {
	h.checks = append(h.checks, namedCheck{name: name, check: check})
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/readyz", h.readyz)
	r.Get("/catalog", h.getCatalog)
	r.Post("/catalog/reload", h.reloadCatalog)
	r.Get("/session", h.getSession)

	r.Get("/cart", h.getCart)
	r.Post("/cart/products", h.addProduct)
	r.Post("/cart/rooms", h.addRoom)
	r.Patch("/cart/lines", h.updateLine)
	r.Delete("/cart/lines", h.removeLine)
	r.Put("/cart/discount", h.setDiscount)

	r.Post("/booking", h.enterBooking)
	r.Put("/booking/room", h.selectRoom)
	r.Get("/booking/packages", h.packages)

	r.Route("/orders", func(r chi.Router) {
		r.Post("/new", h.newOrder)
		r.Put("/header", h.setHeader)
		r.Post("/save", h.save)
		r.Post("/pay", h.pay)
		r.Post("/cancel", h.cancel)
		r.Post("/{order_id}/resume", h.resume)
		r.Get("/{order_id}/timeline", h.getTimeline)
	})
	return r
}

// ---- responses

type lineJSON struct {
	Key     string            `json:"key"`
	Kind    string            `json:"kind"`
	Amount  decimal.Decimal   `json:"amount"`
	Product *cart.ProductLine `json:"product,omitempty"`
	Room    *cart.RoomLine    `json:"room,omitempty"`
}

func renderLines(lines []cart.Line) []lineJSON {
	out := make([]lineJSON, 0, len(lines))
	for _, l := range lines {
		out = append(out, lineJSON{
			Key:     l.Key.Token(),
			Kind:    l.Kind().String(),
			Amount:  l.Amount(),
			Product: l.Product,
			Room:    l.Room,
		})
	}
	return out
}

type receiptJSON struct {
	lifecycle.Receipt
	Lines []lineJSON `json:"lines"`
}

type cartJSON struct {
	State              lifecycle.State             `json:"state"`
	Header             lifecycle.Header            `json:"header"`
	EditingOrderID     string                      `json:"editing_order_id,omitempty"`
	EditingOrderNumber string                      `json:"editing_order_number,omitempty"`
	Lines              []lineJSON                  `json:"lines"`
	DiscountPercent    decimal.Decimal             `json:"discount_percent"`
	Totals             pricing.Totals              `json:"totals"`
	CommitInFlight     bool                        `json:"commit_in_flight"`
	BookingDate        string                      `json:"booking_date,omitempty"`
	Rooms              []domain.Room               `json:"rooms,omitempty"`
	Availability       *lifecycle.AvailabilityView `json:"availability,omitempty"`
	LastCommit         *domain.CommitResult        `json:"last_commit,omitempty"`
	Receipt            *receiptJSON                `json:"receipt,omitempty"`
}

func renderReceipt(rc lifecycle.Receipt) *receiptJSON {
	return &receiptJSON{Receipt: rc, Lines: renderLines(rc.Lines)}
}

func (h *Handler) cartView() cartJSON {
	v := h.orders.View()
	out := cartJSON{
		State:              v.State,
		Header:             v.Header,
		EditingOrderID:     v.EditingOrderID,
		EditingOrderNumber: v.EditingOrderNumber,
		Lines:              renderLines(v.Lines),
		DiscountPercent:    v.DiscountPercent,
		Totals:             v.Totals,
		CommitInFlight:     v.CommitInFlight,
		Rooms:              v.Rooms,
		Availability:       v.Availability,
		LastCommit:         v.LastCommit,
	}
	if !v.BookingDate.IsZero() {
		out.BookingDate = v.BookingDate.Format(time.DateOnly)
	}
	if v.Receipt != nil {
		out.Receipt = renderReceipt(*v.Receipt)
	}
	return out
}

func (h *Handler) writeCart(w http.ResponseWriter, code int) {
	httpx.WriteJSON(w, code, h.cartView())
}

// writeError maps the error taxonomy onto problem responses.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.CodeOf(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		h.lg.Error("request_failed", err, map[string]any{"method": r.Method, "path": r.URL.Path})
	}
	p := httpx.Problem{Status: status, Detail: err.Error(), Code: string(code)}
	if code != "" {
		p.Type = strings.ToLower(string(code))
	}
	httpx.WriteProblem(w, p)
}

func statusFor(code domain.Code) int {
	switch code {
	case "":
		return http.StatusInternalServerError
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeRemoteUnavailable:
		return http.StatusServiceUnavailable
	case domain.CodeCommitInFlight, domain.CodeRemoteConflict, domain.CodeInvalidTransition,
		domain.CodeNoActiveSession, domain.CodeSlotConflict, domain.CodeDuplicateReservation:
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

func badRequest(w http.ResponseWriter, detail string) {
	httpx.WriteProblem(w, httpx.Problem{Type: "bad_request", Status: http.StatusBadRequest, Detail: detail})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		badRequest(w, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// ---- readiness, catalog and session

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"catalog": "ok"}
	ready := true
	if !h.catalog.Loaded() {
		checks["catalog"], ready = "not loaded", false
	}
	for _, c := range h.checks {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := c.check(ctx)
		cancel()
		if err != nil {
			checks[c.name], ready = err.Error(), false
			continue
		}
		checks[c.name] = "ok"
	}
	if !ready {
		h.lg.Warn("readiness_failed", nil, map[string]any{"checks": checks})
		httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "checks": checks})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "ok", "checks": checks})
}

type catalogJSON struct {
	Products       []domain.Product   `json:"products"`
	Categories     []domain.Category  `json:"categories"`
	OrderTypes     []domain.OrderType `json:"order_types"`
	TaxRatePercent decimal.Decimal    `json:"tax_rate_percent"`
}

func (h *Handler) catalogView() catalogJSON {
	return catalogJSON{
		Products:       h.catalog.Products(),
		Categories:     h.catalog.Categories(),
		OrderTypes:     h.catalog.OrderTypes(),
		TaxRatePercent: h.catalog.TaxRatePercent(),
	}
}

func (h *Handler) getCatalog(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, h.catalogView())
}

func (h *Handler) reloadCatalog(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Reload(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.catalogView())
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.CurrentSession(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if s == nil {
		h.writeError(w, r, domain.E(domain.CodeNotFound, "no open cashier session"))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, s)
}

// ---- cart

func (h *Handler) getCart(w http.ResponseWriter, _ *http.Request) {
	h.writeCart(w, http.StatusOK)
}

type headerReq struct {
	CustomerLabel string           `json:"customer_label"`
	OrderType     domain.OrderType `json:"order_type"`
	LocationLabel string           `json:"location_label"`
}

func (q headerReq) header() lifecycle.Header {
	return lifecycle.Header{CustomerLabel: q.CustomerLabel, OrderType: q.OrderType, LocationLabel: q.LocationLabel}
}

func (h *Handler) newOrder(w http.ResponseWriter, r *http.Request) {
	var req headerReq
	if !decode(w, r, &req) {
		return
	}
	if err := h.orders.StartNewOrder(req.header()); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeCart(w, http.StatusCreated)
}

func (h *Handler) setHeader(w http.ResponseWriter, r *http.Request) {
	var req headerReq
	if !decode(w, r, &req) {
		return
	}
	if err := h.orders.SetHeader(req.header()); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeCart(w, http.StatusOK)
}

func (h *Handler) addProduct(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
		Note      string `json:"note"`
	}
	if !decode(w, r, &req) {
		return
	}
	if _, err := h.orders.AddProduct(req.ProductID, req.Quantity, req.Note); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeCart(w, http.StatusOK)
}

func (h *Handler) addRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RoomID        string `json:"room_id"`
		StartHour     int    `json:"start_hour"`
		DurationHours int    `json:"duration_hours"`
	}
	if !decode(w, r, &req) {
		return
	}
	if _, err := h.orders.AddRoom(req.RoomID, req.StartHour, req.DurationHours); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeCart(w, http.StatusOK)
}

type lineReq struct {
	Key      string `json:"key"`
	Quantity int    `json:"quantity"`
}

func (h *Handler) updateLine(w http.ResponseWriter, r *http.Request) {
	var req lineReq
	if !decode(w, r, &req) {
		return
	}
	k, err := cart.ParseToken(req.Key)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := h.orders.UpdateQuantity(k, req.Quantity); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeCart(w, http.StatusOK)
}

func (h *Handler) removeLine(w http.ResponseWriter, r *http.Request) {
	var req lineReq
	if !decode(w, r, &req) {
		return
	}
	k, err := cart.ParseToken(req.Key)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := h.orders.RemoveLine(k); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeCart(w, http.StatusOK)
}

func (h *Handler) setDiscount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Percent decimal.Decimal `json:"percent"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := h.orders.SetDiscount(req.Percent); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeCart(w, http.StatusOK)
}

// ---- booking

func (h *Handler) enterBooking(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date string `json:"date"`
	}
	if !decode(w, r, &req) {
		return
	}
	date, err := time.ParseInLocation(time.DateOnly, req.Date, h.loc)
	if err != nil {
		badRequest(w, "date must be YYYY-MM-DD")
		return
	}
	if err := h.orders.EnterBookingMode(r.Context(), date); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeCart(w, http.StatusOK)
}

func (h *Handler) selectRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RoomID string `json:"room_id"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := h.orders.SelectRoom(req.RoomID); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeCart(w, http.StatusOK)
}

func (h *Handler) packages(w http.ResponseWriter, r *http.Request) {
	start, err := strconv.Atoi(r.URL.Query().Get("start"))
	if err != nil {
		badRequest(w, "start must be an hour")
		return
	}
	opts, err := h.orders.Packages(start)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if opts == nil {
		opts = []booking.PackageOption{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"start_hour": start, "packages": opts})
}

// ---- commits

func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	res, err := h.orders.Save(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method    domain.PaymentMethod `json:"method"`
		CashGiven decimal.Decimal      `json:"cash_given"`
	}
	if !decode(w, r, &req) {
		return
	}
	rc, err := h.orders.Pay(r.Context(), lifecycle.Payment{Method: req.Method, CashGiven: req.CashGiven})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, renderReceipt(rc))
}

func (h *Handler) resume(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.ResumeEditing(r.Context(), chi.URLParam(r, "order_id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeCart(w, http.StatusOK)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.Cancel(); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeCart(w, http.StatusOK)
}

func (h *Handler) getTimeline(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "order_id")
	events, err := h.timeline.OrderTimeline(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	limit := atoiDefault(r.URL.Query().Get("limit"), 50)
	offset := atoiDefault(r.URL.Query().Get("offset"), 0)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"order_id": id, "events": page(events, limit, offset)})
}

func page[T any](xs []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(xs) {
		return []T{}
	}
	xs = xs[offset:]
	if limit > 0 && limit < len(xs) {
		xs = xs[:limit]
	}
	return xs
}

func atoiDefault(s string, d int) int {
	if s == "" {
		return d
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return n
}
