package domain

import "time"

type OrderItemMsg struct {
	Kind          ItemKind `json:"kind"`
	Name          string   `json:"name"`
	Note          string   `json:"note,omitempty"`
	Quantity      int      `json:"quantity"`
	UnitPrice     string   `json:"unit_price"`
	StartHour     int      `json:"start_hour,omitempty"`
	DurationHours int      `json:"duration_hours,omitempty"`
}

// OrderPaidMessage is published to pos_orders once an order is paid.
type OrderPaidMessage struct {
	OrderID       string         `json:"order_id"`
	OrderNumber   string         `json:"order_number"`
	SessionID     string         `json:"session_id"`
	CustomerLabel string         `json:"customer_label"`
	OrderType     OrderType      `json:"order_type"`
	LocationLabel string         `json:"location_label,omitempty"`
	Items         []OrderItemMsg `json:"items"`
	Subtotal      string         `json:"subtotal"`
	Discount      string         `json:"discount"`
	Tax           string         `json:"tax"`
	TotalAmount   string         `json:"total_amount"`
	PaymentMethod PaymentMethod  `json:"payment_method"`
	PaidAt        time.Time      `json:"paid_at"`
}

// NewOrderPaidMessage builds the event for a committed paid snapshot.
func NewOrderPaidMessage(res CommitResult, snap OrderSnapshot, paidAt time.Time) OrderPaidMessage {
	items := make([]OrderItemMsg, 0, len(snap.Items))
	for _, it := range snap.Items {
		items = append(items, OrderItemMsg{
			Kind:          it.Kind,
			Name:          it.Name,
			Note:          it.Note,
			Quantity:      it.Quantity,
			UnitPrice:     it.UnitPrice.StringFixed(2),
			StartHour:     it.StartHour,
			DurationHours: it.DurationHours,
		})
	}
	return OrderPaidMessage{
		OrderID:       res.OrderID,
		OrderNumber:   res.OrderNumber,
		SessionID:     snap.SessionID,
		CustomerLabel: snap.CustomerLabel,
		OrderType:     snap.OrderType,
		LocationLabel: snap.LocationLabel,
		Items:         items,
		Subtotal:      snap.Subtotal.StringFixed(2),
		Discount:      snap.DiscountAmount.StringFixed(2),
		Tax:           snap.TaxAmount.StringFixed(2),
		TotalAmount:   snap.TotalAmount.StringFixed(2),
		PaymentMethod: snap.PaymentMethod,
		PaidAt:        paidAt.UTC(),
	}
}
