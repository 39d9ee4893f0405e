package terminal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"pos-terminal/internal/common/logger"
	"pos-terminal/internal/common/mq"
	"pos-terminal/internal/domain"
	"pos-terminal/internal/lifecycle"
)

type Publisher interface {
	Publish(ctx context.Context, exchange, key, messageID string, body []byte) error
}

// publishingBackend announces paid orders on the broker after the order
// service accepted them. A failed publish never fails the commit.
type publishingBackend struct {
	lifecycle.Backend
	pub     Publisher
	lg      *logger.Logger
	now     func() time.Time
	timeout time.Duration
}

func newPublishingBackend(inner lifecycle.Backend, pub Publisher, lg *logger.Logger) *publishingBackend {
	return &publishingBackend{Backend: inner, pub: pub, lg: lg, now: time.Now, timeout: 5 * time.Second}
}

func (b *publishingBackend) CreateOrder(ctx context.Context, snap domain.OrderSnapshot) (domain.CommitResult, error) {
	res, err := b.Backend.CreateOrder(ctx, snap)
	if err == nil && snap.Status == domain.StatusPaid {
		b.publishPaid(ctx, res, snap)
	}
	return res, err
}

func (b *publishingBackend) FinalizeOrder(ctx context.Context, orderID string, snap domain.OrderSnapshot) (domain.CommitResult, error) {
	res, err := b.Backend.FinalizeOrder(ctx, orderID, snap)
	if err == nil {
		b.publishPaid(ctx, res, snap)
	}
	return res, err
}

func (b *publishingBackend) publishPaid(ctx context.Context, res domain.CommitResult, snap domain.OrderSnapshot) {
	if b.pub == nil {
		return
	}
	msg := domain.NewOrderPaidMessage(res, snap, b.now())
	body, err := json.Marshal(msg)
	if err != nil {
		b.lg.Error("receipt_publish_failed", err, map[string]any{"order_id": res.OrderID})
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
	defer cancel()
	key := mq.PaidRoutingKey(string(snap.OrderType))
	if err := b.pub.Publish(pctx, mq.OrdersExchange, key, uuid.NewString(), body); err != nil {
		b.lg.Error("receipt_publish_failed", err, map[string]any{"order_id": res.OrderID, "routing_key": key})
		return
	}
	b.lg.Debug("receipt_published", map[string]any{"order_number": res.OrderNumber, "routing_key": key})
}
