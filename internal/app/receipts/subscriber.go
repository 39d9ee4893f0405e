// Package receipts consumes paid-order events and prints customer receipts.
package receipts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"

	"pos-terminal/internal/common/logger"
	"pos-terminal/internal/common/mq"
	"pos-terminal/internal/config"
	"pos-terminal/internal/domain"
)

var (
	ErrRequeue = errors.New("requeue")     // nack(requeue=true)
	ErrDLQ     = errors.New("dead_letter") // nack(requeue=false)
)

type Subscriber struct {
	lg  *logger.Logger
	out io.Writer
}

func NewSubscriber(lg *logger.Logger, out io.Writer) *Subscriber {
	if out == nil {
		out = os.Stdout
	}
	return &Subscriber{lg: lg, out: out}
}

// Run consumes receipts.q until ctx is done.
func Run(ctx context.Context, cfg *config.Config, lg *logger.Logger) error {
	client, err := mq.Dial(cfg.RabbitMQ)
	if err != nil {
		return err
	}
	defer client.Close()
	if err := client.DeclareTopology(); err != nil {
		return err
	}
	msgs, err := client.Consume(mq.ReceiptsQueue, "receipts-"+cfg.Terminal.ID, 10)
	if err != nil {
		return fmt.Errorf("consume %s: %w", mq.ReceiptsQueue, err)
	}
	lg.Info("consumer_started", map[string]any{"queue": mq.ReceiptsQueue})
	return NewSubscriber(lg, nil).Drain(ctx, msgs)
}

// Drain handles deliveries until the channel closes or ctx is done.
func (s *Subscriber) Drain(ctx context.Context, msgs <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			s.lg.Info("graceful_shutdown", nil)
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			err := s.handle(d.Body)
			switch {
			case err == nil:
				_ = d.Ack(false)
			case errors.Is(err, ErrDLQ):
				s.lg.Warn("receipt_dead_lettered", err, map[string]any{"message_id": d.MessageId})
				_ = d.Nack(false, false)
			default:
				s.lg.Error("receipt_failed", err, map[string]any{"message_id": d.MessageId})
				_ = d.Nack(false, true)
			}
		}
	}
}

func (s *Subscriber) handle(body []byte) error {
	var m domain.OrderPaidMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrDLQ, err)
	}
	if m.OrderID == "" || m.OrderNumber == "" {
		return fmt.Errorf("%w: missing order id", ErrDLQ)
	}
	if _, err := decimal.NewFromString(m.TotalAmount); err != nil {
		return fmt.Errorf("%w: total %q", ErrDLQ, m.TotalAmount)
	}
	if _, err := io.WriteString(s.out, Render(m)); err != nil {
		return fmt.Errorf("%w: write receipt: %v", ErrRequeue, err)
	}
	s.lg.Info("receipt_printed", map[string]any{
		"order_number":   m.OrderNumber,
		"total":          m.TotalAmount,
		"payment_method": string(m.PaymentMethod),
	})
	return nil
}

// Render formats a plain-text receipt.
func Render(m domain.OrderPaidMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n", m.OrderNumber, m.PaidAt.Format("2006-01-02 15:04"))
	if m.CustomerLabel != "" {
		fmt.Fprintf(&b, "Customer: %s\n", m.CustomerLabel)
	}
	fmt.Fprintf(&b, "Type: %s", m.OrderType)
	if m.LocationLabel != "" {
		fmt.Fprintf(&b, " (%s)", m.LocationLabel)
	}
	b.WriteString("\n")
	b.WriteString(strings.Repeat("-", 32) + "\n")
	for _, it := range m.Items {
		switch it.Kind {
		case domain.ItemRoom:
			fmt.Fprintf(&b, "%s %02d:00 +%dh  %s\n", it.Name, it.StartHour, it.DurationHours, it.UnitPrice)
		default:
			fmt.Fprintf(&b, "%dx %s  %s\n", it.Quantity, it.Name, it.UnitPrice)
			if it.Note != "" {
				fmt.Fprintf(&b, "   * %s\n", it.Note)
			}
		}
	}
	b.WriteString(strings.Repeat("-", 32) + "\n")
	fmt.Fprintf(&b, "Subtotal %s\nDiscount %s\nTax %s\nTotal %s\nPaid by %s\n\n",
		m.Subtotal, m.Discount, m.Tax, m.TotalAmount, m.PaymentMethod)
	return b.String()
}
