package mq

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"pos-terminal/internal/config"
)

// Topology names shared by the terminal publisher and the receipt subscriber.
const (
	OrdersExchange = "pos_orders"
	DeadExchange   = "pos_dlx"
	ReceiptsQueue  = "receipts.q"
	ReceiptsDLQ    = "receipts.dlq"
	PaidKeyPrefix  = "order.paid."
)

// PaidRoutingKey is order.paid.<order_type>.
func PaidRoutingKey(orderType string) string { return PaidKeyPrefix + orderType }

type Client struct {
	conn *amqp.Connection
	ch   *amqp.Channel

	acks <-chan amqp.Confirmation
	mu   sync.Mutex // Publish waits for its own confirm
}

func Dial(cfg config.RabbitMQConfig) (*Client, error) {
	vhost := cfg.VHost
	if vhost == "" {
		vhost = "/"
	}
	scheme := "amqp"
	if cfg.TLS {
		scheme = "amqps"
	}
	url := fmt.Sprintf("%s://%s:%s@%s:%d/%s", scheme, cfg.User, cfg.Password, cfg.Host, cfg.Port, vhost)

	var (
		conn *amqp.Connection
		err  error
	)
	if cfg.TLS {
		conn, err = amqp.DialTLS(url, &tls.Config{MinVersion: tls.VersionTLS12})
	} else {
		conn, err = amqp.Dial(url)
	}
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("enable confirms: %w", err)
	}
	acks := ch.NotifyPublish(make(chan amqp.Confirmation, 1))

	return &Client{conn: conn, ch: ch, acks: acks}, nil
}

func (c *Client) Close() {
	if c == nil {
		return
	}
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func (c *Client) Ping() error {
	if c == nil || c.conn == nil || c.conn.IsClosed() {
		return errors.New("rabbitmq connection is closed")
	}
	return nil
}

// DeclareTopology is idempotent; both modes call it on start.
func (c *Client) DeclareTopology() error {
	if c == nil || c.ch == nil {
		return errors.New("nil channel")
	}
	if err := c.ch.ExchangeDeclare(OrdersExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", OrdersExchange, err)
	}
	if err := c.ch.ExchangeDeclare(DeadExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", DeadExchange, err)
	}
	if _, err := c.ch.QueueDeclare(ReceiptsQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    DeadExchange,
		"x-dead-letter-routing-key": ReceiptsDLQ,
	}); err != nil {
		return fmt.Errorf("declare %s: %w", ReceiptsQueue, err)
	}
	if _, err := c.ch.QueueDeclare(ReceiptsDLQ, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", ReceiptsDLQ, err)
	}
	if err := c.ch.QueueBind(ReceiptsQueue, PaidKeyPrefix+"*", OrdersExchange, false, nil); err != nil {
		return fmt.Errorf("bind %s: %w", ReceiptsQueue, err)
	}
	if err := c.ch.QueueBind(ReceiptsDLQ, ReceiptsDLQ, DeadExchange, false, nil); err != nil {
		return fmt.Errorf("bind %s: %w", ReceiptsDLQ, err)
	}
	return nil
}

// Publish sends a persistent JSON message and waits for the broker ack.
func (c *Client) Publish(ctx context.Context, exchange, key, messageID string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ch.PublishWithContext(ctx, exchange, key, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    messageID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}); err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}

	select {
	case conf, ok := <-c.acks:
		if !ok {
			return errors.New("confirm channel closed")
		}
		if conf.Ack {
			return nil
		}
		return errors.New("publish NACK from broker")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) Consume(queue, consumer string, prefetch int) (<-chan amqp.Delivery, error) {
	if err := c.ch.Qos(prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("qos: %w", err)
	}
	return c.ch.Consume(queue, consumer, false, false, false, false, nil)
}
