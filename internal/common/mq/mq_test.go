package mq

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPingWithoutConnection(t *testing.T) {
	var c *Client
	assert.Error(t, c.Ping())
	assert.Error(t, (&Client{}).Ping())
}

func TestPaidRoutingKey(t *testing.T) {
	assert.Equal(t, "order.paid.dine_in", PaidRoutingKey("dine_in"))
}
