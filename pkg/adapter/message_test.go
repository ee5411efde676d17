package adapter

import (
	"testing"
	"time"

	"github.com/GwynCerbin/go_rabbit_service/pkg/broker/brokertest"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_Getters(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	msg := NewMessage(amqp091.Delivery{
		Acknowledger: brokertest.NewAcknowledger(),
		Headers:      amqp091.Table{"k": "v"},
		ContentType:  "application/json",
		Redelivered:  true,
		Body:         []byte(`{}`),
		RoutingKey:   "orders",
		Exchange:     "svc",
		MessageId:    "m-1",
		DeliveryTag:  42,
		Timestamp:    ts,
	})

	assert.False(t, msg.IsEmpty())
	assert.Equal(t, map[string]interface{}{"k": "v"}, msg.Headers())
	assert.Equal(t, "application/json", msg.ContentType())
	assert.True(t, msg.IsRedelivered())
	assert.Equal(t, []byte(`{}`), msg.Body())
	assert.Equal(t, "orders", msg.RoutingKey())
	assert.Equal(t, "svc", msg.Exchange())
	assert.Equal(t, "m-1", msg.MessageID())
	assert.Equal(t, uint64(42), msg.DeliveryTag())
	assert.Equal(t, ts, msg.Timestamp())
}

func TestMessage_IsEmpty(t *testing.T) {
	assert.True(t, NewMessage(amqp091.Delivery{}).IsEmpty())
}

func TestMessage_SettlesOnce(t *testing.T) {
	tests := []struct {
		name   string
		settle func(m *Message) error
		want   brokertest.Settlement
	}{
		{name: "ack", settle: (*Message).Ack, want: brokertest.Settlement{Tag: 1, Kind: brokertest.KindAck}},
		{name: "nack", settle: func(m *Message) error { return m.Nack(false) }, want: brokertest.Settlement{Tag: 1, Kind: brokertest.KindNack}},
		{name: "reject", settle: (*Message).Reject, want: brokertest.Settlement{Tag: 1, Kind: brokertest.KindReject}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := brokertest.NewAcknowledger()
			msg := NewMessage(amqp091.Delivery{Acknowledger: ack, DeliveryTag: 1})

			require.NoError(t, tt.settle(msg))

			assert.ErrorIs(t, msg.Ack(), AlreadySettledError{DeliveryTag: 1})
			assert.ErrorIs(t, msg.Nack(true), AlreadySettledError{DeliveryTag: 1})
			assert.ErrorIs(t, msg.Reject(), AlreadySettledError{DeliveryTag: 1})

			assert.Equal(t, []brokertest.Settlement{tt.want}, ack.Settlements())
		})
	}
}
