package adapter

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/GwynCerbin/go_rabbit_service/pkg/broker/brokertest"
	"github.com/GwynCerbin/go_rabbit_service/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type order struct {
	ID    int    `json:"id"`
	Items string `json:"items"`
}

type label string

func (l label) String() string { return "label:" + string(l) }

func newTestPublisher(t *testing.T, cfg PublisherConfig) (*Publisher, *brokertest.Channel) {
	t.Helper()

	ch := brokertest.NewChannel()

	return NewPublisher(ch, NewTopology(ch, nil), cfg, nil, nil), ch
}

func TestPublisher_Encoding(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	tests := []struct {
		name        string
		payload     any
		headers     amqp091.Table
		want        string
		wantContent string
	}{
		{name: "string", payload: "hello", want: "hello", wantContent: "text/plain; charset=utf-8"},
		{name: "struct as json", payload: order{ID: 7, Items: "tea"}, want: `{"id":7,"items":"tea"}`, wantContent: "application/json"},
		{name: "stringer", payload: label("x"), want: "label:x"},
		{name: "error", payload: errors.New("boom"), want: "boom"},
		{name: "nil", payload: nil, want: ""},
		{name: "raw bytes", payload: png, headers: amqp091.Table{HeaderEncoding: EncodingRaw}, want: string(png), wantContent: "image/png"},
		{name: "legacy raw marker", payload: []byte{0x00, 0x01, 0xff}, headers: amqp091.Table{HeaderDataFormat: DataFormatBytes}, want: "\x00\x01\xff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub, ch := newTestPublisher(t, PublisherConfig{})

			require.NoError(t, pub.Publish(context.Background(), "", "orders", tt.payload, tt.headers))

			sent := ch.Publishings()
			require.Len(t, sent, 1)
			assert.Equal(t, tt.want, string(sent[0].Msg.Body))
			assert.Equal(t, "orders", sent[0].Key)

			if tt.wantContent != "" {
				assert.Equal(t, tt.wantContent, sent[0].Msg.ContentType)
			}

			for k, v := range tt.headers {
				assert.Equal(t, v, sent[0].Msg.Headers[k], "headers are forwarded")
			}
		})
	}
}

func TestPublisher_RawNeedsBytes(t *testing.T) {
	pub, ch := newTestPublisher(t, PublisherConfig{})

	err := pub.Publish(context.Background(), "", "orders", "not bytes", amqp091.Table{HeaderEncoding: EncodingRaw})

	var pubErr *PublishError
	require.ErrorAs(t, err, &pubErr)
	assert.ErrorIs(t, err, errRawPayload)
	assert.Empty(t, ch.Publishings())
}

func TestPublisher_Properties(t *testing.T) {
	pub, ch := newTestPublisher(t, PublisherConfig{MessagePersistent: true, AppId: "orders-svc"})

	require.NoError(t, pub.Publish(context.Background(), "", "orders", "a", nil))
	require.NoError(t, pub.Publish(context.Background(), "", "orders", "b", nil))

	sent := ch.Publishings()
	require.Len(t, sent, 2)

	for _, p := range sent {
		assert.Equal(t, "orders-svc", p.Msg.AppId)
		assert.Equal(t, amqp091.Persistent, p.Msg.DeliveryMode)
		assert.False(t, p.Msg.Timestamp.IsZero())
		assert.NotEmpty(t, p.Msg.MessageId)
	}

	assert.NotEqual(t, sent[0].Msg.MessageId, sent[1].Msg.MessageId)
}

func TestPublisher_DeclaresTargetExchangeOnce(t *testing.T) {
	pub, ch := newTestPublisher(t, PublisherConfig{})

	for i := 0; i < 3; i++ {
		require.NoError(t, pub.Publish(context.Background(), "notifications", "email", map[string]int{"n": i}, nil))
	}

	assert.Equal(t, []brokertest.ExchangeDeclaration{
		{Name: "notifications", Kind: "direct", Durable: true},
	}, ch.ExchangeCalls())
	assert.Len(t, ch.Publishings(), 3)
}

func TestPublisher_ClosedChannel(t *testing.T) {
	pub, ch := newTestPublisher(t, PublisherConfig{})
	require.NoError(t, ch.Close())

	err := pub.Publish(context.Background(), "", "orders", "x", nil)

	var pubErr *PublishError
	require.ErrorAs(t, err, &pubErr)
	assert.Equal(t, "orders", pubErr.RoutingKey)
	assert.ErrorIs(t, err, ChannelClosedError{})
}

func TestPublisher_BrokerFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	ch := brokertest.NewChannel()
	ch.PublishErr = errors.New("connection reset")
	pub := NewPublisher(ch, NewTopology(ch, nil), PublisherConfig{}, m, nil)

	err = pub.Publish(context.Background(), "", "orders", "x", nil)

	var pubErr *PublishError
	require.ErrorAs(t, err, &pubErr)
	assert.ErrorIs(t, err, ch.PublishErr)

	ch.PublishErr = nil
	require.NoError(t, pub.Publish(context.Background(), "", "orders", "y", nil))

	expected := `
# HELP rabbit_service_publisher_messages_total Total publish attempts by exchange and status
# TYPE rabbit_service_publisher_messages_total counter
rabbit_service_publisher_messages_total{exchange="",status="error"} 1
rabbit_service_publisher_messages_total{exchange="",status="success"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "rabbit_service_publisher_messages_total"))
}
