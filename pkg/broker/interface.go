// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package broker

import (
	"context"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Channel is the subset of an AMQP channel the service runs every topology,
// consume and publish operation over. *amqp091.Channel satisfies it.
type Channel interface {
	// ExchangeDeclare declares an exchange on the broker.
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error

	// QueueDeclare declares a queue. An empty name lets the broker pick one,
	// the returned queue carries the resolved name.
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)

	// QueueBind binds a queue to an exchange with a routing key.
	QueueBind(name, key, exchange string, noWait bool, args amqp091.Table) error

	// Consume starts a subscription on a queue. The returned stream is closed
	// by the broker client when the channel or connection goes away.
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) (<-chan amqp091.Delivery, error)

	// Qos limits the number of unacknowledged deliveries per consumer.
	Qos(prefetchCount, prefetchSize int, global bool) error

	// PublishWithContext transmits a message to an exchange.
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error

	// IsClosed reports whether the channel has been closed.
	IsClosed() bool

	// Close releases the channel.
	Close() error
}

// Connection owns a single broker connection and the channel opened over it.
type Connection interface {
	// OpenChannel returns the live channel, opening it on first use.
	OpenChannel() (Channel, error)

	// Close closes the channel and then the connection. Safe to call twice.
	Close() error
}

// Message is the read-only view of a delivery handed to a Handler.
// Settlement (ack/nack) belongs to the dispatcher, not to the handler.
type Message interface {
	// Headers returns the message metadata headers.
	Headers() map[string]interface{}

	// ContentType returns the MIME type of the message payload.
	ContentType() string

	// IsRedelivered signals if this delivery is a redelivery of a previous message.
	IsRedelivered() bool

	// Body returns the raw payload bytes.
	Body() []byte

	// RoutingKey returns the routing key the message was published with.
	RoutingKey() string

	// Exchange returns the exchange the message was published to.
	Exchange() string

	// MessageID returns the publisher assigned message id, if any.
	MessageID() string

	// DeliveryTag returns the broker assigned delivery tag.
	DeliveryTag() uint64

	// Timestamp returns the publish timestamp, zero when unset.
	Timestamp() time.Time
}

// Handler processes one message. A non-nil error rejects the delivery.
type Handler func(ctx context.Context, msg Message) error
