// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package adapter

import (
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Message wraps an AMQP delivery and tracks settlement state.
// It implements broker.Message for handlers; Ack, Nack and Reject are for the dispatcher.
type Message struct {
	// deliver holds the original AMQP delivery metadata and payload.
	deliver amqp091.Delivery
	// settled makes sure the delivery is acked or nacked at most once.
	settled atomic.Bool
}

// NewMessage wraps a delivery.
func NewMessage(d amqp091.Delivery) *Message {
	return &Message{deliver: d}
}

// IsEmpty reports a delivery that carries no acknowledger, the empty signal of a stream.
func (m *Message) IsEmpty() bool {
	return m.deliver.Acknowledger == nil
}

// RoutingKey returns the message routing key set on the AMQP delivery.
func (m *Message) RoutingKey() string {
	return m.deliver.RoutingKey
}

// Exchange returns the exchange the message was published to.
func (m *Message) Exchange() string {
	return m.deliver.Exchange
}

// Headers returns the message headers set on the AMQP delivery.
func (m *Message) Headers() map[string]interface{} {
	return m.deliver.Headers
}

// ContentType returns the MIME content type of the message payload.
func (m *Message) ContentType() string {
	return m.deliver.ContentType
}

// IsRedelivered indicates if the delivery is a redelivery (duplicate) of a previous message.
func (m *Message) IsRedelivered() bool {
	return m.deliver.Redelivered
}

// Body returns the raw message payload as a byte slice.
func (m *Message) Body() []byte {
	return m.deliver.Body
}

func (m *Message) MessageID() string {
	return m.deliver.MessageId
}

func (m *Message) DeliveryTag() uint64 {
	return m.deliver.DeliveryTag
}

func (m *Message) Timestamp() time.Time {
	return m.deliver.Timestamp
}

// Ack acknowledges successful processing of the message.
// The broker removes it from the queue and will not redeliver it.
func (m *Message) Ack() error {
	if !m.settled.CompareAndSwap(false, true) {
		return AlreadySettledError{DeliveryTag: m.deliver.DeliveryTag}
	}

	return m.deliver.Ack(false)
}

// Nack negatively acknowledges the message, requeuing it only if asked to.
func (m *Message) Nack(requeue bool) error {
	if !m.settled.CompareAndSwap(false, true) {
		return AlreadySettledError{DeliveryTag: m.deliver.DeliveryTag}
	}

	return m.deliver.Nack(false, requeue)
}

// Reject rejects the message without requeue.
func (m *Message) Reject() error {
	if !m.settled.CompareAndSwap(false, true) {
		return AlreadySettledError{DeliveryTag: m.deliver.DeliveryTag}
	}

	return m.deliver.Reject(false)
}
