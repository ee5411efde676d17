// Package brokertest provides in-memory fakes of the broker contracts for tests.
package brokertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/GwynCerbin/go_rabbit_service/pkg/broker"

	"github.com/rabbitmq/amqp091-go"
)

// Settlement kinds recorded by Acknowledger.
const (
	KindAck    = "ack"
	KindNack   = "nack"
	KindReject = "reject"
)

// Settlement is one ack, nack or reject seen by the fake broker.
type Settlement struct {
	Tag     uint64
	Kind    string
	Requeue bool
}

// Acknowledger records settlements; it implements amqp091.Acknowledger.
type Acknowledger struct {
	mu     sync.Mutex
	events []Settlement
	notify chan Settlement
}

func NewAcknowledger() *Acknowledger {
	return &Acknowledger{notify: make(chan Settlement, 1024)}
}

func (a *Acknowledger) record(s Settlement) error {
	a.mu.Lock()
	a.events = append(a.events, s)
	a.mu.Unlock()

	a.notify <- s

	return nil
}

func (a *Acknowledger) Ack(tag uint64, _ bool) error {
	return a.record(Settlement{Tag: tag, Kind: KindAck})
}

func (a *Acknowledger) Nack(tag uint64, _ bool, requeue bool) error {
	return a.record(Settlement{Tag: tag, Kind: KindNack, Requeue: requeue})
}

func (a *Acknowledger) Reject(tag uint64, requeue bool) error {
	return a.record(Settlement{Tag: tag, Kind: KindReject, Requeue: requeue})
}

// Settlements returns everything recorded so far, in order.
func (a *Acknowledger) Settlements() []Settlement {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]Settlement(nil), a.events...)
}

// Next waits for the next settlement.
func (a *Acknowledger) Next(timeout time.Duration) (Settlement, bool) {
	select {
	case s := <-a.notify:
		return s, true
	case <-time.After(timeout):
		return Settlement{}, false
	}
}

// ExchangeDeclaration is one ExchangeDeclare call that reached the fake broker.
type ExchangeDeclaration struct {
	Name    string
	Kind    string
	Durable bool
}

// Binding is one QueueBind call.
type Binding struct {
	Queue, Key, Exchange string
}

// Publishing is one PublishWithContext call.
type Publishing struct {
	Exchange, Key string
	Msg           amqp091.Publishing
}

// Channel is an in-memory broker.Channel. Error fields inject failures.
type Channel struct {
	mu        sync.Mutex
	closed    bool
	anon      int
	nextTag   uint64
	consumers map[string]chan amqp091.Delivery

	Ack *Acknowledger

	Exchanges    []ExchangeDeclaration
	Queues       []string
	Bindings     []Binding
	Published    []Publishing
	ConsumerTags []string
	Prefetch     int

	ExchangeDeclareErr error
	QueueDeclareErr    error
	BindErr            error
	ConsumeErr         map[string]error
	PublishErr         error
	QosErr             error
}

var _ broker.Channel = (*Channel)(nil)

func NewChannel() *Channel {
	return &Channel{
		consumers:  make(map[string]chan amqp091.Delivery),
		ConsumeErr: make(map[string]error),
		Ack:        NewAcknowledger(),
	}
}

func (c *Channel) ExchangeDeclare(name, kind string, durable, _, _, _ bool, _ amqp091.Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return amqp091.ErrClosed
	}

	if c.ExchangeDeclareErr != nil {
		return c.ExchangeDeclareErr
	}

	c.Exchanges = append(c.Exchanges, ExchangeDeclaration{Name: name, Kind: kind, Durable: durable})

	return nil
}

func (c *Channel) QueueDeclare(name string, _, _, _, _ bool, _ amqp091.Table) (amqp091.Queue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return amqp091.Queue{}, amqp091.ErrClosed
	}

	if c.QueueDeclareErr != nil {
		return amqp091.Queue{}, c.QueueDeclareErr
	}

	if name == "" {
		c.anon++
		name = fmt.Sprintf("amq.gen-%d", c.anon)
	}

	c.Queues = append(c.Queues, name)

	return amqp091.Queue{Name: name}, nil
}

func (c *Channel) QueueBind(name, key, exchange string, _ bool, _ amqp091.Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return amqp091.ErrClosed
	}

	if c.BindErr != nil {
		return c.BindErr
	}

	c.Bindings = append(c.Bindings, Binding{Queue: name, Key: key, Exchange: exchange})

	return nil
}

func (c *Channel) Consume(queue, consumer string, _, _, _, _ bool, _ amqp091.Table) (<-chan amqp091.Delivery, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, amqp091.ErrClosed
	}

	if err := c.ConsumeErr[queue]; err != nil {
		return nil, err
	}

	ch := make(chan amqp091.Delivery, 1024)
	c.consumers[queue] = ch
	c.ConsumerTags = append(c.ConsumerTags, consumer)

	return ch, nil
}

func (c *Channel) Qos(prefetchCount, _ int, _ bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.QosErr != nil {
		return c.QosErr
	}

	c.Prefetch = prefetchCount

	return nil
}

func (c *Channel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp091.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return amqp091.ErrClosed
	}

	if c.PublishErr != nil {
		return c.PublishErr
	}

	c.Published = append(c.Published, Publishing{Exchange: exchange, Key: key, Msg: msg})

	return nil
}

func (c *Channel) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

// Close closes the channel and ends every consumer stream.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	for _, ch := range c.consumers {
		close(ch)
	}

	return nil
}

// Consuming reports whether a subscription on queue is open.
func (c *Channel) Consuming(queue string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.consumers[queue]

	return ok
}

// Deliver pushes a message to the consumer of queue and returns its delivery tag.
func (c *Channel) Deliver(queue string, body []byte, headers amqp091.Table) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, ok := c.consumers[queue]
	if !ok || c.closed {
		return 0, fmt.Errorf("no consumer on queue %q", queue)
	}

	c.nextTag++

	ch <- amqp091.Delivery{
		Acknowledger: c.Ack,
		DeliveryTag:  c.nextTag,
		RoutingKey:   queue,
		Headers:      headers,
		Body:         body,
	}

	return c.nextTag, nil
}

// DeliverEmpty pushes a delivery without acknowledger, the empty stream signal.
func (c *Channel) DeliverEmpty(queue string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, ok := c.consumers[queue]
	if !ok || c.closed {
		return fmt.Errorf("no consumer on queue %q", queue)
	}

	ch <- amqp091.Delivery{}

	return nil
}

// Snapshot helpers, safe while the code under test runs.

func (c *Channel) ExchangeCalls() []ExchangeDeclaration {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]ExchangeDeclaration(nil), c.Exchanges...)
}

func (c *Channel) BindingCalls() []Binding {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]Binding(nil), c.Bindings...)
}

func (c *Channel) Publishings() []Publishing {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]Publishing(nil), c.Published...)
}

// Connection is an in-memory broker.Connection over one fake Channel.
type Connection struct {
	mu      sync.Mutex
	closed  bool
	Channel *Channel
	OpenErr error
}

var _ broker.Connection = (*Connection)(nil)

func NewConnection(ch *Channel) *Connection {
	return &Connection{Channel: ch}
}

func (c *Connection) OpenChannel() (broker.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, amqp091.ErrClosed
	}

	if c.OpenErr != nil {
		return nil, c.OpenErr
	}

	return c.Channel, nil
}

func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true

	return c.Channel.Close()
}

func (c *Connection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}
