// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package adapter

import (
	"errors"
	"slices"
	"sync"

	"github.com/GwynCerbin/go_rabbit_service/pkg/broker"

	"go.uber.org/zap"
)

var (
	errQueueUndeclared    = errors.New("queue not declared")
	errExchangeUndeclared = errors.New("exchange not declared")
	errDefaultExchange    = errors.New("default exchange does not accept bindings")
)

// Topology declares queues and exchanges over one channel and remembers what it declared.
//   - exchanges: name → descriptor; each name hits the wire at most once.
//   - queues:    declared queues in insertion order, keyed by resolved name.
type Topology struct {
	ch        broker.Channel
	mute      sync.Mutex
	exchanges map[string]ExchangeDescriptor
	queues    []QueueDescriptor
	log       *zap.Logger
}

// NewTopology returns a Topology that declares over ch.
// The broker default exchange ("") is known from the start.
func NewTopology(ch broker.Channel, log *zap.Logger) *Topology {
	if log == nil {
		log = zap.NewNop()
	}

	return &Topology{
		ch: ch,
		exchanges: map[string]ExchangeDescriptor{
			"": {Name: "", Kind: ExchangeDirect, Durable: true},
		},
		log: log,
	}
}

// DeclareExchange declares an exchange unless one with the same name was declared before,
// in which case the cached descriptor is returned without a wire call. The cache is keyed
// by name only: a conflicting kind or durability is left for the broker to report.
func (t *Topology) DeclareExchange(name string, kind ExchangeKind, durable bool) (ExchangeDescriptor, error) {
	t.mute.Lock()
	defer t.mute.Unlock()

	if desc, ok := t.exchanges[name]; ok {
		if desc.Kind != kind || desc.Durable != durable {
			t.log.Warn("exchange already declared with other parameters",
				zap.String("exchange", name),
				zap.String("cached_kind", string(desc.Kind)),
				zap.String("requested_kind", string(kind)),
				zap.Bool("cached_durable", desc.Durable),
				zap.Bool("requested_durable", durable),
			)
		}

		return desc, nil
	}

	if err := t.ch.ExchangeDeclare(name, string(kind), durable, false, false, false, nil); err != nil {
		return ExchangeDescriptor{}, &TopologyError{Op: "declare", Exchange: name, Err: err}
	}

	desc := ExchangeDescriptor{Name: name, Kind: kind, Durable: durable}
	t.exchanges[name] = desc

	t.log.Debug("exchange declared", zap.String("exchange", name), zap.String("kind", string(kind)))

	return desc, nil
}

// DeclareQueue declares a queue; an empty name lets the broker assign one.
// The returned descriptor carries the resolved name.
func (t *Topology) DeclareQueue(name string, params QueueParams) (QueueDescriptor, error) {
	t.mute.Lock()
	defer t.mute.Unlock()

	queue, err := t.ch.QueueDeclare(name, params.Durable, params.AutoDelete, params.Exclusive, false, params.Args)
	if err != nil {
		return QueueDescriptor{}, &TopologyError{Op: "declare", Queue: name, Err: err}
	}

	desc := QueueDescriptor{Name: queue.Name, Params: params}

	if i := t.queueIndex(queue.Name); i >= 0 {
		t.queues[i] = desc
	} else {
		t.queues = append(t.queues, desc)
	}

	t.log.Debug("queue declared", zap.String("queue", queue.Name), zap.String("requested", name))

	return desc, nil
}

// BindQueue binds a declared queue to a declared exchange. An empty routing key
// means the queue name.
func (t *Topology) BindQueue(queue, exchange, routingKey string) error {
	t.mute.Lock()
	defer t.mute.Unlock()

	return t.bind(queue, exchange, routingKey)
}

// BindAll binds every declared queue that does not opt out with NoBind to exchange,
// using the queue name as routing key, in declaration order.
func (t *Topology) BindAll(exchange string) error {
	t.mute.Lock()
	defer t.mute.Unlock()

	for _, q := range t.queues {
		if q.Params.NoBind {
			continue
		}

		if err := t.bind(q.Name, exchange, q.Name); err != nil {
			return err
		}
	}

	return nil
}

func (t *Topology) bind(queue, exchange, routingKey string) error {
	if routingKey == "" {
		routingKey = queue
	}

	if t.queueIndex(queue) < 0 {
		return &TopologyError{Op: "bind", Queue: queue, Exchange: exchange, Err: errQueueUndeclared}
	}

	if exchange == "" {
		return &TopologyError{Op: "bind", Queue: queue, Exchange: exchange, Err: errDefaultExchange}
	}

	if _, ok := t.exchanges[exchange]; !ok {
		return &TopologyError{Op: "bind", Queue: queue, Exchange: exchange, Err: errExchangeUndeclared}
	}

	if err := t.ch.QueueBind(queue, routingKey, exchange, false, nil); err != nil {
		return &TopologyError{Op: "bind", Queue: queue, Exchange: exchange, Err: err}
	}

	t.log.Debug("queue bound",
		zap.String("queue", queue),
		zap.String("exchange", exchange),
		zap.String("routing_key", routingKey),
	)

	return nil
}

// Queues returns the declared queues in declaration order.
func (t *Topology) Queues() []QueueDescriptor {
	t.mute.Lock()
	defer t.mute.Unlock()

	return slices.Clone(t.queues)
}

// Exchange returns the cached descriptor of a declared exchange.
func (t *Topology) Exchange(name string) (ExchangeDescriptor, bool) {
	t.mute.Lock()
	defer t.mute.Unlock()

	desc, ok := t.exchanges[name]

	return desc, ok
}

func (t *Topology) queueIndex(name string) int {
	return slices.IndexFunc(t.queues, func(q QueueDescriptor) bool {
		return q.Name == name
	})
}
