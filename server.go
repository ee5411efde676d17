// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package rabbit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GwynCerbin/go_rabbit_service/pkg/adapter"
	"github.com/GwynCerbin/go_rabbit_service/pkg/broker"
	"github.com/GwynCerbin/go_rabbit_service/pkg/infra"
	"github.com/GwynCerbin/go_rabbit_service/pkg/metrics"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

var errAlreadyStarted = errors.New("dispatcher already started")

// QueueSource lists declared queues in declaration order.
type QueueSource interface {
	Queues() []adapter.QueueDescriptor
}

// HandlerLookup resolves the handler of a queue.
type HandlerLookup interface {
	Lookup(queue string) (broker.Handler, bool)
}

// Dispatcher drives one consume loop per registered queue over a shared channel.
//   - ch:      the channel subscriptions are opened on.
//   - queues:  declared queues; their order is the subscription order.
//   - router:  queue name → handler.
//   - wg:      running consume loops, for Shutdown.
//
// Inside a queue deliveries are handled one at a time: a delivery is acked or
// nacked before the next one is read. Queues run independently of each other.
type Dispatcher struct {
	ch      broker.Channel
	queues  QueueSource
	router  HandlerLookup
	wg      sync.WaitGroup
	started atomic.Bool
	tagBase string
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewDispatcher constructs a Dispatcher. Nothing is consumed until StartAll.
func NewDispatcher(ch broker.Channel, queues QueueSource, router HandlerLookup) *Dispatcher {
	return &Dispatcher{
		ch:      ch,
		queues:  queues,
		router:  router,
		tagBase: "rabbit-service",
		log:     zap.NewNop(),
	}
}

// SetLogger overrides the default no-op logger.
func (d *Dispatcher) SetLogger(log *zap.Logger) {
	if log != nil {
		d.log = log
	}
}

// SetMetrics attaches collectors; nil disables them.
func (d *Dispatcher) SetMetrics(m *metrics.Metrics) {
	d.metrics = m
}

// SetConsumerTag sets the prefix of the consumer tags announced to the broker.
func (d *Dispatcher) SetConsumerTag(prefix string) {
	if prefix != "" {
		d.tagBase = prefix
	}
}

type subscription struct {
	queue      string
	deliveries <-chan amqp091.Delivery
}

// StartAll subscribes to every declared queue that has a handler and starts its loop.
// All subscriptions are opened before any loop runs; the first failure is returned
// and no loop is started. Declared queues without a handler are skipped.
func (d *Dispatcher) StartAll(ctx context.Context) error {
	if !d.started.CompareAndSwap(false, true) {
		return errAlreadyStarted
	}

	var subs []subscription

	for _, q := range d.queues.Queues() {
		if _, ok := d.router.Lookup(q.Name); !ok {
			d.log.Warn("queue has no handler, not consumed", zap.String("queue", q.Name))

			continue
		}

		deliveries, err := d.ch.Consume(q.Name, d.consumerTag(q.Name), false, false, false, false, nil)
		if err != nil {
			return &adapter.ChannelError{Op: "consume " + q.Name, Err: err}
		}

		subs = append(subs, subscription{queue: q.Name, deliveries: deliveries})
	}

	if len(subs) == 0 {
		d.log.Warn("no queue to consume")

		return nil
	}

	for _, s := range subs {
		d.wg.Add(1)
		d.metrics.ConsumerStarted()

		go d.consume(ctx, s.queue, s.deliveries)
	}

	return nil
}

func (d *Dispatcher) consumerTag(queue string) string {
	return fmt.Sprintf("%s.%s.%s", d.tagBase, queue, uuid.NewString())
}

// consume runs until the broker closes the delivery stream.
func (d *Dispatcher) consume(ctx context.Context, queue string, deliveries <-chan amqp091.Delivery) {
	defer func() {
		d.metrics.ConsumerStopped()
		d.wg.Done()
	}()

	d.log.Info("consuming queue", zap.String("queue", queue))

	for delivery := range deliveries {
		d.dispatch(ctx, queue, adapter.NewMessage(delivery))
	}

	d.log.Info("queue delivery stream closed", zap.String("queue", queue))
}

// dispatch runs the handler of queue for one delivery and settles it.
func (d *Dispatcher) dispatch(ctx context.Context, queue string, msg *adapter.Message) {
	if msg.IsEmpty() {
		d.log.Debug("empty delivery ignored", zap.String("queue", queue))
		d.metrics.DeliverySettled(queue, metrics.OutcomeIgnored)

		return
	}

	d.metrics.DeliveryReceived(queue)

	handler, ok := d.router.Lookup(queue)
	if !ok {
		d.log.Error("delivery rejected",
			zap.Error(fmt.Errorf("%w, queue: %s", infra.UnroutedMessage{}, queue)),
			zap.Uint64("delivery_tag", msg.DeliveryTag()),
		)

		if err := msg.Reject(); err != nil {
			d.log.Error("reject unrouted message", zap.String("queue", queue), zap.Error(err))
		}

		d.metrics.DeliverySettled(queue, metrics.OutcomeReject)

		return
	}

	start := time.Now()
	err := invoke(ctx, handler, msg)
	d.metrics.ObserveHandler(queue, time.Since(start))

	if err != nil {
		d.log.Error("handler failed, delivery dropped",
			zap.Error(&infra.HandlerError{Queue: queue, DeliveryTag: msg.DeliveryTag(), Err: err}),
			zap.String("message_id", msg.MessageID()),
		)

		if nackErr := msg.Nack(false); nackErr != nil {
			d.log.Error("nack delivery", zap.String("queue", queue), zap.Error(nackErr))
		}

		d.metrics.DeliverySettled(queue, metrics.OutcomeNack)

		return
	}

	if ackErr := msg.Ack(); ackErr != nil {
		d.log.Error("ack delivery", zap.String("queue", queue), zap.Error(ackErr))
	}

	d.metrics.DeliverySettled(queue, metrics.OutcomeAck)
}

// invoke calls h and turns a panic into an error.
func invoke(ctx context.Context, h broker.Handler, msg broker.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	return h(ctx, msg)
}

// Shutdown waits until every consume loop has ended or ctx is done.
// Loops end when the channel or connection they consume from is closed.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	select {
	case <-d.stop():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stop returns a channel closed once all loops have returned.
func (d *Dispatcher) stop() <-chan struct{} {
	done := make(chan struct{})

	go func() {
		d.wg.Wait()
		close(done)
	}()

	return done
}
