// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package infra

import (
	"fmt"
	"sort"
	"sync"

	"github.com/GwynCerbin/go_rabbit_service/pkg/adapter"
	"github.com/GwynCerbin/go_rabbit_service/pkg/broker"

	"go.uber.org/zap"
)

// QueueDeclarer declares a queue and reports its resolved name.
// *adapter.Topology implements it.
type QueueDeclarer interface {
	DeclareQueue(name string, params adapter.QueueParams) (adapter.QueueDescriptor, error)
}

// Router maps a queue name to the one handler that processes its deliveries.
// Registering a name twice replaces the earlier handler.
type Router struct {
	mute     sync.RWMutex
	handlers map[string]broker.Handler
	log      *zap.Logger
}

func NewRouter(log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}

	return &Router{
		handlers: make(map[string]broker.Handler),
		log:      log,
	}
}

// Register maps queue to f. A previous handler for the same queue is dropped.
func (r *Router) Register(queue string, f broker.Handler) {
	r.mute.Lock()
	defer r.mute.Unlock()

	if _, ok := r.handlers[queue]; ok {
		r.log.Warn("queue handler replaced, previous handler discarded", zap.String("queue", queue))
	}

	r.handlers[queue] = f
}

// Lookup returns the handler of queue, ok is false when none is registered.
func (r *Router) Lookup(queue string) (broker.Handler, bool) {
	r.mute.RLock()
	defer r.mute.RUnlock()

	f, ok := r.handlers[queue]

	return f, ok
}

// RegisterAndDeclare declares the queue first and registers f under the resolved name.
// When the declaration fails nothing is registered.
func (r *Router) RegisterAndDeclare(d QueueDeclarer, queue string, f broker.Handler, params adapter.QueueParams) (adapter.QueueDescriptor, error) {
	if f == nil {
		return adapter.QueueDescriptor{}, fmt.Errorf("%w for queue %q", EmptyRoutError{}, queue)
	}

	desc, err := d.DeclareQueue(queue, params)
	if err != nil {
		return adapter.QueueDescriptor{}, err
	}

	r.Register(desc.Name, f)

	return desc, nil
}

func (r *Router) Len() int {
	r.mute.RLock()
	defer r.mute.RUnlock()

	return len(r.handlers)
}

// Names returns the registered queue names, sorted.
func (r *Router) Names() []string {
	r.mute.RLock()
	defer r.mute.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		names = append(names, k)
	}

	sort.Strings(names)

	return names
}
