// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package infra

import "fmt"

type EmptyRoutError struct {
}

func (EmptyRoutError) Error() string {
	return "empty route"
}

type UnroutedMessage struct {
}

func (UnroutedMessage) Error() string {
	return "unrouted message"
}

type ConsumerCloseError struct {
}

func (ConsumerCloseError) Error() string {
	return "close consumer, dropped with error"
}

// HandlerError is a failed handler call. It never leaves the dispatch loop:
// the delivery is nacked without requeue and the loop moves on.
type HandlerError struct {
	Queue       string
	DeliveryTag uint64
	Err         error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler for queue %q, delivery %d: %v", e.Queue, e.DeliveryTag, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }
