// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package adapter

import "fmt"

// ConnClosedError is returned when operations are attempted on a closed connection.
type ConnClosedError struct{}

// ChannelClosedError is returned when operations are attempted on a closed channel.
type ChannelClosedError struct{}

// ClientConfEmptyError indicates that a nil client configuration was provided to Dial.
type ClientConfEmptyError struct{}

// AlreadySettledError is returned when a delivery is acked or nacked twice.
type AlreadySettledError struct {
	DeliveryTag uint64
}

// ConnectionError reports a transport level failure to reach the broker.
type ConnectionError struct {
	// URL is the broker address with the password redacted.
	URL string
	Err error
}

// ChannelError reports a session level failure after the connection was made.
type ChannelError struct {
	Op  string
	Err error
}

// TopologyError reports a declare or bind that was refused.
type TopologyError struct {
	Op       string
	Queue    string
	Exchange string
	Err      error
}

// PublishError reports a publish that could not be handed to the broker.
type PublishError struct {
	Exchange   string
	RoutingKey string
	Err        error
}

// Error implements the error interface for ConnClosedError.
// It indicates the client explicitly closed the connection.
func (ConnClosedError) Error() string {
	return "connection closed by client"
}

// Error implements the error interface for ChannelClosedError.
func (ChannelClosedError) Error() string {
	return "channel closed"
}

// Error implements the error interface for ClientConfEmptyError.
func (ClientConfEmptyError) Error() string {
	return "empty client config passed, unable to dial"
}

func (e AlreadySettledError) Error() string {
	return fmt.Sprintf("delivery %d already settled", e.DeliveryTag)
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ChannelError) Error() string {
	return fmt.Sprintf("channel %s: %v", e.Op, e.Err)
}

func (e *ChannelError) Unwrap() error { return e.Err }

func (e *TopologyError) Error() string {
	switch {
	case e.Queue != "" && e.Exchange != "":
		return fmt.Sprintf("%s queue %q to exchange %q: %v", e.Op, e.Queue, e.Exchange, e.Err)
	case e.Queue != "":
		return fmt.Sprintf("%s queue %q: %v", e.Op, e.Queue, e.Err)
	default:
		return fmt.Sprintf("%s exchange %q: %v", e.Op, e.Exchange, e.Err)
	}
}

func (e *TopologyError) Unwrap() error { return e.Err }

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish to exchange %q with key %q: %v", e.Exchange, e.RoutingKey, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }
