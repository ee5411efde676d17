// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package adapter

import (
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/GwynCerbin/go_rabbit_service/pkg/broker"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// amqpConnection is the part of *amqp091.Connection that Con relies on.
type amqpConnection interface {
	IsClosed() bool
	Close() error
}

// Con owns exactly one AMQP connection and the one channel opened over it.
// All topology, consume and publish traffic of a service runs over that channel.
type Con struct {
	// connection holds the active AMQP connection.
	connection amqpConnection
	// openChannel opens a new channel over connection; replaced in tests.
	openChannel func() (broker.Channel, error)
	// channel is the shared channel, nil until OpenChannel succeeds.
	channel broker.Channel
	// url is the redacted broker address, for logs and errors.
	url string
	// prefetch is applied with Qos when a channel is opened.
	prefetch int
	// mute guards channel and closed.
	mute   sync.Mutex
	closed bool
	// stop tells the close watcher that the client initiated the shutdown.
	stop chan struct{}
	log  *zap.Logger
}

// Dial establishes an AMQP connection using the provided client configuration.
// There is no retry: a failed dial is reported as *ConnectionError.
func Dial(cfg *Client, log *zap.Logger) (*Con, error) {
	if cfg == nil {
		return nil, ClientConfEmptyError{}
	}

	if log == nil {
		log = zap.NewNop()
	}

	rawURL := cfg.URL
	if rawURL == "" {
		rawURL = DefaultURL
	}

	redacted := RedactURL(rawURL)

	heartbeat := time.Duration(cfg.HeartbeatSeconds) * time.Second
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeatSeconds * time.Second
	}

	props := amqp091.NewConnectionProperties()
	if cfg.ConnectionName != "" {
		props.SetClientConnectionName(cfg.ConnectionName)
	}

	con, err := amqp091.DialConfig(rawURL, amqp091.Config{
		Heartbeat:  heartbeat,
		Locale:     "en_US",
		Properties: props,
	})
	if err != nil {
		return nil, &ConnectionError{URL: redacted, Err: err}
	}

	c := newCon(con, cfg.Prefetch, redacted, log)
	c.openChannel = func() (broker.Channel, error) {
		ch, err := con.Channel()
		if err != nil {
			return nil, err
		}

		return ch, nil
	}

	go c.watch(con.NotifyClose(make(chan *amqp091.Error, 1)))

	log.Info("rabbit connected", zap.String("url", redacted))

	return c, nil
}

func newCon(con amqpConnection, prefetch int, redacted string, log *zap.Logger) *Con {
	return &Con{
		connection: con,
		url:        redacted,
		prefetch:   prefetch,
		stop:       make(chan struct{}),
		log:        log,
	}
}

// watch logs a connection loss that was not caused by Close.
func (c *Con) watch(notify chan *amqp091.Error) {
	select {
	case <-c.stop:
	case err, ok := <-notify:
		if ok && err != nil {
			c.log.Warn("rabbit connection lost", zap.String("url", c.url), zap.Error(err))
		}
	}
}

// OpenChannel returns the shared channel, opening it if it is not live yet.
// It fails with *ChannelError when the connection is not live.
func (c *Con) OpenChannel() (broker.Channel, error) {
	c.mute.Lock()
	defer c.mute.Unlock()

	if c.closed || c.connection.IsClosed() {
		return nil, &ChannelError{Op: "open", Err: ConnClosedError{}}
	}

	if c.channel != nil && !c.channel.IsClosed() {
		return c.channel, nil
	}

	ch, err := c.openChannel()
	if err != nil {
		return nil, &ChannelError{Op: "open", Err: err}
	}

	if c.prefetch > 0 {
		if err = ch.Qos(c.prefetch, 0, false); err != nil {
			_ = ch.Close()

			return nil, &ChannelError{Op: "qos", Err: err}
		}
	}

	c.channel = ch

	return ch, nil
}

// Close closes the channel and then the connection. Calling it again is a no-op.
func (c *Con) Close() error {
	c.mute.Lock()
	defer c.mute.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	close(c.stop)

	var errs []error

	if c.channel != nil && !c.channel.IsClosed() {
		if err := c.channel.Close(); err != nil && !errors.Is(err, amqp091.ErrClosed) {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
	}

	if !c.connection.IsClosed() {
		if err := c.connection.Close(); err != nil && !errors.Is(err, amqp091.ErrClosed) {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	}

	c.log.Info("rabbit connection closed", zap.String("url", c.url))

	return errors.Join(errs...)
}

// RedactURL hides the password of an amqp URL.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid-url"
	}

	return u.Redacted()
}
