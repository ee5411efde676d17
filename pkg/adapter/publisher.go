// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/GwynCerbin/go_rabbit_service/pkg/broker"
	"github.com/GwynCerbin/go_rabbit_service/pkg/metrics"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	// HeaderEncoding selects the payload encoding of a published message.
	HeaderEncoding = "encoding"
	// EncodingRaw marks a payload that is already binary and is sent as is.
	EncodingRaw = "raw"
	// HeaderDataFormat and DataFormatBytes are the older spelling of the raw marker.
	HeaderDataFormat = "DATA_FORMAT"
	DataFormatBytes  = "BYTES"
)

var errRawPayload = errors.New("raw encoding needs a []byte payload")

// PublisherConfig shapes every message a Publisher sends.
type PublisherConfig struct {
	MessagePersistent bool
	AppId             string
}

// PublisherConfig derives the publisher settings from the client configuration.
func (c Client) PublisherConfig() PublisherConfig {
	return PublisherConfig{
		MessagePersistent: c.Persistent,
		AppId:             c.AppId,
	}
}

// Publisher sends messages over the shared channel, declaring target exchanges on first use.
// There are no publisher confirms and no retries.
type Publisher struct {
	// ch is the shared channel.
	ch broker.Channel
	// topology resolves and caches target exchanges.
	topology *Topology
	// cfg stores message settings like AppId and persistence.
	cfg     PublisherConfig
	metrics *metrics.Metrics
	log     *zap.Logger
}

// NewPublisher returns a Publisher over ch. m may be nil.
func NewPublisher(ch broker.Channel, topology *Topology, cfg PublisherConfig, m *metrics.Metrics, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}

	mimetype.SetLimit(mimeReadLimit)

	return &Publisher{
		ch:       ch,
		topology: topology,
		cfg:      cfg,
		metrics:  m,
		log:      log,
	}
}

// Publish sends payload to exchange with routingKey.
//
// A target exchange that was not declared by this process yet is declared as a durable
// direct exchange. With the raw marker header (encoding: raw, or DATA_FORMAT: BYTES) the
// payload must be a []byte and is sent unmodified; otherwise its textual form is sent.
func (p *Publisher) Publish(ctx context.Context, exchange, routingKey string, payload any, headers amqp091.Table) (err error) {
	defer func() {
		status := metrics.StatusSuccess
		if err != nil {
			status = metrics.StatusError
		}

		p.metrics.Published(exchange, status)
	}()

	if p.ch.IsClosed() {
		return &PublishError{Exchange: exchange, RoutingKey: routingKey, Err: ChannelClosedError{}}
	}

	if _, err = p.topology.DeclareExchange(exchange, ExchangeDirect, true); err != nil {
		return &PublishError{Exchange: exchange, RoutingKey: routingKey, Err: err}
	}

	body, err := encodePayload(payload, isRaw(headers))
	if err != nil {
		return &PublishError{Exchange: exchange, RoutingKey: routingKey, Err: err}
	}

	if err = p.ch.PublishWithContext(setPublisherConfig(ctx, p.cfg, exchange, routingKey, body, headers)); err != nil {
		if errors.Is(err, amqp091.ErrClosed) {
			err = fmt.Errorf("%w: %w", ChannelClosedError{}, err)
		}

		return &PublishError{Exchange: exchange, RoutingKey: routingKey, Err: err}
	}

	p.log.Debug("message published",
		zap.String("exchange", exchange),
		zap.String("routing_key", routingKey),
		zap.Int("size", len(body)),
	)

	return nil
}

// setPublisherConfig maps PublisherConfig and payload into AMQP publish arguments.
//
//nolint:gocritic // returning multiple values is justified in this context
func setPublisherConfig(ctx context.Context, cfg PublisherConfig, exchange, key string, data []byte, headers amqp091.Table) (_ context.Context, _, _ string, mandatory, immediate bool, msg amqp091.Publishing) {
	msg = amqp091.Publishing{
		Headers:     copyTable(headers),
		ContentType: mimetype.Detect(data).String(),
		Body:        data,
		AppId:       cfg.AppId,
		MessageId:   uuid.NewString(),
		Timestamp:   time.Now().UTC(),
	}

	if cfg.MessagePersistent {
		msg.DeliveryMode = amqp091.Persistent
	}

	return ctx, exchange, key, false, false, msg
}

func isRaw(headers amqp091.Table) bool {
	if v, ok := headers[HeaderEncoding].(string); ok && v == EncodingRaw {
		return true
	}

	v, ok := headers[HeaderDataFormat].(string)

	return ok && v == DataFormatBytes
}

// encodePayload turns payload into the message body.
func encodePayload(payload any, raw bool) ([]byte, error) {
	if raw {
		data, ok := payload.([]byte)
		if !ok {
			return nil, fmt.Errorf("%w, got %T", errRawPayload, payload)
		}

		return data, nil
	}

	switch v := payload.(type) {
	case nil:
		return []byte{}, nil
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	case fmt.Stringer:
		return []byte(v.String()), nil
	case error:
		return []byte(v.Error()), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}

		return data, nil
	}
}

func copyTable(t amqp091.Table) amqp091.Table {
	if len(t) == 0 {
		return nil
	}

	out := make(amqp091.Table, len(t))
	for k, v := range t {
		out[k] = v
	}

	return out
}
