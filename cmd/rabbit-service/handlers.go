package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/GwynCerbin/go_rabbit_service/pkg/adapter"
	"github.com/GwynCerbin/go_rabbit_service/pkg/broker"

	"github.com/go-chi/chi/v5"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const maxPublishBody = 1 << 20

// jsonHandler logs a JSON delivery; a body that is not JSON fails the delivery.
func jsonHandler(log *zap.Logger) broker.Handler {
	return func(_ context.Context, msg broker.Message) error {
		var payload any
		if err := json.Unmarshal(msg.Body(), &payload); err != nil {
			return fmt.Errorf("decode json body: %w", err)
		}

		log.Info("json message received",
			zap.String("queue", msg.RoutingKey()),
			zap.String("message_id", msg.MessageID()),
			zap.Any("headers", msg.Headers()),
			zap.Any("payload", payload),
		)

		return nil
	}
}

// textHandler logs the body as text.
func textHandler(log *zap.Logger) broker.Handler {
	return func(_ context.Context, msg broker.Message) error {
		log.Info("text message received",
			zap.String("queue", msg.RoutingKey()),
			zap.String("content_type", msg.ContentType()),
			zap.ByteString("body", msg.Body()),
		)

		return nil
	}
}

// PublisherSource returns the live publisher, nil while the broker is not connected.
type PublisherSource func() *adapter.Publisher

// demoRoutes mounts GET / and POST /publish.
func demoRoutes(pub PublisherSource) func(r chi.Router) {
	return func(r chi.Router) {
		r.Get("/", hello)
		r.Post("/publish", publishHandler(pub))
	}
}

func hello(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Hello World"})
}

// publishHandler forwards the request body, unchanged, to ?exchange=&routing_key=.
func publishHandler(source PublisherSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pub := source()
		if pub == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "broker not connected"})
			return
		}

		q := r.URL.Query()
		key := q.Get("routing_key")
		if key == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "routing_key is required"})
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPublishBody))
		if err != nil {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": err.Error()})
			return
		}

		headers := amqp091.Table{adapter.HeaderEncoding: adapter.EncodingRaw}

		err = pub.Publish(r.Context(), q.Get("exchange"), key, body, headers)

		var pubErr *adapter.PublishError
		switch {
		case errors.As(err, &pubErr):
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		case err != nil:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		default:
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "published"})
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
