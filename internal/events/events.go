// Package events publishes domain events to a message broker.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	json "github.com/goccy/go-json"
)

const TopicOrderPlaced = "orders.placed"

// OrderPlaced is emitted once an order has been created from a cart.
type OrderPlaced struct {
	OrderID   string    `json:"order_id"`
	SessionID string    `json:"session_id"`
	Total     int64     `json:"total"`
	ItemCount int64     `json:"item_count"`
	PlacedAt  time.Time `json:"placed_at"`
}

type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// PublishJSON encodes v and publishes it under key.
func PublishJSON(ctx context.Context, p Publisher, topic, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encode %s event", topic)
	}
	if err := p.Publish(ctx, topic, []byte(key), data); err != nil {
		return errors.Wrapf(err, "publish %s", topic)
	}
	return nil
}

// NopPublisher drops every message.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, []byte, []byte) error { return nil }

type Message struct {
	Topic string
	Key   string
	Value []byte
}

// RecordingPublisher keeps published messages in memory.
type RecordingPublisher struct {
	mu       sync.Mutex
	messages []Message
	err      error
}

// FailWith makes later publishes return err. Nil restores success.
func (r *RecordingPublisher) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *RecordingPublisher) Publish(ctx context.Context, topic string, key, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return r.err
	}
	r.messages = append(r.messages, Message{Topic: topic, Key: string(key), Value: append([]byte(nil), value...)})
	return nil
}

func (r *RecordingPublisher) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}
