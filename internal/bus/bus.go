// Package bus fans room broadcasts out across server instances over redis
// pub/sub. A single-instance deployment runs without it.
package bus

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Message is one broadcast frame crossing instance boundaries. Origin is
// the publishing instance's id, used to skip our own messages on receive.
type Message struct {
	Origin string `json:"origin"`
	RoomID string `json:"roomId"`
	Frame  []byte `json:"frame"`
}

// Bus publishes and subscribes to room broadcast frames.
type Bus struct {
	rdb    *redis.Client
	log    *slog.Logger
	origin string
}

// New connects to redis and verifies connectivity. Origin must be unique
// per instance.
func New(ctx context.Context, addr string, db int, origin string, log *slog.Logger) (*Bus, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Bus{rdb: rdb, log: log, origin: origin}, nil
}

// Publish sends one frame to the channel for a room.
func (b *Bus) Publish(ctx context.Context, roomID string, frame []byte) error {
	raw, err := json.Marshal(Message{Origin: b.origin, RoomID: roomID, Frame: frame})
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, channel(roomID), raw).Err()
}

// Subscribe listens on all room channels and invokes fn for every frame
// published by another instance, until ctx is cancelled.
func (b *Bus) Subscribe(ctx context.Context, fn func(roomID string, frame []byte)) {
	pubsub := b.rdb.PSubscribe(ctx, channel("*"))
	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			_ = pubsub.Close()
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			m, ok := decode([]byte(msg.Payload), b.origin)
			if !ok {
				continue
			}
			fn(m.RoomID, m.Frame)
		}
	}
}

// Close shuts down the redis connection.
func (b *Bus) Close() { _ = b.rdb.Close() }

// decode parses a bus payload and filters out our own messages.
func decode(payload []byte, origin string) (Message, bool) {
	var m Message
	if err := json.Unmarshal(payload, &m); err != nil {
		return Message{}, false
	}
	if m.RoomID == "" || m.Origin == origin {
		return Message{}, false
	}
	return m, true
}

// channel namespaces room pub/sub topics.
func channel(roomID string) string { return "room:" + roomID }
