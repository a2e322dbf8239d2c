// Package kv provides a namespaced JSON scratch store on Redis with a
// same-origin change feed. Callers must tolerate an empty store (first run);
// malformed stored JSON is treated as absent rather than surfaced as an error.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store reads and writes namespaced JSON blobs.
type Store struct {
	client *redis.Client
	prefix string
}

// NewStore constructs a Store. All keys are prefixed with the given namespace.
func NewStore(client *redis.Client, namespace string) *Store {
	return &Store{client: client, prefix: namespace + ":"}
}

// Set stores value under key, marshalled as JSON. A zero ttl means no expiry.
func (s *Store) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.prefix+key, data, ttl).Err()
}

// Get unmarshals the value stored under key into target. It reports whether a
// usable value was present: missing keys and corrupt payloads both read as
// absent, and a corrupt payload is dropped so the next write starts clean.
func (s *Store) Get(ctx context.Context, key string, target any) (bool, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, target); err != nil {
		_ = s.client.Del(ctx, s.prefix+key).Err()
		return false, nil
	}
	return true, nil
}

// Remove deletes a key. Removing an absent key is not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

// Publish fans a JSON payload out on a channel for same-origin subscribers.
func (s *Store) Publish(ctx context.Context, channel string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, channel, data).Err()
}

// Subscribe returns a channel of raw payloads published on the given channel.
// The subscription ends when ctx is cancelled.
func (s *Store) Subscribe(ctx context.Context, channel string) <-chan []byte {
	sub := s.client.Subscribe(ctx, channel)
	out := make(chan []byte)
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.Channel():
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
