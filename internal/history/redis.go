package history

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Tyrowin/gischat/internal/protocol"
)

// RedisStore keeps history in one Redis list per channel. The newest entry
// is at the head of the list; List reverses it back to insertion order.
type RedisStore struct {
	client     redis.UniversalClient
	instanceID string
	capacity   int
}

// NewRedisStore returns a store writing under keys namespaced by
// instanceID.
func NewRedisStore(client redis.UniversalClient, instanceID string, capacity int) *RedisStore {
	return &RedisStore{
		client:     client,
		instanceID: instanceID,
		capacity:   max(capacity, 0),
	}
}

// Key returns the Redis key holding a channel's history.
func (s *RedisStore) Key(channel string) string {
	return fmt.Sprintf("iid:%s;channel:%s;last_messages", s.instanceID, channel)
}

func (s *RedisStore) Append(ctx context.Context, channel string, m protocol.Message) error {
	if !protocol.Storable(m) {
		return ErrNotStorable
	}
	if s.capacity == 0 {
		return nil
	}

	payload, err := protocol.Encode(m)
	if err != nil {
		return err
	}

	key := s.Key(channel)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, payload)
		pipe.LTrim(ctx, key, 0, int64(s.capacity-1))
		return nil
	})
	if err != nil {
		return fmt.Errorf("append history for channel %s: %w", channel, err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, channel string) ([]protocol.Message, error) {
	raw, err := s.client.LRange(ctx, s.Key(channel), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list history for channel %s: %w", channel, err)
	}

	messages := make([]protocol.Message, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		m, err := protocol.Decode([]byte(raw[i]))
		if err != nil {
			return nil, fmt.Errorf("decode history entry of channel %s: %w", channel, err)
		}
		messages = append(messages, m)
	}
	return messages, nil
}
