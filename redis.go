package streams

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on Redis Streams. Every method is a single
// command against the server, so no client-side locking is needed.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Client returns the underlying redis client.
func (s *RedisStore) Client() *redis.Client { return s.client }

func (s *RedisStore) EnsureGroup(ctx context.Context, topic, group string) error {
	err := s.client.XGroupCreateMkStream(ctx, topic, group, "0").Err()
	if err != nil && strings.Contains(err.Error(), "BUSYGROUP") {
		return ErrGroupExists
	}
	return err
}

func (s *RedisStore) Append(ctx context.Context, topic string, rec Record, maxLen int64) (string, error) {
	values := make(map[string]interface{}, len(rec))
	for k, v := range rec {
		values[k] = v
	}

	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: topic,
		MaxLen: maxLen,
		Approx: true,
		Values: values,
	}).Result()
}

func (s *RedisStore) ReadGroup(ctx context.Context, group, consumer string, topics []string, count int64, block time.Duration) (map[string][]Entry, error) {
	return s.read(ctx, group, consumer, topics, ">", count, block)
}

func (s *RedisStore) ReadBacklog(ctx context.Context, group, consumer string, topics []string, count int64) (map[string][]Entry, error) {
	// Cursor "0" reads this consumer's own pending entries; a negative
	// block keeps the call from waiting on the server.
	return s.read(ctx, group, consumer, topics, "0", count, -1)
}

func (s *RedisStore) read(ctx context.Context, group, consumer string, topics []string, cursor string, count int64, block time.Duration) (map[string][]Entry, error) {
	streams := make([]string, 0, len(topics)*2)
	streams = append(streams, topics...)
	for range topics {
		streams = append(streams, cursor)
	}

	res, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  streams,
		Count:    count,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	out := make(map[string][]Entry, len(res))
	for _, stream := range res {
		if len(stream.Messages) == 0 {
			continue
		}
		entries := make([]Entry, 0, len(stream.Messages))
		for _, m := range stream.Messages {
			rec := make(Record, len(m.Values))
			for k, v := range m.Values {
				if sv, ok := v.(string); ok {
					rec[k] = sv
				}
			}
			entries = append(entries, Entry{ID: m.ID, Record: rec})
		}
		out[stream.Stream] = entries
	}
	return out, nil
}

func (s *RedisStore) Ack(ctx context.Context, topic, group, id string) error {
	return s.client.XAck(ctx, topic, group, id).Err()
}

func (s *RedisStore) PendingEntries(ctx context.Context, topic, group string, count int64) ([]PendingInfo, error) {
	if count <= 0 {
		// The extended XPENDING form requires a count.
		count = 100
	}

	res, err := s.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: topic,
		Group:  group,
		Start:  "-",
		End:    "+",
		Count:  count,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	out := make([]PendingInfo, 0, len(res))
	for _, p := range res {
		out = append(out, PendingInfo{
			ID:         p.ID,
			Consumer:   p.Consumer,
			Idle:       p.Idle,
			RetryCount: p.RetryCount,
		})
	}
	return out, nil
}

func (s *RedisStore) Claim(ctx context.Context, topic, group, consumer string, minIdle time.Duration, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	return s.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   topic,
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Messages: ids,
	}).Err()
}

func (s *RedisStore) Info(ctx context.Context, topic string) (StreamInfo, error) {
	res, err := s.client.XInfoStream(ctx, topic).Result()
	if err != nil {
		if strings.Contains(err.Error(), "no such key") {
			return StreamInfo{}, ErrStreamNotFound
		}
		return StreamInfo{}, err
	}

	return StreamInfo{
		Length:       res.Length,
		Groups:       res.Groups,
		FirstEntryID: res.FirstEntry.ID,
		LastEntryID:  res.LastEntry.ID,
	}, nil
}

var _ Store = (*RedisStore)(nil)
