package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bilgisen/redflag-cms/internal/models"
	"github.com/redis/go-redis/v9"
)

// HistorySize is how many publish events the log retains.
const HistorySize = 50

// PublishLog records build hook attempts for the status endpoint.
type PublishLog interface {
	RecordPublish(ctx context.Context, event models.PublishEvent) error
	// LastPublish returns nil when nothing has been recorded.
	LastPublish(ctx context.Context) (*models.PublishEvent, error)
	History(ctx context.Context, limit int) ([]models.PublishEvent, error)
	Close() error
}

type RedisClient struct {
	client *redis.Client
	prefix string
}

func NewRedisClient(redisURL, prefix string) (*RedisClient, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisClient{
		client: client,
		prefix: prefix,
	}, nil
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}

func (r *RedisClient) key() string {
	return r.prefix + "publish:log"
}

func (r *RedisClient) RecordPublish(ctx context.Context, event models.PublishEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal publish event: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, r.key(), data)
		pipe.LTrim(ctx, r.key(), 0, HistorySize-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis record publish: %w", err)
	}
	return nil
}

func (r *RedisClient) LastPublish(ctx context.Context) (*models.PublishEvent, error) {
	data, err := r.client.LIndex(ctx, r.key(), 0).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis last publish: %w", err)
	}

	var event models.PublishEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("decode publish event: %w", err)
	}
	return &event, nil
}

// History returns up to limit events, newest first.
func (r *RedisClient) History(ctx context.Context, limit int) ([]models.PublishEvent, error) {
	if limit <= 0 || limit > HistorySize {
		limit = HistorySize
	}
	items, err := r.client.LRange(ctx, r.key(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis publish history: %w", err)
	}

	events := make([]models.PublishEvent, 0, len(items))
	for _, item := range items {
		var event models.PublishEvent
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			return nil, fmt.Errorf("decode publish event: %w", err)
		}
		events = append(events, event)
	}
	return events, nil
}
