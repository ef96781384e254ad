package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReviewItem is a permanently failed batch parked for an operator
type ReviewItem struct {
	CorrelationID string    `json:"correlation_id"`
	AdvertiserID  string    `json:"advertiser_id"`
	AudienceName  string    `json:"audience_name"`
	Operation     string    `json:"operation"`
	Identifiers   []string  `json:"identifiers"`
	ErrorCode     string    `json:"error_code"`
	ErrorMessage  string    `json:"error_message"`
	Field         string    `json:"field,omitempty"`
	Value         string    `json:"value,omitempty"`
	FailedAt      time.Time `json:"failed_at"`
}

// ReviewQueue routes batches that must not be retried to manual review
type ReviewQueue interface {
	Enqueue(ctx context.Context, item ReviewItem) error
	Pending(ctx context.Context, limit int64) ([]ReviewItem, error)
	Len(ctx context.Context) (int64, error)
}

// RedisReviewQueue keeps the newest items at the head of a capped list
type RedisReviewQueue struct {
	client redis.UniversalClient
	key    string
	maxLen int64
}

func NewRedisReviewQueue(client redis.UniversalClient, prefix string, maxLen int64) *RedisReviewQueue {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &RedisReviewQueue{
		client: client,
		key:    prefix + "review:audience-sync",
		maxLen: maxLen,
	}
}

func (q *RedisReviewQueue) Enqueue(ctx context.Context, item ReviewItem) error {
	b, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to encode review item: %w", err)
	}
	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, q.key, b)
		pipe.LTrim(ctx, q.key, 0, q.maxLen-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue review item: %w", err)
	}
	return nil
}

// Pending returns up to limit items, newest first
func (q *RedisReviewQueue) Pending(ctx context.Context, limit int64) ([]ReviewItem, error) {
	if limit <= 0 {
		limit = 50
	}
	raw, err := q.client.LRange(ctx, q.key, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read review queue: %w", err)
	}
	items := make([]ReviewItem, 0, len(raw))
	for _, r := range raw {
		var it ReviewItem
		if err := json.Unmarshal([]byte(r), &it); err != nil {
			continue
		}
		items = append(items, it)
	}
	return items, nil
}

func (q *RedisReviewQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read review queue length: %w", err)
	}
	return n, nil
}

// NoopReviewQueue drops items; used when redis is disabled
type NoopReviewQueue struct{}

func (NoopReviewQueue) Enqueue(ctx context.Context, item ReviewItem) error { return nil }

func (NoopReviewQueue) Pending(ctx context.Context, limit int64) ([]ReviewItem, error) {
	return []ReviewItem{}, nil
}

func (NoopReviewQueue) Len(ctx context.Context) (int64, error) { return 0, nil }
