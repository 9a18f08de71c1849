// Package redis caches assembled knowledge base content so repeated
// question generation does not re-read every document row.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/studyowl/backend/pkg/logger"
)

type Client struct {
	rdb *goredis.Client
	ttl time.Duration
}

func NewClient(ctx context.Context, addr, password string, db int, ttl time.Duration) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", addr))
	return &Client{rdb: rdb, ttl: ttl}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func contentKey(kbID string) string {
	return "studyowl:kb:" + kbID + ":content"
}

// GetContent returns the cached content for a knowledge base, or ok=false on
// a miss. Transport errors are logged and treated as misses so the cache can
// never fail a read path.
func (c *Client) GetContent(ctx context.Context, kbID string) (string, bool) {
	val, err := c.rdb.Get(ctx, contentKey(kbID)).Result()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			logger.Warn("Redis get failed", zap.String("kb_id", kbID), zap.Error(err))
		}
		return "", false
	}
	return val, true
}

func (c *Client) SetContent(ctx context.Context, kbID, content string) {
	if err := c.rdb.Set(ctx, contentKey(kbID), content, c.ttl).Err(); err != nil {
		logger.Warn("Redis set failed", zap.String("kb_id", kbID), zap.Error(err))
	}
}

// Invalidate drops the cached content after a document upload or delete.
func (c *Client) Invalidate(ctx context.Context, kbID string) {
	if err := c.rdb.Del(ctx, contentKey(kbID)).Err(); err != nil {
		logger.Warn("Redis delete failed", zap.String("kb_id", kbID), zap.Error(err))
	}
}
