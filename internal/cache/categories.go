package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const categoriesKey = "farm-market:categories"

// Categories кэширует список категорий активных товаров.
// С nil-клиентом все методы ничего не делают, Get всегда промах.
type Categories struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCategories(client *redis.Client, ttl time.Duration) *Categories {
	return &Categories{client: client, ttl: ttl}
}

// Get возвращает закэшированный список; ok=false при промахе.
func (c *Categories) Get(ctx context.Context) ([]string, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}
	raw, err := c.client.Get(ctx, categoriesKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache.Categories.Get: %w", err)
	}
	var categories []string
	if err := json.Unmarshal(raw, &categories); err != nil {
		return nil, false, fmt.Errorf("cache.Categories.Get: decode: %w", err)
	}
	return categories, true, nil
}

func (c *Categories) Set(ctx context.Context, categories []string) error {
	if c == nil || c.client == nil {
		return nil
	}
	data, err := json.Marshal(categories)
	if err != nil {
		return fmt.Errorf("cache.Categories.Set: encode: %w", err)
	}
	if err := c.client.Set(ctx, categoriesKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache.Categories.Set: %w", err)
	}
	return nil
}

// Invalidate сбрасывает список после изменения каталога.
func (c *Categories) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, categoriesKey).Err(); err != nil {
		return fmt.Errorf("cache.Categories.Invalidate: %w", err)
	}
	return nil
}
