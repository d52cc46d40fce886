package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/inspeaker/smartlink/internal/models"
)

// CacheRepository кэш резолва по короткому коду. Мутации ссылок и смена
// статуса группы обязаны инвалидировать затронутые коды (DeleteMany),
// иначе ворота публикации отстанут от базы.
type CacheRepository interface {
	Get(ctx context.Context, code string) (*models.ResolveTarget, error)
	Set(ctx context.Context, code string, target *models.ResolveTarget, ttl time.Duration) error
	Delete(ctx context.Context, code string) error
	DeleteMany(ctx context.Context, codes []string) error
}

type cacheRepository struct {
	redis *RedisDB
}

func NewCacheRepository(redis *RedisDB) CacheRepository {
	return &cacheRepository{redis: redis}
}

func (r *cacheRepository) Get(ctx context.Context, code string) (*models.ResolveTarget, error) {
	data, err := r.redis.Client.Get(ctx, r.key(code)).Bytes()
	if err != nil {
		return nil, err
	}

	var target models.ResolveTarget
	if err := json.Unmarshal(data, &target); err != nil {
		return nil, fmt.Errorf("failed to unmarshal resolve target: %w", err)
	}

	return &target, nil
}

func (r *cacheRepository) Set(ctx context.Context, code string, target *models.ResolveTarget, ttl time.Duration) error {
	data, err := json.Marshal(target)
	if err != nil {
		return fmt.Errorf("failed to marshal resolve target: %w", err)
	}

	return r.redis.Client.Set(ctx, r.key(code), data, ttl).Err()
}

func (r *cacheRepository) Delete(ctx context.Context, code string) error {
	return r.redis.Client.Del(ctx, r.key(code)).Err()
}

func (r *cacheRepository) DeleteMany(ctx context.Context, codes []string) error {
	if len(codes) == 0 {
		return nil
	}

	keys := make([]string, len(codes))
	for i, code := range codes {
		keys[i] = r.key(code)
	}

	return r.redis.Client.Del(ctx, keys...).Err()
}

func (r *cacheRepository) key(code string) string {
	return "resolve:" + code
}
