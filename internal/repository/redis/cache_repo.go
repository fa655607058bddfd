package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/RohanKP1/image-upload-service/internal/cfg"
	"github.com/RohanKP1/image-upload-service/internal/usecase"
	"github.com/RohanKP1/image-upload-service/pkg/clients"
	"github.com/RohanKP1/image-upload-service/pkg/e"
	"github.com/RohanKP1/image-upload-service/pkg/logger"
	"github.com/jimlawless/whereami"
	goredis "github.com/redis/go-redis/v9"
)

// CacheRepo кэширует сводки кластеров пользователя в Redis.
// Кэш не является источником истины: промахи и ошибки записи не фатальны.
type CacheRepo struct {
	client *clients.RedisClient
	cfg    *cfg.RedisCfg
	logger logger.Logger
}

func NewCacheRepo(client *clients.RedisClient, cfg *cfg.RedisCfg, logger logger.Logger) *CacheRepo {
	return &CacheRepo{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

// GetClusterSummaries возвращает закэшированные сводки кластеров пользователя.
// Второй результат — признак попадания в кэш.
func (r *CacheRepo) GetClusterSummaries(ctx context.Context, userID string) ([]usecase.ClusterSummary, bool, error) {
	data, err := r.client.Client.Get(ctx, r.clustersKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		r.logger.Warnf("Redis GET failed: %v", e.Wrap(whereami.WhereAmI(), err))
		return nil, false, e.Wrap(whereami.WhereAmI(), err)
	}

	var summaries []usecase.ClusterSummary
	if err := json.Unmarshal(data, &summaries); err != nil {
		// Битая запись равносильна промаху: удаляем и идем в основное хранилище.
		r.logger.Warnf("Redis unmarshal failed: %v", e.Wrap(whereami.WhereAmI(), err))
		if err := r.client.Client.Del(context.Background(), r.clustersKey(userID)).Err(); err != nil {
			r.logger.Warnf("Redis DEL failed: %v", e.Wrap(whereami.WhereAmI(), err))
		}
		return nil, false, nil
	}

	return summaries, true, nil
}

// SetClusterSummaries кэширует сводки кластеров пользователя с заданным TTL.
// Ошибки записи логируются и не возвращаются вызывающему.
func (r *CacheRepo) SetClusterSummaries(ctx context.Context, userID string, summaries []usecase.ClusterSummary) error {
	data, err := json.Marshal(summaries)
	if err != nil {
		r.logger.Warnf("Failed to marshal cluster summaries (user: %s): %v", userID, e.Wrap(whereami.WhereAmI(), err))
		return nil
	}

	if err := r.client.Client.Set(ctx, r.clustersKey(userID), data, r.cfg.ClustersTTL).Err(); err != nil {
		r.logger.Warnf("Redis SET failed: %v", e.Wrap(whereami.WhereAmI(), err))
	}

	return nil
}

// InvalidateUser сбрасывает кэш сводок после изменения состояния кластеров.
func (r *CacheRepo) InvalidateUser(ctx context.Context, userID string) error {
	if err := r.client.Client.Del(ctx, r.clustersKey(userID)).Err(); err != nil {
		r.logger.Warnf("Redis DEL failed: %v", e.Wrap(whereami.WhereAmI(), err))
	}

	return nil
}

// clustersKey возвращает Redis-ключ сводок кластеров пользователя.
func (r *CacheRepo) clustersKey(userID string) string {
	return fmt.Sprintf("clusters:%s", userID)
}
