package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/TIANLI0/CaneScan/config"
	"github.com/TIANLI0/CaneScan/model"
	"github.com/TIANLI0/CaneScan/utils"
)

type RedisService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisService(cfg *config.RedisConfig) *RedisService {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisService{
		client: client,
		ttl:    cfg.TTL,
	}
}

func (s *RedisService) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// GetPrediction 从缓存获取预测结果
func (s *RedisService) GetPrediction(ctx context.Context, key string) (*model.Prediction, error) {
	data, err := s.client.Get(ctx, "prediction:"+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // 缓存未命中
		}
		return nil, err
	}

	var pred model.Prediction
	if err := json.Unmarshal(data, &pred); err != nil {
		utils.Logger.Error("failed to unmarshal prediction",
			zap.String("key", key), zap.Error(err))
		return nil, err
	}

	return &pred, nil
}

// SetPrediction 设置预测结果到缓存
func (s *RedisService) SetPrediction(ctx context.Context, key string, pred *model.Prediction) error {
	data, err := json.Marshal(pred)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, "prediction:"+key, data, s.ttl).Err()
}

func (s *RedisService) Close() error {
	return s.client.Close()
}
