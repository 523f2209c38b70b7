package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/TIANLI0/CaneScan/model"
	"github.com/TIANLI0/CaneScan/utils"
)

// PredictionCache 预测结果缓存，RedisService 实现
type PredictionCache interface {
	GetPrediction(ctx context.Context, key string) (*model.Prediction, error)
	SetPrediction(ctx context.Context, key string, pred *model.Prediction) error
}

// CachedClassifier 以 来源+图片MD5 为键缓存成功的预测，缓存故障只记录日志
type CachedClassifier struct {
	next  Classifier
	cache PredictionCache
}

func NewCachedClassifier(next Classifier, cache PredictionCache) *CachedClassifier {
	return &CachedClassifier{next: next, cache: cache}
}

func (c *CachedClassifier) Name() string {
	return c.next.Name()
}

// ForModel 切换模型时保留缓存层
func (c *CachedClassifier) ForModel(path string) Classifier {
	selector, ok := c.next.(ModelSelector)
	if !ok {
		return c
	}
	return NewCachedClassifier(selector.ForModel(path), c.cache)
}

func (c *CachedClassifier) Predict(ctx context.Context, img *model.UploadedImage) (*model.Prediction, error) {
	key := c.next.Name() + ":" + utils.BytesMD5(img.Data)

	cached, err := c.cache.GetPrediction(ctx, key)
	if err != nil {
		utils.Logger.Warn("failed to get cache", zap.Error(err))
	}
	if cached != nil {
		utils.Logger.Info("cache hit", zap.String("cache_key", key))
		return cached, nil
	}

	pred, err := c.next.Predict(ctx, img)
	if err != nil {
		return nil, err
	}

	if err := c.cache.SetPrediction(ctx, key, pred); err != nil {
		utils.Logger.Warn("failed to set cache", zap.Error(err))
	}

	return pred, nil
}
