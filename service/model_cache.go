package service

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/TIANLI0/CaneScan/model"
	"github.com/TIANLI0/CaneScan/utils"
)

// InferenceModel 已加载的模型实例
type InferenceModel interface {
	// Run 对单个批次做一次前向计算，返回类别概率向量
	Run(batch *model.Batch) ([]float32, error)
	Close() error
}

// ModelLoader 从文件路径加载模型
type ModelLoader func(path string) (InferenceModel, error)

// ModelCache 按路径缓存已加载的模型，首次使用时加载，之后不再重复加载。
// 超过容量时关闭最久未使用的模型。加载失败不缓存，用户修正路径或重新提交即可重试。
type ModelCache struct {
	mu       sync.Mutex
	loader   ModelLoader
	capacity int
	models   map[string]InferenceModel
	order    []string // 按最近使用排序，末尾最新
}

// NewModelCache capacity <= 0 时不限制数量
func NewModelCache(loader ModelLoader, capacity int) *ModelCache {
	return &ModelCache{
		loader:   loader,
		capacity: capacity,
		models:   make(map[string]InferenceModel),
	}
}

// Get 返回路径对应的模型，不存在时在锁内加载
func (c *ModelCache) Get(path string) (InferenceModel, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: model path is empty", model.ErrModelLoad)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if m, ok := c.models[path]; ok {
		c.touch(path)
		return m, nil
	}

	utils.Logger.Info("loading model", zap.String("path", path))

	m, err := c.loader(path)
	if err != nil {
		if errors.Is(err, model.ErrModelLoad) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", model.ErrModelLoad, path, err)
	}

	c.models[path] = m
	c.order = append(c.order, path)
	c.evict()
	return m, nil
}

func (c *ModelCache) touch(path string) {
	for i, p := range c.order {
		if p == path {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.order = append(c.order, path)
}

// evict 关闭超出容量的旧模型
func (c *ModelCache) evict() {
	for c.capacity > 0 && len(c.order) > c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]

		if err := c.models[oldest].Close(); err != nil {
			utils.Logger.Warn("failed to close evicted model",
				zap.String("path", oldest),
				zap.Error(err))
		}
		delete(c.models, oldest)
		utils.Logger.Info("model evicted", zap.String("path", oldest))
	}
}

// Loaded 返回已缓存的模型数量
func (c *ModelCache) Loaded() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.models)
}

// Close 释放所有模型
func (c *ModelCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for path, m := range c.models {
		if err := m.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", path, err))
		}
		delete(c.models, path)
	}
	c.order = nil
	return errors.Join(errs...)
}
