package service

import (
	"context"

	"github.com/TIANLI0/CaneScan/model"
)

// Classifier 图片分类能力，本地与远程实现返回相同的 Prediction
type Classifier interface {
	Predict(ctx context.Context, img *model.UploadedImage) (*model.Prediction, error)
	// Name 标识分类来源，用于缓存键和日志
	Name() string
}

// ModelSelector 可按模型路径切换的分类器（仅本地后端）
type ModelSelector interface {
	ForModel(path string) Classifier
}
