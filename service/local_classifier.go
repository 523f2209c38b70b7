package service

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/TIANLI0/CaneScan/model"
	"github.com/TIANLI0/CaneScan/utils"
)

type LocalClassifier struct {
	cache        *ModelCache
	preprocessor *Preprocessor
	modelPath    string
	classes      []string
	width        int
	height       int
}

func NewLocalClassifier(cache *ModelCache, preprocessor *Preprocessor, modelPath string, classes []string, width, height int) *LocalClassifier {
	if len(classes) == 0 {
		classes = model.Labels
	}
	return &LocalClassifier{
		cache:        cache,
		preprocessor: preprocessor,
		modelPath:    modelPath,
		classes:      append([]string(nil), classes...),
		width:        width,
		height:       height,
	}
}

func (c *LocalClassifier) Name() string {
	return "local:" + filepath.Clean(c.modelPath)
}

// ForModel 返回绑定到其他模型路径的分类器，共享同一个模型缓存
func (c *LocalClassifier) ForModel(path string) Classifier {
	clone := *c
	clone.modelPath = path
	return &clone
}

// Predict 预处理、前向计算并取最大概率类别
func (c *LocalClassifier) Predict(ctx context.Context, img *model.UploadedImage) (*model.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	batch, err := c.preprocessor.Preprocess(img, c.width, c.height)
	if err != nil {
		return nil, err
	}

	m, err := c.cache.Get(c.modelPath)
	if err != nil {
		return nil, err
	}

	probs, err := m.Run(batch)
	if err != nil {
		return nil, fmt.Errorf("%w: inference failed: %v", model.ErrModelLoad, err)
	}
	if len(probs) == 0 {
		return nil, fmt.Errorf("%w: model returned no scores", model.ErrModelLoad)
	}

	maxIdx := 0
	maxVal := probs[0]
	scores := make(map[string]float64, len(probs))
	for i, val := range probs {
		if !validConfidence(float64(val)) {
			return nil, fmt.Errorf("%w: incompatible model output, score %v at index %d is not a probability", model.ErrModelLoad, val, i)
		}
		scores[c.label(i)] = float64(val)
		if val > maxVal {
			maxVal = val
			maxIdx = i
		}
	}

	pred := &model.Prediction{
		Label:      c.label(maxIdx),
		Confidence: float64(maxVal),
		Scores:     scores,
		Source:     c.Name(),
	}

	utils.Logger.Debug("local prediction",
		zap.String("file", img.Filename),
		zap.String("label", pred.Label),
		zap.Float64("confidence", pred.Confidence))

	return pred, nil
}

// label 输出维度多于类别表时使用占位标签，由知识库按未找到处理
func (c *LocalClassifier) label(idx int) string {
	if idx < len(c.classes) {
		return c.classes[idx]
	}
	return fmt.Sprintf("class_%d", idx)
}
