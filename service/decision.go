package service

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/TIANLI0/CaneScan/model"
	"github.com/TIANLI0/CaneScan/utils"
)

const msgNoPredictions = "No predictions found."

// Decide 按阈值决定展示完整结果或提示置信度不足，二者必居其一
func Decide(pred *model.Prediction, threshold float64, kb *KnowledgeBase) model.ImageResult {
	if pred.Confidence >= threshold {
		rec, ok := kb.Lookup(pred.Label)
		if !ok {
			utils.Logger.Warn("disease info missing",
				zap.String("label", pred.Label),
				zap.Error(model.ErrLabelNotFound))
		}
		return model.ImageResult{
			Status:     model.StatusOK,
			Message:    fmt.Sprintf("Prediction: %s (Confidence: %.2f)", pred.Label, pred.Confidence),
			Label:      pred.Label,
			Confidence: pred.Confidence,
			Disease:    &rec,
		}
	}

	return model.ImageResult{
		Status:     model.StatusBelowThreshold,
		Message:    fmt.Sprintf("Prediction confidence (%.2f) below threshold (%.2f), not displaying.", pred.Confidence, threshold),
		Confidence: pred.Confidence,
	}
}

// ValidThreshold 阈值必须在 [0,1]
func ValidThreshold(t float64) bool {
	return t >= 0 && t <= 1
}
