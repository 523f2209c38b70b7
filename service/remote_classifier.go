package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"net/url"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/TIANLI0/CaneScan/config"
	"github.com/TIANLI0/CaneScan/model"
	"github.com/TIANLI0/CaneScan/utils"
)

// RemoteClassifier 调用远程工作流推理接口，不在本地做预处理。
// 每张图片一次请求，超时显式配置，失败不重试。
type RemoteClassifier struct {
	client     *resty.Client
	apiKey     string
	workspace  string
	workflowID string
	useCache   bool
}

func NewRemoteClassifier(cfg *config.RemoteConfig) *RemoteClassifier {
	client := resty.New().
		SetBaseURL(cfg.APIURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &RemoteClassifier{
		client:     client,
		apiKey:     cfg.APIKey,
		workspace:  cfg.Workspace,
		workflowID: cfg.WorkflowID,
		useCache:   cfg.UseCache,
	}
}

func (c *RemoteClassifier) Name() string {
	return "remote:" + c.workspace + "/" + c.workflowID
}

type workflowRequest struct {
	APIKey   string                   `json:"api_key"`
	Inputs   map[string]workflowImage `json:"inputs"`
	UseCache bool                     `json:"use_cache"`
}

type workflowImage struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type workflowResponse struct {
	Outputs []workflowOutput `json:"outputs"`
}

type workflowOutput struct {
	Predictions *classificationPayload `json:"predictions"`
}

type classificationPayload struct {
	PredictedClasses []string              `json:"predicted_classes"`
	Predictions      map[string]classScore `json:"predictions"`
}

type classScore struct {
	Confidence *float64 `json:"confidence"`
	ClassID    int      `json:"class_id"`
}

func (c *RemoteClassifier) Predict(ctx context.Context, img *model.UploadedImage) (*model.Prediction, error) {
	if img == nil || len(img.Data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", model.ErrInvalidImage)
	}

	body := workflowRequest{
		APIKey: c.apiKey,
		Inputs: map[string]workflowImage{
			"image": {Type: "base64", Value: base64.StdEncoding.EncodeToString(img.Data)},
		},
		UseCache: c.useCache,
	}

	path := fmt.Sprintf("/%s/workflows/%s", url.PathEscape(c.workspace), url.PathEscape(c.workflowID))
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		Post(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInferenceUnavailable, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: workflow returned status %d", model.ErrInferenceUnavailable, resp.StatusCode())
	}

	var result workflowResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", model.ErrInferenceUnavailable, err)
	}

	pred, err := parseWorkflowResponse(&result)
	if err != nil {
		return nil, err
	}
	pred.Source = c.Name()

	if !model.IsKnownLabel(pred.Label) {
		utils.Logger.Warn("workflow returned label outside the known class set",
			zap.String("label", pred.Label),
			zap.String("workflow", c.workflowID))
	}

	utils.Logger.Debug("remote prediction",
		zap.String("file", img.Filename),
		zap.String("label", pred.Label),
		zap.Float64("confidence", pred.Confidence),
		zap.Duration("latency", resp.Time()))

	return pred, nil
}

// parseWorkflowResponse 校验响应结构：取排名第一的类别，并从置信度表中查出它的置信度
func parseWorkflowResponse(result *workflowResponse) (*model.Prediction, error) {
	if len(result.Outputs) == 0 || result.Outputs[0].Predictions == nil {
		return nil, fmt.Errorf("%w: response has no predictions", model.ErrInferenceUnavailable)
	}

	payload := result.Outputs[0].Predictions
	if len(payload.PredictedClasses) == 0 {
		return nil, model.ErrNoPredictions
	}

	label := payload.PredictedClasses[0]
	score, ok := payload.Predictions[label]
	if !ok || score.Confidence == nil {
		return nil, fmt.Errorf("%w: no confidence for class %q", model.ErrInferenceUnavailable, label)
	}

	scores := make(map[string]float64, len(payload.Predictions))
	for name, s := range payload.Predictions {
		if s.Confidence == nil {
			continue
		}
		if !validConfidence(*s.Confidence) {
			return nil, fmt.Errorf("%w: confidence %v for class %q out of range", model.ErrInferenceUnavailable, *s.Confidence, name)
		}
		scores[name] = *s.Confidence
	}

	return &model.Prediction{
		Label:      label,
		Confidence: *score.Confidence,
		Scores:     scores,
	}, nil
}

func validConfidence(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}
