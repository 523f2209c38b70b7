package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/TIANLI0/CaneScan/config"
	"github.com/TIANLI0/CaneScan/model"
	"github.com/TIANLI0/CaneScan/utils"
)

var errQueueFull = errors.New("processing queue is full")

// Options 单次上传的参数
type Options struct {
	Threshold  float64
	Classifier Classifier
}

// Pipeline 按上传顺序逐张处理图片：校验、分类、阈值判定、知识库查询、标注
type Pipeline struct {
	preprocessor *Preprocessor
	kb           *KnowledgeBase
	annotator    *Annotator
	semaphore    chan struct{}
	queueTimeout time.Duration
	maxSize      int64
	extensions   []string
	contentTypes []string
}

func NewPipeline(preprocessor *Preprocessor, kb *KnowledgeBase, annotator *Annotator, pipelineCfg *config.PipelineConfig, uploadCfg *config.UploadConfig) *Pipeline {
	return &Pipeline{
		preprocessor: preprocessor,
		kb:           kb,
		annotator:    annotator,
		semaphore:    make(chan struct{}, pipelineCfg.MaxConcurrent),
		queueTimeout: pipelineCfg.QueueTimeout,
		maxSize:      uploadCfg.MaxSize,
		extensions:   uploadCfg.AllowedExtensions,
		contentTypes: uploadCfg.AllowedTypes,
	}
}

// Process 每张图片独立处理，单张失败不影响其余图片
func (p *Pipeline) Process(ctx context.Context, images []*model.UploadedImage, opts Options) []model.ImageResult {
	results := make([]model.ImageResult, 0, len(images))
	for i, img := range images {
		res := p.processOne(ctx, img, opts)
		res.Index = i
		res.Filename = img.Filename

		predictionsTotal.WithLabelValues(opts.Classifier.Name(), string(res.Status)).Inc()
		results = append(results, res)
	}
	return results
}

func (p *Pipeline) processOne(ctx context.Context, img *model.UploadedImage, opts Options) model.ImageResult {
	if err := p.validate(img); err != nil {
		return failureResult(img, err)
	}

	decoded, err := p.preprocessor.Decode(img)
	if err != nil {
		return failureResult(img, err)
	}

	// 副本携带解码结果，调用方的上传对象保持不变
	withDecoded := *img
	withDecoded.Decoded = decoded

	pred, err := p.classify(ctx, opts.Classifier, &withDecoded)
	if err != nil {
		return failureResult(img, err)
	}

	res := Decide(pred, opts.Threshold, p.kb)
	if res.Status != model.StatusOK {
		return res
	}

	annotated, err := p.annotator.Annotate(decoded, pred.Label, pred.Confidence)
	if err != nil {
		utils.Logger.Warn("failed to annotate image",
			zap.String("file", img.Filename),
			zap.Error(err))
		return res
	}
	res.Annotated = annotated
	return res
}

// classify 并发控制后调用分类器
func (p *Pipeline) classify(ctx context.Context, classifier Classifier, img *model.UploadedImage) (*model.Prediction, error) {
	waitCtx, cancel := context.WithTimeout(ctx, p.queueTimeout)
	defer cancel()

	select {
	case p.semaphore <- struct{}{}:
		defer func() { <-p.semaphore }()
	case <-waitCtx.Done():
		return nil, errQueueFull
	}

	start := time.Now()
	pred, err := classifier.Predict(ctx, img)
	predictionDuration.WithLabelValues(classifier.Name()).Observe(time.Since(start).Seconds())
	return pred, err
}

// validate 检查扩展名、Content-Type 和大小
func (p *Pipeline) validate(img *model.UploadedImage) error {
	ext := strings.ToLower(filepath.Ext(img.Filename))
	if img.Format != "" {
		ext = "." + strings.ToLower(strings.TrimPrefix(img.Format, "."))
	}
	if !containsFold(p.extensions, ext) {
		return fmt.Errorf("%w: unsupported file type %q", model.ErrInvalidImage, ext)
	}
	if !p.allowedType(img.ContentType) {
		return fmt.Errorf("%w: unsupported content type %q", model.ErrInvalidImage, img.ContentType)
	}
	if int64(len(img.Data)) > p.maxSize {
		return fmt.Errorf("%w: file exceeds %d MB", model.ErrInvalidImage, p.maxSize/(1024*1024))
	}
	return nil
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}

// allowedType 空值和 octet-stream 交给扩展名判断
func (p *Pipeline) allowedType(contentType string) bool {
	if contentType == "" || contentType == "application/octet-stream" {
		return true
	}
	return containsFold(p.contentTypes, contentType)
}

func failureResult(img *model.UploadedImage, err error) model.ImageResult {
	utils.Logger.Warn("image not classified",
		zap.String("file", img.Filename),
		zap.Error(err))

	switch {
	case errors.Is(err, model.ErrInvalidImage):
		return model.ImageResult{
			Status:  model.StatusInvalidImage,
			Message: fmt.Sprintf("Could not read %s. Supported formats: JPG, JPEG, PNG.", img.Filename),
		}
	case errors.Is(err, model.ErrModelLoad):
		return model.ImageResult{
			Status:  model.StatusModelUnavailable,
			Message: "The model could not be loaded. Check the model path and submit again.",
		}
	case errors.Is(err, model.ErrNoPredictions), errors.Is(err, model.ErrInferenceUnavailable):
		return model.ImageResult{
			Status:  model.StatusNoPredictions,
			Message: msgNoPredictions,
		}
	case errors.Is(err, errQueueFull):
		return model.ImageResult{
			Status:  model.StatusError,
			Message: "The server is busy. Please try again shortly.",
		}
	default:
		return model.ImageResult{
			Status:  model.StatusError,
			Message: "Classification failed. Please try again.",
		}
	}
}
