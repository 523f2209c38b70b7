package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/TIANLI0/CaneScan/config"
	"github.com/TIANLI0/CaneScan/middleware"
	"github.com/TIANLI0/CaneScan/model"
	"github.com/TIANLI0/CaneScan/service"
	"github.com/TIANLI0/CaneScan/utils"
)

var (
	errNoImages         = errors.New("no images uploaded")
	errTooManyImages    = errors.New("too many images")
	errInvalidThreshold = errors.New("threshold must be a number between 0 and 1")
	errOverrideDisabled = errors.New("model path override is disabled")
)

type PredictHandler struct {
	cfg        *config.Config
	pipeline   *service.Pipeline
	classifier service.Classifier
}

func NewPredictHandler(cfg *config.Config, pipeline *service.Pipeline, classifier service.Classifier) *PredictHandler {
	return &PredictHandler{
		cfg:        cfg,
		pipeline:   pipeline,
		classifier: classifier,
	}
}

// Predict 处理表单上传并渲染结果页
func (h *PredictHandler) Predict(c *gin.Context) {
	session := middleware.CurrentSession(c)

	// 局部刷新只返回结果片段
	partial := c.GetHeader("HX-Request") == "true"

	batch, err := h.run(c, session)
	if err != nil {
		if partial {
			c.HTML(http.StatusBadRequest, "results.html", gin.H{"Error": err.Error()})
			return
		}
		c.HTML(http.StatusBadRequest, "predict.html", predictPageData(h.cfg, h.classifier, session, nil, err.Error()))
		return
	}

	if partial {
		c.HTML(http.StatusOK, "results.html", gin.H{"Results": batch.Results})
		return
	}
	c.HTML(http.StatusOK, "predict.html", predictPageData(h.cfg, h.classifier, session, batch.Results, ""))
}

// PredictAPI 与 Predict 相同的输入，返回 JSON
func (h *PredictHandler) PredictAPI(c *gin.Context) {
	session := middleware.CurrentSession(c)

	batch, err := h.run(c, session)
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "请求参数错误",
			Error:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, model.PredictResponse{
		Success: true,
		Message: "处理成功",
		Data:    batch,
	})
}

func (h *PredictHandler) run(c *gin.Context, session *model.Session) (*model.BatchResult, error) {
	threshold, err := parseThreshold(c.PostForm("threshold"), session.Threshold)
	if err != nil {
		return nil, err
	}

	modelPath, err := h.modelPath(c.PostForm("model_path"), session.ModelPath)
	if err != nil {
		return nil, err
	}

	images, err := h.readImages(c)
	if err != nil {
		return nil, err
	}

	session.Threshold = threshold
	session.ModelPath = modelPath

	classifier := h.classifier
	if modelPath != "" {
		if selector, ok := classifier.(service.ModelSelector); ok {
			classifier = selector.ForModel(modelPath)
		}
	}

	utils.Logger.Info("predict request",
		zap.Int("images", len(images)),
		zap.Float64("threshold", threshold),
		zap.String("classifier", classifier.Name()))

	results := h.pipeline.Process(c.Request.Context(), images, service.Options{
		Threshold:  threshold,
		Classifier: classifier,
	})

	return &model.BatchResult{
		Threshold: threshold,
		Backend:   classifier.Name(),
		Results:   results,
	}, nil
}

// parseThreshold 未提交时使用会话中的阈值
func parseThreshold(raw string, fallback float64) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	t, err := strconv.ParseFloat(raw, 64)
	if err != nil || !service.ValidThreshold(t) {
		return 0, errInvalidThreshold
	}
	return t, nil
}

func (h *PredictHandler) modelPath(raw, fallback string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if allowOverride(h.cfg, h.classifier) {
			return fallback, nil
		}
		return "", nil
	}
	if !allowOverride(h.cfg, h.classifier) {
		return "", errOverrideDisabled
	}
	return raw, nil
}

// readImages 读取 images 字段的全部文件，兼容单文件字段 image
func (h *PredictHandler) readImages(c *gin.Context) ([]*model.UploadedImage, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errNoImages, err)
	}

	files := append([]*multipart.FileHeader{}, form.File["images"]...)
	files = append(files, form.File["image"]...)
	if len(files) == 0 {
		return nil, errNoImages
	}
	if h.cfg.Upload.MaxFiles > 0 && len(files) > h.cfg.Upload.MaxFiles {
		return nil, fmt.Errorf("%w: at most %d per request", errTooManyImages, h.cfg.Upload.MaxFiles)
	}

	images := make([]*model.UploadedImage, 0, len(files))
	for _, file := range files {
		images = append(images, h.readImage(file))
	}
	return images, nil
}

// readImage 读取失败的文件以空数据交给流水线，结果标记为无效图片
func (h *PredictHandler) readImage(file *multipart.FileHeader) *model.UploadedImage {
	img := &model.UploadedImage{
		Filename:    file.Filename,
		Format:      strings.TrimPrefix(strings.ToLower(filepath.Ext(file.Filename)), "."),
		ContentType: file.Header.Get("Content-Type"),
	}

	f, err := file.Open()
	if err != nil {
		utils.Logger.Warn("failed to open upload", zap.String("file", file.Filename), zap.Error(err))
		return img
	}
	defer f.Close()

	// 多读一个字节，超限交给流水线判定
	data, err := io.ReadAll(io.LimitReader(f, h.cfg.Upload.MaxSize+1))
	if err != nil {
		utils.Logger.Warn("failed to read upload", zap.String("file", file.Filename), zap.Error(err))
		return img
	}
	img.Data = data
	return img
}
