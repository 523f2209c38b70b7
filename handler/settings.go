package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/TIANLI0/CaneScan/config"
	"github.com/TIANLI0/CaneScan/middleware"
	"github.com/TIANLI0/CaneScan/model"
	"github.com/TIANLI0/CaneScan/service"
)

type settingsRequest struct {
	Threshold *float64 `json:"threshold"`
	ModelPath *string  `json:"model_path"`
}

type SettingsHandler struct {
	cfg        *config.Config
	classifier service.Classifier
}

func NewSettingsHandler(cfg *config.Config, classifier service.Classifier) *SettingsHandler {
	return &SettingsHandler{
		cfg:        cfg,
		classifier: classifier,
	}
}

// Update 保存会话的阈值和模型路径
func (h *SettingsHandler) Update(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "请求参数错误",
			Error:   err.Error(),
		})
		return
	}

	if req.Threshold != nil && !service.ValidThreshold(*req.Threshold) {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "请求参数错误",
			Error:   errInvalidThreshold.Error(),
		})
		return
	}

	if req.ModelPath != nil && !allowOverride(h.cfg, h.classifier) {
		c.JSON(http.StatusForbidden, model.ErrorResponse{
			Success: false,
			Message: "不允许修改模型路径",
			Error:   errOverrideDisabled.Error(),
		})
		return
	}

	session := middleware.CurrentSession(c)
	if req.Threshold != nil {
		session.Threshold = *req.Threshold
	}
	if req.ModelPath != nil {
		session.ModelPath = strings.TrimSpace(*req.ModelPath)
	}

	c.JSON(http.StatusOK, model.SettingsResponse{
		Success: true,
		Message: "设置已保存",
		Data: &model.Settings{
			Threshold: session.Threshold,
			ModelPath: session.ModelPath,
		},
	})
}
