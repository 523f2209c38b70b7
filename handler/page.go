package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/TIANLI0/CaneScan/config"
	"github.com/TIANLI0/CaneScan/middleware"
	"github.com/TIANLI0/CaneScan/model"
	"github.com/TIANLI0/CaneScan/service"
)

type PageHandler struct {
	cfg        *config.Config
	classifier service.Classifier
}

func NewPageHandler(cfg *config.Config, classifier service.Classifier) *PageHandler {
	return &PageHandler{
		cfg:        cfg,
		classifier: classifier,
	}
}

// Index 根据会话页面渲染登录页或预测页
func (h *PageHandler) Index(c *gin.Context) {
	session := middleware.CurrentSession(c)
	if session == nil || session.Page != model.PagePrediction || !session.Authenticated {
		loginError := session != nil && session.LoginError
		c.HTML(http.StatusOK, "login.html", gin.H{
			"LoginError": loginError,
		})
		return
	}

	c.HTML(http.StatusOK, "predict.html", predictPageData(h.cfg, h.classifier, session, nil, ""))
}

func predictPageData(cfg *config.Config, classifier service.Classifier, session *model.Session, results []model.ImageResult, errMsg string) gin.H {
	return gin.H{
		"Username":           session.Username,
		"Threshold":          session.Threshold,
		"ModelPath":          session.ModelPath,
		"AllowModelOverride": allowOverride(cfg, classifier),
		"Backend":            classifier.Name(),
		"Results":            results,
		"Error":              errMsg,
	}
}

// allowOverride 仅本地后端且开启配置时允许指定模型路径
func allowOverride(cfg *config.Config, classifier service.Classifier) bool {
	if !cfg.Classifier.AllowModelOverride || cfg.Classifier.Backend != config.BackendLocal {
		return false
	}
	_, ok := classifier.(service.ModelSelector)
	return ok
}
