package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/TIANLI0/CaneScan/config"
	"github.com/TIANLI0/CaneScan/middleware"
	"github.com/TIANLI0/CaneScan/service"
	"github.com/TIANLI0/CaneScan/web"
)

// Dependencies 路由依赖的服务
type Dependencies struct {
	Config        *config.Config
	Pipeline      *service.Pipeline
	Classifier    service.Classifier
	KnowledgeBase *service.KnowledgeBase
	Sessions      service.SessionStore
	Authenticator service.Authenticator
}

// NewRouter 注册页面和 API 路由
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	cfg := deps.Config

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS())
	r.Use(middleware.Metrics())
	r.MaxMultipartMemory = cfg.Upload.MaxSize

	tmpl, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	r.SetHTMLTemplate(tmpl)
	r.StaticFS("/static", http.FS(web.Static()))

	pageHandler := NewPageHandler(cfg, deps.Classifier)
	authHandler := NewAuthHandler(deps.Authenticator)
	predictHandler := NewPredictHandler(cfg, deps.Pipeline, deps.Classifier)
	settingsHandler := NewSettingsHandler(cfg, deps.Classifier)
	diseaseHandler := NewDiseaseHandler(deps.KnowledgeBase)

	app := r.Group("/", middleware.Session(deps.Sessions, &cfg.Session, cfg.Presentation.DefaultThreshold))
	{
		app.GET("/", pageHandler.Index)
		app.POST("/login", authHandler.Login)
		app.POST("/logout", authHandler.Logout)
		app.POST("/predict", middleware.RequireAuth(false), predictHandler.Predict)
	}

	api := app.Group("/api/v1")
	{
		api.GET("/diseases", diseaseHandler.List)
		api.GET("/diseases/:label", diseaseHandler.Get)
		api.POST("/predict", middleware.RequireAuth(true), predictHandler.PredictAPI)
		api.POST("/settings", middleware.RequireAuth(true), settingsHandler.Update)
	}

	return r, nil
}
