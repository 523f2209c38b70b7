package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/TIANLI0/CaneScan/config"
	"github.com/TIANLI0/CaneScan/handler"
	"github.com/TIANLI0/CaneScan/service"
	"github.com/TIANLI0/CaneScan/utils"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	BuildID   = "unknown"
	GitCommit = "unknown"
	GitBranch = "unknown"
)

func main() {
	// 加载配置
	cfg, err := config.New()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := utils.InitLogger(cfg.Server.Mode); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer utils.Sync()

	utils.Logger.Info("starting CaneScan server",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.String("git_branch", GitBranch),
		zap.String("backend", cfg.Classifier.Backend))

	ctx := context.Background()

	// 初始化Redis，连接失败时不启用缓存
	var redisService *service.RedisService
	if cfg.Redis.Enabled {
		redisService = service.NewRedisService(&cfg.Redis)
		if err := redisService.Ping(ctx); err != nil {
			utils.Logger.Warn("redis connection failed, cache disabled", zap.Error(err))
			_ = redisService.Close()
			redisService = nil
		} else {
			utils.Logger.Info("redis connected successfully")
			defer redisService.Close()
		}
	}

	// 初始化分类器
	preprocessor := service.NewPreprocessor()
	var (
		classifier service.Classifier
		modelCache *service.ModelCache
	)
	switch cfg.Classifier.Backend {
	case config.BackendLocal:
		service.SetORTLibraryPath(cfg.Classifier.SharedLibraryPath)
		modelCache = service.NewModelCache(service.LoadORTModel, cfg.Classifier.MaxLoadedModels)
		classifier = service.NewLocalClassifier(
			modelCache,
			preprocessor,
			cfg.Classifier.ModelPath,
			cfg.Classifier.Classes,
			cfg.Classifier.InputWidth,
			cfg.Classifier.InputHeight,
		)
	default:
		if cfg.Remote.APIKey == "" {
			utils.Logger.Warn("remote api key is empty, set CANESCAN_REMOTE_API_KEY")
		}
		classifier = service.NewRemoteClassifier(&cfg.Remote)
	}
	if redisService != nil {
		classifier = service.NewCachedClassifier(classifier, redisService)
	}

	kb := service.NewKnowledgeBase()
	annotator := service.NewAnnotator(cfg.Presentation.DisplayWidth, cfg.Presentation.DisplayHeight, cfg.Presentation.JPEGQuality)
	pipeline := service.NewPipeline(preprocessor, kb, annotator, &cfg.Pipeline, &cfg.Upload)
	sessions := service.NewMemorySessionStore()

	// 设置Gin模式
	gin.SetMode(cfg.Server.Mode)

	// 创建路由
	r, err := handler.NewRouter(handler.Dependencies{
		Config:        cfg,
		Pipeline:      pipeline,
		Classifier:    classifier,
		KnowledgeBase: kb,
		Sessions:      sessions,
		Authenticator: service.NewStaticAuthenticator(cfg.Auth.Username, cfg.Auth.Password),
	})
	if err != nil {
		utils.Logger.Fatal("failed to create router", zap.Error(err))
	}

	// 健康检查和版本信息
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":     "ok",
			"version":    Version,
			"classifier": classifier.Name(),
		})
	})

	r.GET("/version", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"version":    Version,
			"build_time": BuildTime,
			"build_id":   BuildID,
			"git_commit": GitCommit,
			"git_branch": GitBranch,
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 定期清理过期会话
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sweepSessions(sweepCtx, sessions, time.Minute)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	go func() {
		utils.Logger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	utils.Logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Logger.Error("server forced to shutdown", zap.Error(err))
	}

	// 释放模型和 ONNX Runtime 环境
	if modelCache != nil {
		if err := modelCache.Close(); err != nil {
			utils.Logger.Warn("failed to close models", zap.Error(err))
		}
		service.DestroyORTEnvironment()
	}

	utils.Logger.Info("server stopped")
}

func sweepSessions(ctx context.Context, store *service.MemorySessionStore, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := store.Sweep(); n > 0 {
				utils.Logger.Debug("expired sessions removed", zap.Int("count", n))
			}
		}
	}
}
