package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/TIANLI0/CaneScan/config"
	"github.com/TIANLI0/CaneScan/model"
	"github.com/TIANLI0/CaneScan/service"
	"github.com/TIANLI0/CaneScan/utils"
)

const sessionKey = "session"

// Session 为每个请求加载或创建会话，请求结束后写回存储
func Session(store service.SessionStore, cfg *config.SessionConfig, defaultThreshold float64) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var session *model.Session
		if id, err := c.Cookie(cfg.CookieName); err == nil && id != "" {
			s, err := store.Get(ctx, id)
			if err != nil {
				utils.Logger.Warn("failed to load session", zap.Error(err))
			}
			session = s
		}

		stored := session != nil
		var fresh model.Session
		if !stored {
			session = model.NewSession(utils.GenerateID(), defaultThreshold, time.Now().Add(cfg.TTL))
			fresh = *session
		}

		c.Set(sessionKey, session)
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(cfg.CookieName, session.ID, int(cfg.TTL.Seconds()), "/", "", cfg.Secure, true)

		c.Next()

		// 新会话没有状态变化时不保存
		if !stored && *session == fresh {
			return
		}
		if err := store.Save(ctx, session); err != nil {
			utils.Logger.Error("failed to save session",
				zap.String("session", session.ID),
				zap.Error(err))
		}
	}
}

// CurrentSession 返回当前请求的会话
func CurrentSession(c *gin.Context) *model.Session {
	if v, ok := c.Get(sessionKey); ok {
		if s, ok := v.(*model.Session); ok {
			return s
		}
	}
	return nil
}

// RequireAuth 未登录时，页面请求跳转登录页，API 请求返回 401
func RequireAuth(api bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := CurrentSession(c)
		if session != nil && session.Authenticated {
			c.Next()
			return
		}

		if api {
			c.AbortWithStatusJSON(http.StatusUnauthorized, model.ErrorResponse{
				Success: false,
				Message: "Login required.",
			})
			return
		}

		c.Redirect(http.StatusSeeOther, "/")
		c.Abort()
	}
}
