package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/TIANLI0/CaneScan/middleware"
	"github.com/TIANLI0/CaneScan/service"
	"github.com/TIANLI0/CaneScan/utils"
)

type AuthHandler struct {
	authenticator service.Authenticator
}

func NewAuthHandler(authenticator service.Authenticator) *AuthHandler {
	return &AuthHandler{authenticator: authenticator}
}

// Login 校验账号，成功进入预测页，失败停留在登录页并显示错误
func (h *AuthHandler) Login(c *gin.Context) {
	session := middleware.CurrentSession(c)
	username := c.PostForm("username")
	password := c.PostForm("password")

	ok, err := h.authenticator.Authenticate(c.Request.Context(), username, password)
	if err != nil {
		utils.Logger.Error("authentication failed", zap.Error(err))
		ok = false
	}

	if ok {
		session.Login(username)
		utils.Logger.Info("user logged in", zap.String("username", username))
	} else {
		session.FailLogin()
		utils.Logger.Info("login rejected", zap.String("username", username))
	}

	c.Redirect(http.StatusSeeOther, "/")
}

// Logout 清除登录状态，回到登录页
func (h *AuthHandler) Logout(c *gin.Context) {
	session := middleware.CurrentSession(c)
	session.Logout()
	c.Redirect(http.StatusSeeOther, "/")
}
