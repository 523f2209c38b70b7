package model

import "time"

// Page 会话当前页面
type Page string

const (
	PageLogin      Page = "login"
	PagePrediction Page = "prediction"
)

// Session 请求级会话对象，只由登录/登出处理器修改页面状态
type Session struct {
	ID            string
	Page          Page
	Authenticated bool
	Username      string
	LoginError    bool
	Threshold     float64
	ModelPath     string
	ExpiresAt     time.Time
}

// NewSession 创建处于登录页的新会话
func NewSession(id string, threshold float64, expiresAt time.Time) *Session {
	return &Session{
		ID:        id,
		Page:      PageLogin,
		Threshold: threshold,
		ExpiresAt: expiresAt,
	}
}

// Login 登录成功后切换到预测页
func (s *Session) Login(username string) {
	s.Page = PagePrediction
	s.Authenticated = true
	s.Username = username
	s.LoginError = false
}

// FailLogin 记录登录失败，停留在登录页
func (s *Session) FailLogin() {
	s.Page = PageLogin
	s.Authenticated = false
	s.LoginError = true
}

// Logout 回到登录页并清除用户名
func (s *Session) Logout() {
	s.Page = PageLogin
	s.Authenticated = false
	s.Username = ""
	s.LoginError = false
}

// Clone 返回副本，存储层不暴露内部指针
func (s *Session) Clone() *Session {
	c := *s
	return &c
}
