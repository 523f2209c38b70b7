package service

import (
	"context"
	"crypto/subtle"
)

// Authenticator 可替换的登录校验
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (bool, error)
}

// StaticAuthenticator 校验配置中的单个账号
type StaticAuthenticator struct {
	username string
	password string
}

func NewStaticAuthenticator(username, password string) *StaticAuthenticator {
	return &StaticAuthenticator{username: username, password: password}
}

func (a *StaticAuthenticator) Authenticate(ctx context.Context, username, password string) (bool, error) {
	if a.username == "" {
		return false, nil
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) == 1
	return userOK && passOK, nil
}

var _ Authenticator = (*StaticAuthenticator)(nil)
