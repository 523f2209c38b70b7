package utils

import (
	"github.com/google/uuid"
)

// GenerateID 生成随机会话/请求ID
func GenerateID() string {
	return uuid.NewString()
}
