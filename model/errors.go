package model

import "errors"

var (
	// ErrInvalidImage 图片无法解码或缩放
	ErrInvalidImage = errors.New("invalid image")
	// ErrModelLoad 模型路径错误或模型文件不兼容
	ErrModelLoad = errors.New("model load failure")
	// ErrInferenceUnavailable 远程推理失败、超时或返回格式错误
	ErrInferenceUnavailable = errors.New("inference unavailable")
	// ErrNoPredictions 远程推理返回空的候选类别
	ErrNoPredictions = errors.New("no predictions")
	// ErrLabelNotFound 知识库中没有该标签，只用于日志，不中断渲染
	ErrLabelNotFound = errors.New("label not found")
)
