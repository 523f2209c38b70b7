package model

// BatchResult 一次上传的全部结果，按上传顺序排列
type BatchResult struct {
	Threshold float64       `json:"threshold"`
	Backend   string        `json:"backend"`
	Results   []ImageResult `json:"results"`
}

// PredictResponse 预测响应
type PredictResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Data    *BatchResult `json:"data,omitempty"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// Settings 会话级设置
type Settings struct {
	Threshold float64 `json:"threshold"`
	ModelPath string  `json:"model_path,omitempty"`
}

// SettingsResponse 设置响应
type SettingsResponse struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	Data    *Settings `json:"data,omitempty"`
}

// DiseaseInfo 带标签的病害说明
type DiseaseInfo struct {
	Label string `json:"label"`
	DiseaseRecord
}

// DiseaseResponse 知识库查询响应
type DiseaseResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Data    []DiseaseInfo `json:"data"`
}
