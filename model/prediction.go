package model

import "image"

// UploadedImage 单次请求内的上传图片
type UploadedImage struct {
	Filename    string      `json:"filename"`
	Format      string      `json:"format"` // jpg, jpeg, png
	ContentType string      `json:"content_type,omitempty"`
	Data        []byte      `json:"-"`
	Decoded     image.Image `json:"-"` // 流水线解码后附带，避免重复解码
}

// Batch 预处理后的张量，形状 (1, H, W, 3)，取值 [0,1]
type Batch struct {
	Shape [4]int64
	Data  []float32
}

// Height 返回张量高度
func (b *Batch) Height() int { return int(b.Shape[1]) }

// Width 返回张量宽度
func (b *Batch) Width() int { return int(b.Shape[2]) }

// Prediction 分类结果，创建后不再修改
type Prediction struct {
	Label      string             `json:"label"`
	Confidence float64            `json:"confidence"`
	Scores     map[string]float64 `json:"scores,omitempty"`
	Source     string             `json:"source"`
}

// DiseaseRecord 病害说明
type DiseaseRecord struct {
	Cause       string `json:"cause"`
	Symptoms    string `json:"symptoms"`
	Suggestions string `json:"suggestions"`
}

// IsEmpty 标签不在知识库时返回空记录
func (d DiseaseRecord) IsEmpty() bool {
	return d.Cause == "" && d.Symptoms == "" && d.Suggestions == ""
}

type Status string

const (
	StatusOK               Status = "ok"
	StatusBelowThreshold   Status = "below_threshold"
	StatusNoPredictions    Status = "no_predictions"
	StatusInvalidImage     Status = "invalid_image"
	StatusModelUnavailable Status = "model_unavailable"
	StatusError            Status = "error"
)

// ImageResult 单张图片的展示结果
type ImageResult struct {
	Index      int            `json:"index"`
	Filename   string         `json:"filename"`
	Status     Status         `json:"status"`
	Message    string         `json:"message"`
	Label      string         `json:"label,omitempty"`
	Confidence float64        `json:"confidence"`
	Disease    *DiseaseRecord `json:"disease,omitempty"`
	Annotated  string         `json:"annotated,omitempty"` // data URI
}

// Rendered 是否展示完整结果
func (r ImageResult) Rendered() bool {
	return r.Status == StatusOK
}
