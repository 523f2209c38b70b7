package model

// 叶片类别的封闭集合，本地模型默认类别顺序与知识库共用此枚举
const (
	LabelHealthy = "Healthy"
	LabelMosaic  = "Mosaic"
	LabelRedRot  = "RedRot"
	LabelRust    = "Rust"
	LabelYellow  = "Yellow"
)

// Labels 按模型输出索引排列
var Labels = []string{LabelHealthy, LabelMosaic, LabelRedRot, LabelRust, LabelYellow}

// IsKnownLabel 判断标签是否属于封闭集合
func IsKnownLabel(label string) bool {
	for _, l := range Labels {
		if l == label {
			return true
		}
	}
	return false
}
