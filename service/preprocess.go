package service

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/TIANLI0/CaneScan/model"
)

// Preprocessor 把上传图片转换为模型输入张量
//
// 归一化固定为除以 255，与 EfficientNetB0 导出时的训练预处理一致，运行时不做推断。
type Preprocessor struct{}

func NewPreprocessor() *Preprocessor {
	return &Preprocessor{}
}

// Decode 解码 JPEG/PNG，不修改原始字节；已附带解码结果时直接返回
func (p *Preprocessor) Decode(img *model.UploadedImage) (image.Image, error) {
	if img != nil && img.Decoded != nil {
		return img.Decoded, nil
	}
	if img == nil || len(img.Data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", model.ErrInvalidImage)
	}

	decoded, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", model.ErrInvalidImage, img.Filename, err)
	}

	if decoded.Bounds().Empty() {
		return nil, fmt.Errorf("%w: %s has no pixels", model.ErrInvalidImage, img.Filename)
	}

	return decoded, nil
}

// Preprocess 解码、双线性缩放并归一化，输出形状 (1, height, width, 3)
func (p *Preprocessor) Preprocess(img *model.UploadedImage, width, height int) (*model.Batch, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: invalid target size %dx%d", model.ErrInvalidImage, width, height)
	}

	decoded, err := p.Decode(img)
	if err != nil {
		return nil, err
	}

	resized, err := resizeBilinear(decoded, width, height)
	if err != nil {
		return nil, fmt.Errorf("%w: resize: %v", model.ErrInvalidImage, err)
	}

	return toBatch(resized, width, height), nil
}

// toBatch 按 NHWC 排列像素，通道值除以 255
func toBatch(img image.Image, width, height int) *model.Batch {
	bounds := img.Bounds()
	data := make([]float32, height*width*3)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()

			idx := (y*width + x) * 3
			data[idx] = float32(r>>8) / 255.0
			data[idx+1] = float32(g>>8) / 255.0
			data[idx+2] = float32(b>>8) / 255.0
		}
	}

	return &model.Batch{
		Shape: [4]int64{1, int64(height), int64(width), 3},
		Data:  data,
	}
}
