package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/TIANLI0/CaneScan/config"
	"github.com/TIANLI0/CaneScan/model"
)

// leafImage 生成确定性的渐变图片
func leafImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8((x + y) % 256), B: uint8(y % 256), A: 255})
		}
	}
	return img
}

func jpegUpload(t *testing.T, name string, w, h int) *model.UploadedImage {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, leafImage(w, h), &jpeg.Options{Quality: 90}))
	return &model.UploadedImage{Filename: name, Format: "jpg", ContentType: "image/jpeg", Data: buf.Bytes()}
}

func pngUpload(t *testing.T, name string, w, h int) *model.UploadedImage {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, leafImage(w, h)))
	return &model.UploadedImage{Filename: name, Format: "png", ContentType: "image/png", Data: buf.Bytes()}
}

// stubClassifier 按文件名返回预设结果
type stubClassifier struct {
	mu      sync.Mutex
	name    string
	results map[string]*model.Prediction
	errs    map[string]error
	calls   []string
}

func newStubClassifier() *stubClassifier {
	return &stubClassifier{
		name:    "stub",
		results: make(map[string]*model.Prediction),
		errs:    make(map[string]error),
	}
}

func (s *stubClassifier) Name() string { return s.name }

func (s *stubClassifier) Predict(ctx context.Context, img *model.UploadedImage) (*model.Prediction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, img.Filename)
	if err, ok := s.errs[img.Filename]; ok {
		return nil, err
	}
	if p, ok := s.results[img.Filename]; ok {
		return p, nil
	}
	return &model.Prediction{Label: model.LabelHealthy, Confidence: 0.99, Source: s.name}, nil
}

func newTestPipeline() *Pipeline {
	cfg := config.Default()
	return NewPipeline(
		NewPreprocessor(),
		NewKnowledgeBase(),
		NewAnnotator(cfg.Presentation.DisplayWidth, cfg.Presentation.DisplayHeight, cfg.Presentation.JPEGQuality),
		&cfg.Pipeline,
		&cfg.Upload,
	)
}
