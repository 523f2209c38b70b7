package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/TIANLI0/CaneScan/model"
)

type fakeModel struct {
	mu     sync.Mutex
	probs  []float32
	runs   atomic.Int32
	closed atomic.Bool
	shape  [4]int64
}

func (m *fakeModel) Run(batch *model.Batch) ([]float32, error) {
	m.runs.Add(1)
	m.mu.Lock()
	m.shape = batch.Shape
	m.mu.Unlock()
	return m.probs, nil
}

func (m *fakeModel) Close() error {
	m.closed.Store(true)
	return nil
}

type countingLoader struct {
	loads  atomic.Int32
	models map[string]*fakeModel
	delay  time.Duration
}

func (l *countingLoader) load(path string) (InferenceModel, error) {
	l.loads.Add(1)
	time.Sleep(l.delay)
	m, ok := l.models[path]
	if !ok {
		return nil, errors.New("no such file")
	}
	return m, nil
}

func TestLocalClassifier_ArgMax(t *testing.T) {
	fm := &fakeModel{probs: []float32{0.05, 0.1, 0.05, 0.7, 0.1}}
	loader := &countingLoader{models: map[string]*fakeModel{"model.onnx": fm}}
	c := NewLocalClassifier(NewModelCache(loader.load, 0), NewPreprocessor(), "model.onnx", model.Labels, 224, 224)

	pred, err := c.Predict(context.Background(), jpegUpload(t, "leaf.jpg", 400, 300))
	require.NoError(t, err)
	require.Equal(t, model.LabelRust, pred.Label)
	require.InDelta(t, 0.7, pred.Confidence, 1e-6)
	require.Len(t, pred.Scores, 5)
	require.Equal(t, "local:model.onnx", pred.Source)
	require.Equal(t, [4]int64{1, 224, 224, 3}, fm.shape)
}

func TestLocalClassifier_LoadsOnceUnderConcurrency(t *testing.T) {
	fm := &fakeModel{probs: []float32{0.9, 0.1}}
	loader := &countingLoader{models: map[string]*fakeModel{"model.onnx": fm}, delay: 20 * time.Millisecond}
	c := NewLocalClassifier(NewModelCache(loader.load, 0), NewPreprocessor(), "model.onnx", nil, 32, 32)
	img := jpegUpload(t, "leaf.jpg", 64, 64)

	errs := make(chan error, 8)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Predict(context.Background(), img)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	require.Equal(t, int32(1), loader.loads.Load())
	require.Equal(t, int32(8), fm.runs.Load())
}

func TestLocalClassifier_LoadFailureIsReportedAndNotCached(t *testing.T) {
	loader := &countingLoader{models: map[string]*fakeModel{}}
	cache := NewModelCache(loader.load, 0)
	c := NewLocalClassifier(cache, NewPreprocessor(), "missing.onnx", nil, 32, 32)
	img := jpegUpload(t, "leaf.jpg", 64, 64)

	_, err := c.Predict(context.Background(), img)
	require.True(t, errors.Is(err, model.ErrModelLoad))

	_, err = c.Predict(context.Background(), img)
	require.True(t, errors.Is(err, model.ErrModelLoad))
	require.Equal(t, int32(2), loader.loads.Load())
	require.Equal(t, 0, cache.Loaded())
}

func TestLocalClassifier_ExtraOutputBecomesUnknownLabel(t *testing.T) {
	fm := &fakeModel{probs: []float32{0.01, 0.01, 0.01, 0.01, 0.01, 0.95}}
	loader := &countingLoader{models: map[string]*fakeModel{"six.onnx": fm}}
	c := NewLocalClassifier(NewModelCache(loader.load, 0), NewPreprocessor(), "six.onnx", model.Labels, 32, 32)

	pred, err := c.Predict(context.Background(), jpegUpload(t, "leaf.jpg", 64, 64))
	require.NoError(t, err)
	require.Equal(t, "class_5", pred.Label)
}

func TestLocalClassifier_InvalidImageSkipsModelLoad(t *testing.T) {
	loader := &countingLoader{models: map[string]*fakeModel{}}
	c := NewLocalClassifier(NewModelCache(loader.load, 0), NewPreprocessor(), "model.onnx", nil, 32, 32)

	_, err := c.Predict(context.Background(), &model.UploadedImage{Filename: "x.jpg", Data: []byte("garbage")})
	require.True(t, errors.Is(err, model.ErrInvalidImage))
	require.Equal(t, int32(0), loader.loads.Load())
}

func TestLocalClassifier_ForModelSharesCache(t *testing.T) {
	a := &fakeModel{probs: []float32{1, 0}}
	b := &fakeModel{probs: []float32{0, 1}}
	loader := &countingLoader{models: map[string]*fakeModel{"a.onnx": a, "b.onnx": b}}
	cache := NewModelCache(loader.load, 0)
	base := NewLocalClassifier(cache, NewPreprocessor(), "a.onnx", nil, 16, 16)
	img := pngUpload(t, "leaf.png", 16, 16)

	pred, err := base.Predict(context.Background(), img)
	require.NoError(t, err)
	require.Equal(t, model.LabelHealthy, pred.Label)

	other := base.ForModel("b.onnx")
	pred, err = other.Predict(context.Background(), img)
	require.NoError(t, err)
	require.Equal(t, model.LabelMosaic, pred.Label)

	_, err = base.Predict(context.Background(), img)
	require.NoError(t, err)
	require.Equal(t, 2, cache.Loaded())
	require.Equal(t, int32(2), loader.loads.Load())

	require.NoError(t, cache.Close())
	require.True(t, a.closed.Load())
	require.True(t, b.closed.Load())
	require.Equal(t, 0, cache.Loaded())
}

func TestModelCache_EmptyPath(t *testing.T) {
	_, err := NewModelCache(func(string) (InferenceModel, error) { return &fakeModel{}, nil }, 0).Get("")
	require.True(t, errors.Is(err, model.ErrModelLoad))
}

func TestLocalClassifier_RejectsScoresOutsideProbabilityRange(t *testing.T) {
	tests := []struct {
		name  string
		probs []float32
	}{
		{"logits", []float32{4.2, -1, 0.3, 0.1, 0.2}},
		{"negative", []float32{0.2, -0.1, 0.3, 0.1, 0.2}},
		{"nan first", []float32{float32(math.NaN()), 0.1, 0.7, 0.1, 0.1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fm := &fakeModel{probs: tt.probs}
			loader := &countingLoader{models: map[string]*fakeModel{"logits.onnx": fm}}
			c := NewLocalClassifier(NewModelCache(loader.load, 0), NewPreprocessor(), "logits.onnx", model.Labels, 32, 32)

			pred, err := c.Predict(context.Background(), jpegUpload(t, "leaf.jpg", 64, 64))
			require.Nil(t, pred)
			require.True(t, errors.Is(err, model.ErrModelLoad))
		})
	}
}
