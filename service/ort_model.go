package service

import (
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"github.com/TIANLI0/CaneScan/model"
	"github.com/TIANLI0/CaneScan/utils"
)

var ortEnv struct {
	mu          sync.Mutex
	initialized bool
	libPath     string
}

// SetORTLibraryPath 指定 onnxruntime 动态库，需在第一次加载模型前调用
func SetORTLibraryPath(path string) {
	ortEnv.mu.Lock()
	defer ortEnv.mu.Unlock()
	ortEnv.libPath = path
}

func initORTEnvironment() error {
	ortEnv.mu.Lock()
	defer ortEnv.mu.Unlock()

	if ortEnv.initialized {
		return nil
	}
	if ortEnv.libPath != "" {
		ort.SetSharedLibraryPath(ortEnv.libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}
	ortEnv.initialized = true
	return nil
}

// DestroyORTEnvironment 进程退出前释放 onnxruntime 环境
func DestroyORTEnvironment() {
	ortEnv.mu.Lock()
	defer ortEnv.mu.Unlock()

	if !ortEnv.initialized {
		return
	}
	if err := ort.DestroyEnvironment(); err != nil {
		utils.Logger.Warn("failed to destroy ONNX environment", zap.Error(err))
	}
	ortEnv.initialized = false
}

// ortModel 输入输出张量为共享缓冲区，Run 需串行
type ortModel struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

// LoadORTModel 是 ModelCache 的默认加载器
func LoadORTModel(path string) (InferenceModel, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrModelLoad, err)
	}

	if err := initORTEnvironment(); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrModelLoad, err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read model io info: %v", model.ErrModelLoad, err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("%w: model has no inputs or outputs", model.ErrModelLoad)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](fixedShape(inputs[0].Dimensions))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create input tensor: %v", model.ErrModelLoad, err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](fixedShape(outputs[0].Dimensions))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("%w: failed to create output tensor: %v", model.ErrModelLoad, err)
	}

	session, err := ort.NewAdvancedSession(path,
		[]string{inputs[0].Name}, []string{outputs[0].Name},
		[]ort.Value{inputTensor}, []ort.Value{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("%w: failed to create ONNX session: %v", model.ErrModelLoad, err)
	}

	utils.Logger.Info("model loaded",
		zap.String("path", path),
		zap.String("input", inputs[0].Name),
		zap.Int64s("input_shape", inputTensor.GetShape()),
		zap.Int64s("output_shape", outputTensor.GetShape()))

	return &ortModel{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

func (m *ortModel) Run(batch *model.Batch) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return nil, fmt.Errorf("model session is closed")
	}

	in := m.inputTensor.GetData()
	if len(in) != len(batch.Data) {
		return nil, fmt.Errorf("input tensor expects %d values, got %d (shape %v)", len(in), len(batch.Data), batch.Shape)
	}
	copy(in, batch.Data)

	if err := m.session.Run(); err != nil {
		return nil, err
	}

	out := m.outputTensor.GetData()
	probs := make([]float32, len(out))
	copy(probs, out)
	return probs, nil
}

func (m *ortModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		m.session.Destroy()
		m.session = nil
	}
	if m.inputTensor != nil {
		m.inputTensor.Destroy()
		m.inputTensor = nil
	}
	if m.outputTensor != nil {
		m.outputTensor.Destroy()
		m.outputTensor = nil
	}
	return nil
}

// fixedShape 把动态维度（如 batch 的 -1）固定为 1
func fixedShape(dims ort.Shape) ort.Shape {
	shape := make(ort.Shape, len(dims))
	for i, d := range dims {
		if d <= 0 {
			d = 1
		}
		shape[i] = d
	}
	return shape
}
