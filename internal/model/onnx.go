package model

import (
	"fmt"
	"log"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/ironsheep/image-analyzer/internal/imaging"
)

var (
	envOnce sync.Once
	envErr  error
)

// initEnvironment loads the ONNX Runtime shared library once per process.
// The first caller's library path wins.
func initEnvironment(libraryPath string) error {
	envOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		envErr = ort.InitializeEnvironment()
	})
	return envErr
}

// ONNXLoader loads classifiers with ONNX Runtime.
type ONNXLoader struct {
	// LibraryPath is the onnxruntime shared library. Empty uses the
	// platform default name.
	LibraryPath string

	// Threads caps intra-op parallelism. Values below 1 leave the runtime default.
	Threads int
}

// Load opens the model, reading its first input and output names from the file.
func (l ONNXLoader) Load(path string) (Classifier, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open model: %w", err)
	}

	if err := initEnvironment(l.LibraryPath); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model info: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("model %s has no inputs or outputs", path)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	if l.Threads > 0 {
		_ = options.SetIntraOpNumThreads(l.Threads)
		_ = options.SetInterOpNumThreads(1)
	}

	session, err := ort.NewDynamicAdvancedSession(
		path,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		options,
	)
	if err != nil {
		options.Destroy()
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	log.Printf("Loaded model %s (input %s %v, output %s %v)",
		path, inputs[0].Name, inputs[0].Dimensions, outputs[0].Name, outputs[0].Dimensions)

	return &ONNXClassifier{
		session:    session,
		options:    options,
		inputShape: inputs[0].Dimensions,
	}, nil
}

// ONNXClassifier is a Classifier backed by an ONNX Runtime session.
type ONNXClassifier struct {
	mu         sync.Mutex
	session    *ort.DynamicAdvancedSession
	options    *ort.SessionOptions
	inputShape ort.Shape
}

// Predict feeds input as a [1, H, W, 1] float32 tensor and returns the first
// output flattened.
func (c *ONNXClassifier) Predict(input *imaging.Plane) ([]float32, error) {
	if err := checkShape(c.inputShape, input.Height, input.Width); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil, fmt.Errorf("classifier is closed")
	}

	data := make([]float32, len(input.Pix))
	copy(data, input.Pix)

	tensor, err := ort.NewTensor(ort.NewShape(1, int64(input.Height), int64(input.Width), 1), data)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer tensor.Destroy()

	outputs := []ort.Value{nil}
	if err := c.session.Run([]ort.Value{tensor}, outputs); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	if outputs[0] == nil {
		return nil, ErrNoScores
	}
	defer outputs[0].Destroy()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unsupported output type %T", outputs[0])
	}

	scores := make([]float32, len(out.GetData()))
	copy(scores, out.GetData())
	return scores, nil
}

// Close destroys the session.
func (c *ONNXClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	err := c.session.Destroy()
	c.options.Destroy()
	c.session = nil
	return err
}

// checkShape rejects inputs that contradict a model's static NHWC input
// dimensions. Dynamic dimensions (reported as -1) accept any size.
func checkShape(shape ort.Shape, height, width int) error {
	if len(shape) != 4 {
		return nil
	}
	if (shape[1] > 0 && shape[1] != int64(height)) || (shape[2] > 0 && shape[2] != int64(width)) {
		return fmt.Errorf("model expects %dx%d input, got %dx%d", shape[2], shape[1], width, height)
	}
	return nil
}
