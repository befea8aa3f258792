package model

import (
	"errors"
	"io/fs"
	"math"
	"path/filepath"
	"testing"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/ironsheep/image-analyzer/internal/imaging"
)

func TestDistribution_ProbabilitiesUnchanged(t *testing.T) {
	in := []float32{0.1, 0.7, 0.2}
	got := Distribution(in)
	for i := range in {
		if math.Abs(got[i]-float64(in[i])) > 1e-9 {
			t.Errorf("p[%d]: got %f, want %f", i, got[i], in[i])
		}
	}
}

func TestDistribution_Softmax(t *testing.T) {
	got := Distribution([]float32{2, 1, 0})

	sum := 0.0
	for _, p := range got {
		if p < 0 || p > 1 {
			t.Fatalf("probability %f out of range", p)
		}
		sum += p
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("sum: got %f, want 1", sum)
	}

	// softmax(2,1,0)[0] = e^2 / (e^2 + e + 1)
	want := math.Exp(2) / (math.Exp(2) + math.Exp(1) + 1)
	if math.Abs(got[0]-want) > 1e-9 {
		t.Errorf("p[0]: got %f, want %f", got[0], want)
	}
}

func TestDistribution_LargeLogits(t *testing.T) {
	got := Distribution([]float32{1000, 999})
	if math.IsNaN(got[0]) || math.IsInf(got[0], 0) {
		t.Fatalf("softmax overflowed: %v", got)
	}
	if got[0] <= got[1] {
		t.Errorf("ordering lost: %v", got)
	}
}

func TestDistribution_Empty(t *testing.T) {
	if got := Distribution(nil); len(got) != 0 {
		t.Errorf("got %v, want empty", got)
	}
}

func TestArgmax(t *testing.T) {
	tests := []struct {
		name  string
		probs []float64
		idx   int
		conf  float64
	}{
		{"single", []float64{1}, 0, 1},
		{"middle", []float64{0.1, 0.8, 0.1}, 1, 0.8},
		{"last", []float64{0.2, 0.3, 0.5}, 2, 0.5},
		{"tie goes low", []float64{0.5, 0.5}, 0, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, conf, err := Argmax(tt.probs)
			if err != nil {
				t.Fatalf("Argmax failed: %v", err)
			}
			if idx != tt.idx || conf != tt.conf {
				t.Errorf("got (%d, %f), want (%d, %f)", idx, conf, tt.idx, tt.conf)
			}
		})
	}
}

func TestArgmax_Empty(t *testing.T) {
	if _, _, err := Argmax(nil); !errors.Is(err, ErrNoScores) {
		t.Errorf("expected ErrNoScores, got %v", err)
	}
}

func TestLoaderFunc(t *testing.T) {
	called := ""
	l := LoaderFunc(func(path string) (Classifier, error) {
		called = path
		return nil, nil
	})
	if _, err := l.Load("m.onnx"); err != nil {
		t.Fatal(err)
	}
	if called != "m.onnx" {
		t.Errorf("LoaderFunc not invoked with path, got %q", called)
	}
}

func TestONNXLoader_MissingFile(t *testing.T) {
	_, err := ONNXLoader{}.Load(filepath.Join(t.TempDir(), "missing.onnx"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected fs.ErrNotExist, got %v", err)
	}
}

func TestCheckShape(t *testing.T) {
	tests := []struct {
		name  string
		shape ort.Shape
		ok    bool
	}{
		{"static match", ort.NewShape(1, 64, 64, 1), true},
		{"dynamic", ort.NewShape(-1, -1, -1, 1), true},
		{"height mismatch", ort.NewShape(1, 32, 64, 1), false},
		{"width mismatch", ort.NewShape(1, 64, 28, 1), false},
		{"unknown rank", ort.NewShape(1, 4096), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkShape(tt.shape, 64, 64)
			if (err == nil) != tt.ok {
				t.Errorf("checkShape(%v): got err=%v, want ok=%v", tt.shape, err, tt.ok)
			}
		})
	}
}

func TestONNXClassifier_Closed(t *testing.T) {
	c := &ONNXClassifier{}
	if err := c.Close(); err != nil {
		t.Fatalf("Close on an unopened classifier failed: %v", err)
	}
	if _, err := c.Predict(imaging.NewPlane(64, 64)); err == nil {
		t.Error("Predict on a closed classifier should fail")
	}
}
