package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"

	"github.com/MeKo-Tech/rcnneval/internal/blob"
	"github.com/yalue/onnxruntime_go"
)

// SessionConfig configures the ONNX Runtime backend.
type SessionConfig struct {
	ModelPath   string
	LibraryPath string // optional explicit path to the runtime library
	NumThreads  int    // intra-op threads, 0 for runtime default
}

// Session scores batches with an exported Fast R-CNN style ONNX model. Input
// names follow the network's blob names (data plus rois or boxes_grid);
// every recognized output the model declares is fetched.
type Session struct {
	session *onnxruntime_go.DynamicAdvancedSession
	inputs  []string
	outputs []string
	mu      sync.Mutex
}

// NewSession loads the model and prepares a session.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("model path cannot be empty")
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}
	if err := initEnvironment(cfg.LibraryPath); err != nil {
		return nil, err
	}

	inInfo, outInfo, err := onnxruntime_go.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get model input/output info: %w", err)
	}
	inputs := make([]string, 0, len(inInfo))
	for _, info := range inInfo {
		switch info.Name {
		case InputData, InputRegions, InputGrid:
			inputs = append(inputs, info.Name)
		default:
			return nil, fmt.Errorf("unsupported model input %q", info.Name)
		}
	}
	if !slices.Contains(inputs, InputData) {
		return nil, fmt.Errorf("model has no %q input", InputData)
	}
	known := KnownOutputs()
	outputs := make([]string, 0, len(outInfo))
	for _, info := range outInfo {
		if slices.Contains(known, info.Name) {
			outputs = append(outputs, info.Name)
		}
	}
	if len(outputs) == 0 {
		return nil, errors.New("model declares no recognized outputs")
	}

	opts, err := onnxruntime_go.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer func() {
		if err := opts.Destroy(); err != nil {
			slog.Warn("Failed to destroy session options", "error", err)
		}
	}()
	if cfg.NumThreads > 0 {
		if err := opts.SetIntraOpNumThreads(cfg.NumThreads); err != nil {
			return nil, fmt.Errorf("failed to set thread count: %w", err)
		}
	}

	session, err := onnxruntime_go.NewDynamicAdvancedSession(cfg.ModelPath, inputs, outputs, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	slog.Debug("Scoring session ready", "model_path", cfg.ModelPath, "inputs", inputs, "outputs", outputs)
	return &Session{session: session, inputs: inputs, outputs: outputs}, nil
}

// Close releases the session.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	return err
}

// Score runs one forward pass.
func (s *Session) Score(ctx context.Context, in Input) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return Output{}, errors.New("scoring session is closed")
	}

	values := make([]onnxruntime_go.Value, 0, len(s.inputs))
	defer func() {
		for _, v := range values {
			if err := v.Destroy(); err != nil {
				slog.Warn("Failed to destroy input tensor", "error", err)
			}
		}
	}()
	for _, name := range s.inputs {
		var t blob.Tensor
		switch name {
		case InputData:
			if err := blob.VerifyImageTensor(in.Data); err != nil {
				return Output{}, fmt.Errorf("invalid %s tensor: %w", name, err)
			}
			t = in.Data
		case InputRegions:
			if in.Regions == nil {
				return Output{}, fmt.Errorf("model expects %q but none were provided", name)
			}
			t = blob.FromMatrix(in.Regions)
		case InputGrid:
			if in.Grid == nil {
				return Output{}, fmt.Errorf("model expects %q but none were provided", name)
			}
			t = blob.FromMatrix(in.Grid)
		}
		v, err := onnxruntime_go.NewTensor(onnxruntime_go.NewShape(t.Shape...), t.Data)
		if err != nil {
			return Output{}, fmt.Errorf("failed to create %s tensor: %w", name, err)
		}
		values = append(values, v)
	}

	results := make([]onnxruntime_go.Value, len(s.outputs))
	if err := s.session.Run(values, results); err != nil {
		return Output{}, fmt.Errorf("inference failed: %w", err)
	}
	defer func() {
		for _, v := range results {
			if v == nil {
				continue
			}
			if err := v.Destroy(); err != nil {
				slog.Warn("Failed to destroy output tensor", "error", err)
			}
		}
	}()

	var out Output
	for i, name := range s.outputs {
		ft, ok := results[i].(*onnxruntime_go.Tensor[float32])
		if !ok {
			return Output{}, fmt.Errorf("output %s: expected float32 tensor, got %T", name, results[i])
		}
		data := append([]float32(nil), ft.GetData()...)
		m, err := blob.ToMatrix(blob.Tensor{Data: data, Shape: ft.GetShape()})
		if err != nil {
			return Output{}, fmt.Errorf("output %s: %w", name, err)
		}
		if err := out.Set(name, m); err != nil {
			return Output{}, err
		}
	}
	return out, nil
}
