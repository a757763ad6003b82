package semantic

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// The ONNX runtime environment is process-wide; the first session wins the
// library path.
var ortInit struct {
	once sync.Once
	err  error
}

func initRuntime(libPath string) error {
	ortInit.once.Do(func() {
		ort.SetSharedLibraryPath(libPath)
		ortInit.err = ort.InitializeEnvironment()
	})
	return ortInit.err
}

// session wraps one BERT-style ONNX model: three int64 inputs of shape
// [batch, seq], one float32 output of shape [batch, seq, hidden].
type session struct {
	sess      *ort.DynamicAdvancedSession
	inputs    []string
	output    string
	hiddenDim int64
}

var bertInputs = []string{"input_ids", "attention_mask", "token_type_ids"}

func newSession(modelPath, libPath string) (*session, error) {
	if err := initRuntime(libPath); err != nil {
		return nil, fmt.Errorf("onnx: initialize runtime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: read model info: %w", err)
	}
	have := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		have[in.Name] = true
	}
	for _, name := range bertInputs {
		if !have[name] {
			return nil, fmt.Errorf("onnx: model missing input %q", name)
		}
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("onnx: model has no outputs")
	}
	dims := outputs[0].Dimensions
	if len(dims) != 3 {
		return nil, fmt.Errorf("onnx: expected [batch, seq, hidden] output, got %v", dims)
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: session options: %w", err)
	}
	defer opts.Destroy()
	opts.SetIntraOpNumThreads(4)
	opts.SetInterOpNumThreads(1)

	sess, err := ort.NewDynamicAdvancedSession(modelPath, bertInputs, []string{outputs[0].Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("onnx: create session: %w", err)
	}
	return &session{
		sess:      sess,
		inputs:    bertInputs,
		output:    outputs[0].Name,
		hiddenDim: dims[2],
	}, nil
}

// infer runs one forward pass and returns the hidden states as a flat
// [count*width*hidden] slice.
func (s *session) infer(batch encoded) ([]float32, error) {
	shape := ort.NewShape(batch.count, batch.width)

	ids, err := ort.NewTensor(shape, batch.ids)
	if err != nil {
		return nil, fmt.Errorf("onnx: input_ids tensor: %w", err)
	}
	defer ids.Destroy()

	mask, err := ort.NewTensor(shape, batch.mask)
	if err != nil {
		return nil, fmt.Errorf("onnx: attention_mask tensor: %w", err)
	}
	defer mask.Destroy()

	types, err := ort.NewTensor(shape, batch.types)
	if err != nil {
		return nil, fmt.Errorf("onnx: token_type_ids tensor: %w", err)
	}
	defer types.Destroy()

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(batch.count, batch.width, s.hiddenDim))
	if err != nil {
		return nil, fmt.Errorf("onnx: output tensor: %w", err)
	}
	defer out.Destroy()

	if err := s.sess.Run([]ort.Value{ids, mask, types}, []ort.Value{out}); err != nil {
		return nil, fmt.Errorf("onnx: inference: %w", err)
	}

	// The tensor owns its buffer; copy before Destroy.
	src := out.GetData()
	hidden := make([]float32, len(src))
	copy(hidden, src)
	return hidden, nil
}

func (s *session) close() error {
	return s.sess.Destroy()
}
