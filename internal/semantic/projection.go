package semantic

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// projection is a bias-free dense layer stored as a safetensors file with a
// single row-major F32 tensor named "linear.weight" of shape [out, in].
type projection struct {
	weights []float32
	inDim   int
	outDim  int
}

func loadProjection(path string) (*projection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("projection: %w", err)
	}
	if len(data) < 8 {
		return nil, fmt.Errorf("projection: %s truncated", path)
	}

	// safetensors layout: LE uint64 header length, JSON header, tensor data.
	headerLen := binary.LittleEndian.Uint64(data[:8])
	if headerLen > uint64(len(data))-8 {
		return nil, fmt.Errorf("projection: header length %d overruns file", headerLen)
	}
	var header map[string]json.RawMessage
	if err := json.Unmarshal(data[8:8+headerLen], &header); err != nil {
		return nil, fmt.Errorf("projection: parse header: %w", err)
	}
	entry, ok := header["linear.weight"]
	if !ok {
		return nil, fmt.Errorf("projection: tensor linear.weight not found")
	}
	var meta struct {
		Dtype   string `json:"dtype"`
		Shape   []int  `json:"shape"`
		Offsets [2]int `json:"data_offsets"`
	}
	if err := json.Unmarshal(entry, &meta); err != nil {
		return nil, fmt.Errorf("projection: parse tensor metadata: %w", err)
	}
	if meta.Dtype != "F32" {
		return nil, fmt.Errorf("projection: want dtype F32, got %s", meta.Dtype)
	}
	if len(meta.Shape) != 2 || meta.Shape[0] <= 0 || meta.Shape[1] <= 0 {
		return nil, fmt.Errorf("projection: want 2D shape, got %v", meta.Shape)
	}

	outDim, inDim := meta.Shape[0], meta.Shape[1]
	start := int(8+headerLen) + meta.Offsets[0]
	end := int(8+headerLen) + meta.Offsets[1]
	if end-start != outDim*inDim*4 {
		return nil, fmt.Errorf("projection: data size %d does not match shape %v", end-start, meta.Shape)
	}
	if start < 8 || end > len(data) {
		return nil, fmt.Errorf("projection: data range [%d:%d] outside file", start, end)
	}

	weights := make([]float32, outDim*inDim)
	for i := range weights {
		weights[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[start+i*4:]))
	}
	return &projection{weights: weights, inDim: inDim, outDim: outDim}, nil
}

// apply multiplies the weight matrix by vec.
func (p *projection) apply(vec []float32) []float32 {
	out := make([]float32, p.outDim)
	w := p.weights
	for i := range out {
		var sum float32
		for j, x := range vec {
			sum += w[j] * x
		}
		out[i] = sum
		w = w[p.inDim:]
	}
	return out
}
