package semantic

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrUnavailable reports that the model directory does not hold the files
// the embedder needs. Callers treat it as "feature off", not a failure.
var ErrUnavailable = errors.New("semantic: model files not present")

const (
	modelFile      = "model.onnx"
	vocabFile      = "vocab.txt"
	projectionFile = "projection.safetensors"
	runtimeLib     = "libonnxruntime.so"
)

// Embedder turns text into a fixed-size vector: WordPiece tokenize, ONNX
// inference, attention-weighted mean pool, dense projection.
type Embedder struct {
	session *session
	tok     *tokenizer
	proj    *projection
}

// Open loads the embedder from dir. Returns ErrUnavailable when any of the
// model files is missing, so the caller can degrade instead of failing.
func Open(dir string) (*Embedder, error) {
	for _, name := range []string{modelFile, vocabFile, projectionFile, runtimeLib} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnavailable, filepath.Join(dir, name))
		}
	}

	sess, err := newSession(filepath.Join(dir, modelFile), filepath.Join(dir, runtimeLib))
	if err != nil {
		return nil, fmt.Errorf("semantic: %w", err)
	}
	tok, err := newTokenizer(filepath.Join(dir, vocabFile))
	if err != nil {
		sess.close()
		return nil, fmt.Errorf("semantic: %w", err)
	}
	proj, err := loadProjection(filepath.Join(dir, projectionFile))
	if err != nil {
		sess.close()
		return nil, fmt.Errorf("semantic: %w", err)
	}
	if int(sess.hiddenDim) != proj.inDim {
		sess.close()
		return nil, fmt.Errorf("semantic: model hidden dim %d != projection input dim %d",
			sess.hiddenDim, proj.inDim)
	}
	return &Embedder{session: sess, tok: tok, proj: proj}, nil
}

// Dim returns the dimensionality of produced vectors.
func (e *Embedder) Dim() int { return e.proj.outDim }

// Embed produces the vector for one text.
func (e *Embedder) Embed(text string) ([]float32, error) {
	vecs, err := e.EmbedBatch([]string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch produces vectors for several texts in one inference call.
func (e *Embedder) EmbedBatch(texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	batch := e.tok.encodeBatch(texts)
	hidden, err := e.session.infer(batch)
	if err != nil {
		return nil, fmt.Errorf("semantic: %w", err)
	}
	pooled := meanPool(hidden, batch.mask, batch.count, batch.width, e.session.hiddenDim)

	dim := e.session.hiddenDim
	out := make([][]float32, batch.count)
	for i := int64(0); i < batch.count; i++ {
		out[i] = e.proj.apply(pooled[i*dim : (i+1)*dim])
	}
	return out, nil
}

// Close releases the inference session.
func (e *Embedder) Close() error {
	if e.session != nil {
		return e.session.close()
	}
	return nil
}

// meanPool averages hidden states over real (unmasked) token positions.
// hidden is flat [count*width*dim], mask flat [count*width]; the result is
// flat [count*dim].
func meanPool(hidden []float32, mask []int64, count, width, dim int64) []float32 {
	out := make([]float32, count*dim)
	for b := int64(0); b < count; b++ {
		var n float32
		for s := int64(0); s < width; s++ {
			if mask[b*width+s] == 1 {
				n++
			}
		}
		if n == 0 {
			continue
		}
		for s := int64(0); s < width; s++ {
			if mask[b*width+s] != 1 {
				continue
			}
			src := (b*width + s) * dim
			dst := b * dim
			for d := int64(0); d < dim; d++ {
				out[dst+d] += hidden[src+d]
			}
		}
		inv := 1 / n
		for d := int64(0); d < dim; d++ {
			out[b*dim+d] *= inv
		}
	}
	return out
}
