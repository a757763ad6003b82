// Package semantic provides similar-error search: error signatures are
// embedded with a local ONNX model and ranked by cosine similarity. The
// whole package is optional at runtime; when the model files are absent the
// caller disables the feature and the pipeline runs without it.
package semantic

import (
	"math"
	"sort"
)

// Entry is one embedded error signature held by the index.
type Entry struct {
	ErrorID   string
	Service   string
	Signature string
	Vector    []float32
}

// Match is one search result, ranked by similarity.
type Match struct {
	ErrorID   string  `json:"error_id"`
	Service   string  `json:"service"`
	Signature string  `json:"signature"`
	Score     float64 `json:"score"`
}

// Index ranks embedded signatures by cosine similarity. Build it once from
// the store's vector cache; Search does not mutate it.
type Index struct {
	entries []Entry
}

// NewIndex creates an index over the given entries.
func NewIndex(entries []Entry) *Index {
	return &Index{entries: entries}
}

// Len returns the number of indexed signatures.
func (ix *Index) Len() int { return len(ix.entries) }

// Search returns up to k entries most similar to vec, best first. The entry
// whose error id equals exclude is skipped so an error never matches itself.
// Ties rank by error id to keep results stable.
func (ix *Index) Search(vec []float32, k int, exclude string) []Match {
	if k <= 0 || len(ix.entries) == 0 {
		return nil
	}
	matches := make([]Match, 0, len(ix.entries))
	for _, e := range ix.entries {
		if e.ErrorID == exclude {
			continue
		}
		matches = append(matches, Match{
			ErrorID:   e.ErrorID,
			Service:   e.Service,
			Signature: e.Signature,
			Score:     cosine(vec, e.Vector),
		})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ErrorID < matches[j].ErrorID
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
