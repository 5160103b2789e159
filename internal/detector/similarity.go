package detector

import (
	"context"
	"math"
)

// DefaultMatchThreshold: embeddings with cosine similarity at or above it are
// the same person
const DefaultMatchThreshold = 0.8

// CosineSimilarity calculates the cosine similarity between two embedding vectors.
// Returns a value between -1.0 (opposite) and 1.0 (identical).
func CosineSimilarity(embedding1, embedding2 []float64) float64 {
	if len(embedding1) != len(embedding2) || len(embedding1) == 0 {
		return 0.0
	}

	var dotProduct, norm1, norm2 float64
	for i := range embedding1 {
		dotProduct += embedding1[i] * embedding2[i]
		norm1 += embedding1[i] * embedding1[i]
		norm2 += embedding2[i] * embedding2[i]
	}

	if norm1 == 0 || norm2 == 0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(norm1) * math.Sqrt(norm2))
}

// NormalizeEmbedding normalizes an embedding vector to unit length.
func NormalizeEmbedding(embedding []float64) []float64 {
	if len(embedding) == 0 {
		return embedding
	}

	var norm float64
	for _, v := range embedding {
		norm += v * v
	}

	if norm == 0 {
		return embedding
	}

	norm = math.Sqrt(norm)
	normalized := make([]float64, len(embedding))
	for i, v := range embedding {
		normalized[i] = v / norm
	}

	return normalized
}

// CosineComparator matches vector identities by cosine similarity
type CosineComparator struct {
	Threshold float64
}

func NewCosineComparator(threshold float64) *CosineComparator {
	if threshold <= 0 {
		threshold = DefaultMatchThreshold
	}
	return &CosineComparator{Threshold: threshold}
}

func (c *CosineComparator) IdentitiesMatch(_ context.Context, baseline, candidate Identity) (bool, error) {
	if len(baseline.Vector) == 0 || len(candidate.Vector) == 0 {
		return false, ErrNoEmbedding
	}
	return CosineSimilarity(baseline.Vector, candidate.Vector) >= c.Threshold, nil
}

var _ IdentityComparator = (*CosineComparator)(nil)
