package classifier

import (
	"context"
	"fmt"
)

// preprocess tokenizes texts into a Batch whose rows are exactly maxLength
// wide. labels may be nil; when given they must align with texts and fall
// inside [0, NumLabels).
func (c *Classifier) preprocess(ctx context.Context, texts []string, labels []int) (Batch, error) {
	if labels != nil {
		if len(labels) != len(texts) {
			return Batch{}, fmt.Errorf("%w: %d texts but %d labels", ErrShapeMismatch, len(texts), len(labels))
		}
		numLabels := c.model.NumLabels()
		for i, l := range labels {
			if l < 0 || l >= numLabels {
				return Batch{}, fmt.Errorf("%w: label %d at index %d, model has %d labels", ErrLabelOutOfRange, l, i, numLabels)
			}
		}
	}

	n := len(texts)
	batch := Batch{
		InputIDs:      make([][]int32, n),
		AttentionMask: make([][]int32, n),
		Labels:        labels,
	}
	if n == 0 {
		return batch, nil
	}

	enc, err := c.tokenizer.Encode(ctx, texts, c.maxLength)
	if err != nil {
		return Batch{}, fmt.Errorf("tokenize: %w", err)
	}
	if len(enc.InputIDs) != n || len(enc.AttentionMask) != n {
		return Batch{}, fmt.Errorf("%w: tokenizer returned %d ids and %d masks for %d texts",
			ErrShapeMismatch, len(enc.InputIDs), len(enc.AttentionMask), n)
	}

	for i := 0; i < n; i++ {
		batch.InputIDs[i] = fitRow(enc.InputIDs[i], c.maxLength)
		batch.AttentionMask[i] = fitRow(enc.AttentionMask[i], c.maxLength)
	}
	return batch, nil
}

// fitRow pads with zeros or truncates row to exactly n entries.
func fitRow(row []int32, n int) []int32 {
	out := make([]int32, n)
	copy(out, row)
	return out
}
