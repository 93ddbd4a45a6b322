package classifier

import (
	"context"
	"strings"
)

// wordTokenizer emits [CLS] word-ids [SEP] without padding or truncation, so
// tests can see the classifier fix up row widths.
type wordTokenizer struct {
	calls     int
	maxLength int
	err       error
	dropRow   bool
}

func (t *wordTokenizer) Encode(_ context.Context, texts []string, maxLength int) (Encoding, error) {
	t.calls++
	t.maxLength = maxLength
	if t.err != nil {
		return Encoding{}, t.err
	}
	var enc Encoding
	for _, text := range texts {
		ids := []int32{101}
		for _, w := range strings.Fields(text) {
			ids = append(ids, int32(1000+len(w)))
		}
		ids = append(ids, 102)
		mask := make([]int32, len(ids))
		for i := range mask {
			mask[i] = 1
		}
		enc.InputIDs = append(enc.InputIDs, ids)
		enc.AttentionMask = append(enc.AttentionMask, mask)
	}
	if t.dropRow && len(enc.InputIDs) > 0 {
		enc.InputIDs = enc.InputIDs[1:]
		enc.AttentionMask = enc.AttentionMask[1:]
	}
	return enc, nil
}

// scriptedModel replays per-epoch metrics and computes logits with a callback.
type scriptedModel struct {
	numLabels int
	epochs    []map[string]float64
	logits    func(batch Batch) [][]float64
	trainErr  error

	compiled  []TrainingConfig
	summaries int
	requests  []EpochRequest
}

func (m *scriptedModel) NumLabels() int { return m.numLabels }

func (m *scriptedModel) Summary(_ context.Context) (string, error) {
	m.summaries++
	return "Model: bert\nTotal params: 109,483,778", nil
}

func (m *scriptedModel) Compile(_ context.Context, cfg TrainingConfig) error {
	m.compiled = append(m.compiled, cfg)
	return nil
}

func (m *scriptedModel) TrainEpoch(_ context.Context, req EpochRequest) (map[string]float64, error) {
	if m.trainErr != nil && len(m.requests) > 0 {
		return nil, m.trainErr
	}
	m.requests = append(m.requests, req)
	i := req.Epoch
	if i >= len(m.epochs) {
		i = len(m.epochs) - 1
	}
	return m.epochs[i], nil
}

func (m *scriptedModel) Predict(_ context.Context, batch Batch, _ int) ([][]float64, error) {
	if m.logits != nil {
		return m.logits(batch), nil
	}
	// Favour the label equal to the number of real tokens modulo numLabels.
	out := make([][]float64, batch.Len())
	for i, mask := range batch.AttentionMask {
		n := 0
		for _, v := range mask {
			n += int(v)
		}
		row := make([]float64, m.numLabels)
		row[n%m.numLabels] = 1
		out[i] = row
	}
	return out, nil
}

func flatEpochs(n int) []map[string]float64 {
	out := make([]map[string]float64, n)
	for i := range out {
		out[i] = map[string]float64{"loss": 1 / float64(i+1), "sparse_categorical_accuracy": float64(i) / float64(n)}
	}
	return out
}
