package modelserver

// JSON bodies exchanged with the model server.

type tokenizeRequest struct {
	Model     string   `json:"model"`
	Texts     []string `json:"texts"`
	MaxLength int      `json:"max_length"`
}

type tokenizeResponse struct {
	InputIDs      [][]int32 `json:"input_ids"`
	AttentionMask [][]int32 `json:"attention_mask"`
}

type loadRequest struct {
	Model     string `json:"model"`
	NumLabels int    `json:"num_labels"`
}

type loadResponse struct {
	Handle    string `json:"handle"`
	NumLabels int    `json:"num_labels"`
}

type summaryResponse struct {
	Summary string `json:"summary"`
}

type optimizerSpec struct {
	Name         string  `json:"name"`
	LearningRate float64 `json:"learning_rate"`
}

type lossSpec struct {
	Name       string `json:"name"`
	FromLogits bool   `json:"from_logits"`
}

type compileRequest struct {
	Optimizer optimizerSpec `json:"optimizer"`
	Loss      lossSpec      `json:"loss"`
	Metrics   []string      `json:"metrics"`
}

type batchPayload struct {
	InputIDs      [][]int32 `json:"input_ids"`
	AttentionMask [][]int32 `json:"attention_mask"`
	Labels        []int     `json:"labels,omitempty"`
}

// trainEpochRequest carries class weights keyed by label; encoding/json
// writes the int keys as strings ("0", "1", ...).
type trainEpochRequest struct {
	Epoch        int             `json:"epoch"`
	LearningRate float64         `json:"learning_rate"`
	BatchSize    int             `json:"batch_size"`
	ClassWeight  map[int]float64 `json:"class_weight"`
	Train        batchPayload    `json:"train"`
	Validation   *batchPayload   `json:"validation,omitempty"`
}

type trainEpochResponse struct {
	Metrics map[string]float64 `json:"metrics"`
}

type predictRequest struct {
	InputIDs      [][]int32 `json:"input_ids"`
	AttentionMask [][]int32 `json:"attention_mask"`
	BatchSize     int       `json:"batch_size"`
}

type predictResponse struct {
	Logits [][]float64 `json:"logits"`
}
