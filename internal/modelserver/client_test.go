package modelserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcl-research/rcl/internal/classifier"
	"github.com/rcl-research/rcl/internal/model"
	"github.com/rcl-research/rcl/internal/retry"
)

// fakeServer emulates the model server: tokens are word lengths, and the
// logits favour label (real token count % num labels).
type fakeServer struct {
	mu        sync.Mutex
	numLabels int
	compiled  *compileRequest
	epochs    []trainEpochRequest
}

func (f *fakeServer) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, HealthResponse{Status: "ok", ModelLoaded: true})
	})

	mux.HandleFunc("POST /tokenize", func(w http.ResponseWriter, r *http.Request) {
		var req tokenizeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		var resp tokenizeResponse
		for _, text := range req.Texts {
			ids := make([]int32, req.MaxLength)
			mask := make([]int32, req.MaxLength)
			tokens := append([]string{"[CLS]"}, strings.Fields(text)...)
			tokens = append(tokens, "[SEP]")
			for i := 0; i < len(tokens) && i < req.MaxLength; i++ {
				ids[i] = int32(len(tokens[i]))
				mask[i] = 1
			}
			resp.InputIDs = append(resp.InputIDs, ids)
			resp.AttentionMask = append(resp.AttentionMask, mask)
		}
		writeJSON(t, w, resp)
	})

	mux.HandleFunc("POST /models", func(w http.ResponseWriter, r *http.Request) {
		var req loadRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		f.numLabels = req.NumLabels
		f.mu.Unlock()
		writeJSON(t, w, loadResponse{Handle: "m-1", NumLabels: req.NumLabels})
	})

	mux.HandleFunc("GET /models/m-1/summary", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, summaryResponse{Summary: "bert (TFBertMainLayer) 109482240"})
	})

	mux.HandleFunc("POST /models/m-1/compile", func(w http.ResponseWriter, r *http.Request) {
		var req compileRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		f.compiled = &req
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /models/m-1/train_epoch", func(w http.ResponseWriter, r *http.Request) {
		var req trainEpochRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		f.epochs = append(f.epochs, req)
		f.mu.Unlock()
		metrics := map[string]float64{"loss": 1.0 / float64(req.Epoch+1)}
		if req.Validation != nil {
			metrics["val_loss"] = 1.2 / float64(req.Epoch+1)
		}
		writeJSON(t, w, trainEpochResponse{Metrics: metrics})
	})

	mux.HandleFunc("POST /models/m-1/predict", func(w http.ResponseWriter, r *http.Request) {
		var req predictRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		n := f.numLabels
		f.mu.Unlock()
		var resp predictResponse
		for _, mask := range req.AttentionMask {
			count := 0
			for _, v := range mask {
				count += int(v)
			}
			row := make([]float64, n)
			row[count%n] = 2.5
			resp.Logits = append(resp.Logits, row)
		}
		writeJSON(t, w, resp)
	})

	return mux
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func newFakeClient(t *testing.T) (*Client, *fakeServer) {
	t.Helper()
	fake := &fakeServer{}
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", srv.Client(), retry.Policy{}, nil), fake
}

func TestClient_Health(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		c, _ := newFakeClient(t)
		h, err := c.Health(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "ok", h.Status)
		assert.True(t, h.ModelLoaded)
	})

	t.Run("server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("internal error"))
		}))
		defer server.Close()

		c := NewClient(server.URL, server.Client(), retry.Policy{}, nil)
		_, err := c.Health(context.Background())
		require.Error(t, err)

		var httpErr *model.HTTPError
		require.True(t, errors.As(err, &httpErr))
		assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
		assert.Contains(t, err.Error(), "internal error")
	})

	t.Run("connection error", func(t *testing.T) {
		c := NewClient("http://127.0.0.1:1", &http.Client{Timeout: time.Second}, retry.Policy{}, nil)
		_, err := c.Health(context.Background())
		assert.Error(t, err)
	})
}

func TestClient_RetriesIdempotentCalls(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","model_loaded":true}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, server.Client(), retry.Policy{MaxRetries: 2, BaseDelay: time.Millisecond}, nil)
	h, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_DoesNotRetryTraining(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewClient(server.URL, server.Client(), retry.Policy{MaxRetries: 3, BaseDelay: time.Millisecond}, nil)
	m := &Model{client: c, handle: "m-1", numLabels: 2}
	_, err := m.TrainEpoch(context.Background(), classifier.EpochRequest{})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_LoadModelChecksLabels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"handle":"m-9","num_labels":2}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, server.Client(), retry.Policy{}, nil)
	_, err := c.LoadModel(context.Background(), "bert-base-uncased", 3)
	assert.ErrorContains(t, err, "2 labels")
}

func TestTokenizer_Encode(t *testing.T) {
	c, _ := newFakeClient(t)
	tok := c.Tokenizer("bert-base-uncased")

	enc, err := tok.Encode(context.Background(), []string{"hello world", "hi"}, 8)
	require.NoError(t, err)
	require.Len(t, enc.InputIDs, 2)
	assert.Len(t, enc.InputIDs[0], 8)
	assert.Equal(t, []int32{1, 1, 1, 1, 0, 0, 0, 0}, enc.AttentionMask[0])
}

func TestModel_TrainEpochWire(t *testing.T) {
	c, fake := newFakeClient(t)
	m, err := c.LoadModel(context.Background(), "bert-base-uncased", 2)
	require.NoError(t, err)
	assert.Equal(t, "m-1", m.Handle())
	assert.Equal(t, "bert-base-uncased", m.Name())

	metrics, err := m.TrainEpoch(context.Background(), classifier.EpochRequest{
		Epoch:        1,
		LearningRate: 3e-5,
		BatchSize:    8,
		ClassWeight:  map[int]float64{0: 0.75, 1: 1.5},
		Train: classifier.Batch{
			InputIDs:      [][]int32{{5, 6}},
			AttentionMask: [][]int32{{1, 1}},
			Labels:        []int{1},
		},
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, metrics["loss"], 1e-12)

	require.Len(t, fake.epochs, 1)
	got := fake.epochs[0]
	assert.Equal(t, 8, got.BatchSize)
	assert.Equal(t, map[int]float64{0: 0.75, 1: 1.5}, got.ClassWeight)
	assert.Equal(t, []int{1}, got.Train.Labels)
	assert.Nil(t, got.Validation)
}

func TestRemoteClassifier_EndToEnd(t *testing.T) {
	c, fake := newFakeClient(t)
	ctx := context.Background()

	m, err := c.LoadModel(ctx, "bert-base-uncased", 3)
	require.NoError(t, err)

	clf, err := classifier.New(c.Tokenizer("bert-base-uncased"), m, classifier.WithMaxLength(16), classifier.WithVerbose(true))
	require.NoError(t, err)
	require.NoError(t, clf.Compile(ctx, classifier.DefaultTrainingConfig()))

	require.NotNil(t, fake.compiled)
	assert.Equal(t, "adam", fake.compiled.Optimizer.Name)
	assert.True(t, fake.compiled.Loss.FromLogits)

	x := []string{"great movie", "terrible", "fine I guess", "terrible plot"}
	y := []int{0, 1, 2, 1}
	h, err := clf.Fit(ctx, x, y, classifier.FitOptions{
		Epochs:     3,
		Validation: &classifier.Dataset{Texts: []string{"ok"}, Labels: []int{2}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, h.Epochs())
	assert.Equal(t, []string{"loss", "val_loss"}, h.Metrics())
	require.Len(t, fake.epochs, 3)
	assert.Len(t, fake.epochs[0].Train.InputIDs[0], 16)

	got, err := clf.Predict(ctx, x)
	require.NoError(t, err)
	require.Len(t, got, len(x))
	for _, l := range got {
		assert.GreaterOrEqual(t, l, 0)
		assert.Less(t, l, 3)
	}
	// real tokens: 4, 3, 5, 4 -> mod 3
	assert.Equal(t, []int{1, 0, 2, 1}, got)
}

func TestClient_Attach(t *testing.T) {
	c, _ := newFakeClient(t)

	m, err := c.Attach(context.Background(), "bert-base-uncased", "m-1", 3)
	require.NoError(t, err)
	assert.Equal(t, "m-1", m.Handle())
	assert.Equal(t, 3, m.NumLabels())

	_, err = c.Attach(context.Background(), "bert-base-uncased", "gone", 3)
	var httpErr *model.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)

	_, err = c.Attach(context.Background(), "bert-base-uncased", "", 3)
	assert.Error(t, err)
}
