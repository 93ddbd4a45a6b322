package llm

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcl-research/rcl/internal/model"
)

func TestSplitLines(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"a\nb", []string{"a", "b"}},
		{"", []string{""}},
		{"single", []string{"single"}},
		{"trailing\n", []string{"trailing", ""}},
		{"keep\r\ncarriage", []string{"keep\r", "carriage"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SplitLines(tt.in), "SplitLines(%q)", tt.in)
	}
}

func TestNewQueryFunc(t *testing.T) {
	srv := makeTestServer(t, http.StatusOK, completionBody("x\ny"))

	query, err := NewQueryFunc(srv.URL, "key", WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	lines, err := query(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, lines)

	// A QueryFunc satisfies model.Querier.
	var q model.Querier = query
	lines, err = q.Query(context.Background(), "again")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, lines)
}

func TestNewQueryFunc_InvalidArguments(t *testing.T) {
	_, err := NewQueryFunc("", "key")
	assert.Error(t, err)
}

func TestNewQueryFunc_IndependentEndpoints(t *testing.T) {
	a := makeTestServer(t, http.StatusOK, completionBody("from a"))
	b := makeTestServer(t, http.StatusOK, completionBody("from b"))

	qa, err := NewQueryFunc(a.URL, "key-a", WithHTTPClient(a.Client()))
	require.NoError(t, err)
	qb, err := NewQueryFunc(b.URL, "key-b", WithHTTPClient(b.Client()))
	require.NoError(t, err)

	// Building qb must not redirect qa.
	got, err := qa(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, []string{"from a"}, got)

	got, err = qb(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, []string{"from b"}, got)
}
