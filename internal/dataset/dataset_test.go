package dataset

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead_Labelled(t *testing.T) {
	ds, err := Read(strings.NewReader("text,label\n\"great, loved it\",1\nawful,0\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"great, loved it", "awful"}, ds.Texts)
	assert.Equal(t, []int{1, 0}, ds.Labels)
	assert.True(t, ds.Labelled())
	assert.Equal(t, 2, ds.Len())
}

func TestRead_ColumnOrderAndBOM(t *testing.T) {
	ds, err := Read(strings.NewReader("\ufeffLabel,id,Text\n2,a,hello\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"hello"}, ds.Texts)
	assert.Equal(t, []int{2}, ds.Labels)
}

func TestRead_TextOnly(t *testing.T) {
	ds, err := Read(strings.NewReader("text\nfirst\nsecond\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second"}, ds.Texts)
	assert.Nil(t, ds.Labels)
	assert.False(t, ds.Labelled())
}

func TestRead_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"empty file", "", "no rows"},
		{"header only", "text,label\n", "no rows"},
		{"no text column", "body,label\nx,1\n", "no \"text\" column"},
		{"bad label", "text,label\nx,positive\n", "line 2"},
		{"missing label", "text,label\nx\n", "missing label"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.csv")
	require.NoError(t, os.WriteFile(path, []byte("text,label\nok,0\n"), 0644))

	ds, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, ds.Len())

	_, err = Load(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestWritePredictions(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePredictions(&buf, []string{"a, b", "c"}, []int{1, 0}))
	assert.Equal(t, "text,label\n\"a, b\",1\nc,0\n", buf.String())

	ds, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, ds.Labels)

	assert.Error(t, WritePredictions(&buf, []string{"a"}, nil))
}
