package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBM25IndexWithBackendDefaultsToSQLite(t *testing.T) {
	idx, err := NewBM25IndexWithBackend("", DefaultBM25Config(), "")
	require.NoError(t, err)
	defer idx.Close()

	_, ok := idx.(*SQLiteBM25Index)
	assert.True(t, ok)
}

func TestNewBM25IndexWithBackendBleve(t *testing.T) {
	idx, err := NewBM25IndexWithBackend("", DefaultBM25Config(), "bleve")
	require.NoError(t, err)
	defer idx.Close()

	_, ok := idx.(*BleveBM25Index)
	assert.True(t, ok)
}

func TestNewBM25IndexWithBackendUnknownErrors(t *testing.T) {
	_, err := NewBM25IndexWithBackend("", DefaultBM25Config(), "postgres")
	assert.Error(t, err)
}

func TestDetectBM25BackendFromDisk(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "bm25")

	assert.Equal(t, BM25Backend(""), DetectBM25Backend(base))

	idx, err := NewBM25IndexWithBackend(base, DefaultBM25Config(), "sqlite")
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	assert.Equal(t, BM25BackendSQLite, DetectBM25Backend(base))
}

func TestGetBM25IndexPath(t *testing.T) {
	assert.Equal(t, filepath.Join("data", "bm25.db"), GetBM25IndexPath("data", "sqlite"))
	assert.Equal(t, filepath.Join("data", "bm25.bleve"), GetBM25IndexPath("data", "bleve"))
}
