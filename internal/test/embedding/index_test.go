package embedding_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"layerminder-backend/internal/embedding"
)

func buildIndex(t *testing.T) *embedding.Index {
	t.Helper()

	index := embedding.NewIndex(3)
	require.NoError(t, index.Add([]float32{1, 0, 0}, embedding.Reference{ID: "a", URL: "https://cdn.test/a.jpg"}))
	require.NoError(t, index.Add([]float32{0, 1, 0}, embedding.Reference{ID: "b", URL: "https://cdn.test/b.jpg"}))
	require.NoError(t, index.Add([]float32{0, 0, 1}, embedding.Reference{ID: "c", URL: "https://cdn.test/c.jpg"}))
	require.NoError(t, index.Add([]float32{0.9, 0.1, 0}, embedding.Reference{ID: "d", URL: "https://cdn.test/d.jpg"}))
	return index
}

func TestIndex_Search_NearestFirst(t *testing.T) {
	index := buildIndex(t)

	matches, err := index.Search([]float32{1, 0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.Equal(t, "a", matches[0].Reference.ID)
	assert.Equal(t, "d", matches[1].Reference.ID)
	assert.LessOrEqual(t, matches[0].Distance, matches[1].Distance)
	assert.LessOrEqual(t, matches[1].Distance, matches[2].Distance)
}

func TestIndex_Search_KLargerThanPool(t *testing.T) {
	index := buildIndex(t)

	matches, err := index.Search([]float32{0, 1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, matches, index.Len())
	assert.Equal(t, "b", matches[0].Reference.ID)
}

func TestIndex_Search_DimensionMismatch(t *testing.T) {
	index := buildIndex(t)

	_, err := index.Search([]float32{1, 0}, 1)
	assert.Error(t, err)
}

func TestIndex_Search_Empty(t *testing.T) {
	index := embedding.NewIndex(3)

	matches, err := index.Search([]float32{1, 0, 0}, 1)
	assert.NoError(t, err)
	assert.Nil(t, matches)
}

func TestIndex_Add_DimensionMismatch(t *testing.T) {
	index := embedding.NewIndex(3)

	err := index.Add([]float32{1, 0}, embedding.Reference{ID: "a"})
	assert.Error(t, err)
}

func TestIndex_WriteLoadRoundtrip(t *testing.T) {
	index := buildIndex(t)

	dir := t.TempDir()
	indexPath := filepath.Join(dir, "test.index")
	metadataPath := filepath.Join(dir, "test.csv")
	require.NoError(t, index.Write(indexPath, metadataPath))

	loaded, err := embedding.Load(indexPath, metadataPath)
	require.NoError(t, err)

	assert.Equal(t, index.Dim(), loaded.Dim())
	assert.Equal(t, index.Len(), loaded.Len())

	// The loaded index must answer queries identically.
	matches, err := loaded.Search([]float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a", matches[0].Reference.ID)
	assert.Equal(t, "https://cdn.test/a.jpg", matches[0].Reference.URL)
	assert.Equal(t, "d", matches[1].Reference.ID)
}

func TestLoad_RejectsForeignFile(t *testing.T) {
	index := buildIndex(t)

	dir := t.TempDir()
	indexPath := filepath.Join(dir, "test.index")
	metadataPath := filepath.Join(dir, "test.csv")
	require.NoError(t, index.Write(indexPath, metadataPath))

	// The CSV is not a vector artifact.
	_, err := embedding.Load(metadataPath, metadataPath)
	assert.Error(t, err)
}
