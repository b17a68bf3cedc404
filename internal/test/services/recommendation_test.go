package services_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"layerminder-backend/internal/embedding"
	"layerminder-backend/internal/services"
)

type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) EmbedImageURL(ctx context.Context, imageURL string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	vec, ok := f.vectors[imageURL]
	if !ok {
		return nil, assert.AnError
	}
	return vec, nil
}

// writeTestIndex builds a 3-vector reference pool on disk and returns the
// artifact paths.
func writeTestIndex(t *testing.T) (string, string) {
	t.Helper()

	index := embedding.NewIndex(2)
	require.NoError(t, index.Add([]float32{1, 0}, embedding.Reference{ID: "ref_a", URL: "https://cdn.test/reference/ref_a.jpg"}))
	require.NoError(t, index.Add([]float32{0, 1}, embedding.Reference{ID: "ref_b", URL: "https://cdn.test/reference/ref_b.jpg"}))
	require.NoError(t, index.Add([]float32{1, 1}, embedding.Reference{ID: "ref_c", URL: "https://cdn.test/reference/ref_c.jpg"}))

	dir := t.TempDir()
	indexPath := filepath.Join(dir, "image_embeddings.index")
	metadataPath := filepath.Join(dir, "image_embeddings_metadata.csv")
	require.NoError(t, index.Write(indexPath, metadataPath))

	return indexPath, metadataPath
}

func TestRecommendationEngine_NearestReference(t *testing.T) {
	indexPath, metadataPath := writeTestIndex(t)
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"https://cdn.test/generated/g1.jpeg": {0.9, 0.1},
		"https://cdn.test/generated/g2.jpeg": {1.1, -0.1},
	}}

	engine := services.NewRecommendationEngine(embedder, indexPath, metadataPath)
	ref, err := engine.Recommend(context.Background(), []string{
		"https://cdn.test/generated/g1.jpeg",
		"https://cdn.test/generated/g2.jpeg",
	}, 1)

	require.NoError(t, err)
	require.NotNil(t, ref)
	// Mean of the two inputs is (1.0, 0.0): ref_a exactly.
	assert.Equal(t, "ref_a", ref.ID)
}

func TestRecommendationEngine_EmptyInput(t *testing.T) {
	indexPath, metadataPath := writeTestIndex(t)
	engine := services.NewRecommendationEngine(&fakeEmbedder{}, indexPath, metadataPath)

	ref, err := engine.Recommend(context.Background(), nil, 1)

	assert.NoError(t, err)
	assert.Nil(t, ref)
}

func TestRecommendationEngine_ExcludesSelfMatch(t *testing.T) {
	indexPath, metadataPath := writeTestIndex(t)
	// The input is ref_a itself, served from the reference pool.
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"https://cdn.test/reference/ref_a.jpg": {1, 0},
	}}

	engine := services.NewRecommendationEngine(embedder, indexPath, metadataPath)
	ref, err := engine.Recommend(context.Background(), []string{"https://cdn.test/reference/ref_a.jpg"}, 2)

	require.NoError(t, err)
	require.NotNil(t, ref)
	// The exact match is the input itself; the runner-up wins.
	assert.NotEqual(t, "ref_a", ref.ID)
}

func TestRecommendationEngine_AllCandidatesExcluded(t *testing.T) {
	indexPath, metadataPath := writeTestIndex(t)
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"https://cdn.test/reference/ref_a.jpg": {1, 0},
	}}

	engine := services.NewRecommendationEngine(embedder, indexPath, metadataPath)
	ref, err := engine.Recommend(context.Background(), []string{"https://cdn.test/reference/ref_a.jpg"}, 1)

	// The single candidate is the input; no match is not an error.
	assert.NoError(t, err)
	assert.Nil(t, ref)
}

func TestRecommendationEngine_ExcludesByIdentifier(t *testing.T) {
	indexPath, metadataPath := writeTestIndex(t)
	// Same object, different host and a query string: the basename still
	// identifies it as ref_a.
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"https://mirror.test/pool/ref_a.jpg?token=abc": {1, 0},
	}}

	engine := services.NewRecommendationEngine(embedder, indexPath, metadataPath)
	ref, err := engine.Recommend(context.Background(), []string{"https://mirror.test/pool/ref_a.jpg?token=abc"}, 2)

	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.NotEqual(t, "ref_a", ref.ID)
}

func TestRecommendationEngine_EmbedderFailure(t *testing.T) {
	indexPath, metadataPath := writeTestIndex(t)
	embedder := &fakeEmbedder{err: assert.AnError}

	engine := services.NewRecommendationEngine(embedder, indexPath, metadataPath)
	_, err := engine.Recommend(context.Background(), []string{"https://cdn.test/generated/g1.jpeg"}, 1)

	assert.ErrorIs(t, err, services.ErrEmbeddingFetchFailed)
}

func TestRecommendationEngine_DimensionMismatch(t *testing.T) {
	indexPath, metadataPath := writeTestIndex(t)
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"https://cdn.test/generated/g1.jpeg": {1, 0, 0},
	}}

	engine := services.NewRecommendationEngine(embedder, indexPath, metadataPath)
	_, err := engine.Recommend(context.Background(), []string{"https://cdn.test/generated/g1.jpeg"}, 1)

	assert.ErrorIs(t, err, services.ErrEmbeddingFetchFailed)
}

func TestRecommendationEngine_MissingIndex(t *testing.T) {
	dir := t.TempDir()
	engine := services.NewRecommendationEngine(&fakeEmbedder{},
		filepath.Join(dir, "missing.index"), filepath.Join(dir, "missing.csv"))

	_, err := engine.Recommend(context.Background(), []string{"https://cdn.test/generated/g1.jpeg"}, 1)

	assert.ErrorIs(t, err, services.ErrIndexQueryFailed)
}
