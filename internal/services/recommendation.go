package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"

	"layerminder-backend/internal/embedding"
)

var (
	// ErrEmbeddingFetchFailed wraps failures of the feature-extraction call.
	ErrEmbeddingFetchFailed = errors.New("embedding fetch failed")
	// ErrIndexQueryFailed wraps failures loading or querying the index.
	ErrIndexQueryFailed = errors.New("index query failed")
)

// Embedder turns an image URL into a unit-norm feature vector.
type Embedder interface {
	EmbedImageURL(ctx context.Context, imageURL string) ([]float32, error)
}

// RecommendationEngine finds the reference image nearest to the mean feature
// vector of a record's generated images. The index artifact is loaded once,
// on first use, and shared read-only across concurrent calls.
type RecommendationEngine struct {
	embedder     Embedder
	indexPath    string
	metadataPath string

	loadOnce sync.Once
	index    *embedding.Index
	loadErr  error
}

func NewRecommendationEngine(embedder Embedder, indexPath, metadataPath string) *RecommendationEngine {
	return &RecommendationEngine{
		embedder:     embedder,
		indexPath:    indexPath,
		metadataPath: metadataPath,
	}
}

// Recommend embeds each URL, averages the vectors and returns the nearest
// reference among topK results that is not one of the inputs themselves.
// It returns nil with no error when there is nothing to recommend: empty
// input, or every candidate excluded as a self-match.
func (e *RecommendationEngine) Recommend(ctx context.Context, imageURLs []string, topK int) (*embedding.Reference, error) {
	if len(imageURLs) == 0 {
		return nil, nil
	}

	e.loadOnce.Do(func() {
		e.index, e.loadErr = embedding.Load(e.indexPath, e.metadataPath)
	})
	if e.loadErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexQueryFailed, e.loadErr)
	}

	mean := make([]float32, e.index.Dim())
	for _, imageURL := range imageURLs {
		vec, err := e.embedder.EmbedImageURL(ctx, imageURL)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrEmbeddingFetchFailed, imageURL, err)
		}
		if len(vec) != len(mean) {
			return nil, fmt.Errorf("%w: embedding dimension %d does not match index dimension %d",
				ErrEmbeddingFetchFailed, len(vec), len(mean))
		}
		for i, v := range vec {
			mean[i] += v
		}
	}
	for i := range mean {
		mean[i] /= float32(len(imageURLs))
	}

	matches, err := e.index.Search(mean, topK)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexQueryFailed, err)
	}

	inputIDs := make(map[string]bool, len(imageURLs))
	for _, imageURL := range imageURLs {
		inputIDs[imageURL] = true
		inputIDs[imageIdentifier(imageURL)] = true
	}

	// An input image can itself be part of the reference pool; skip it.
	for _, match := range matches {
		if inputIDs[match.Reference.URL] || inputIDs[match.Reference.ID] {
			continue
		}
		ref := match.Reference
		return &ref, nil
	}

	return nil, nil
}

// imageIdentifier derives the reference id an image would carry in the pool:
// the file basename without extension, query string stripped. Matches how
// the offline builder names references after their storage objects.
func imageIdentifier(imageURL string) string {
	trimmed := imageURL
	if u, err := url.Parse(imageURL); err == nil {
		trimmed = u.Path
	}
	base := path.Base(trimmed)
	return strings.TrimSuffix(base, path.Ext(base))
}
