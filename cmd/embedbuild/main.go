// Command embedbuild builds the reference embedding index consumed by the
// recommendation engine. It lists the reference folder of the storage
// bucket, embeds every image through the CLIP service, and writes the
// binary index artifact plus its metadata CSV. Run it offline whenever the
// reference pool changes; the server only ever reads the artifact.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"

	"layerminder-backend/internal/clip"
	"layerminder-backend/internal/config"
	"layerminder-backend/internal/embedding"
	"layerminder-backend/internal/supabase"
)

const referenceFolder = "reference/"

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".bmp": true, ".webp": true,
}

func main() {
	folder := flag.String("folder", referenceFolder, "storage folder holding the reference pool")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	storageClient, err := supabase.NewStorageClient(cfg.SupabaseURL, cfg.SupabaseServiceRoleKey, cfg.SupabaseStorageBucket)
	if err != nil {
		log.Fatalf("Failed to initialize storage client: %v", err)
	}
	clipClient := clip.NewClient(cfg.ClipAPIBaseURL, cfg.ClipAPIKey)

	names, err := storageClient.ListFolder(*folder)
	if err != nil {
		log.Fatalf("Failed to list reference folder: %v", err)
	}

	var files []string
	for _, name := range names {
		if imageExtensions[strings.ToLower(path.Ext(name))] {
			files = append(files, name)
		}
	}
	if len(files) == 0 {
		log.Fatalf("No reference images found under %s", *folder)
	}

	ctx := context.Background()
	var index *embedding.Index

	for i, name := range files {
		fileKey := *folder + name
		url := storageClient.GetPublicURL(fileKey)
		refID := strings.TrimSuffix(name, path.Ext(name))

		var vec []float32
		err := clipClient.RetryWithBackoff(func() error {
			var embedErr error
			vec, embedErr = clipClient.EmbedImageURL(ctx, url)
			return embedErr
		}, 3)
		if err != nil {
			log.Printf("[embedbuild] Skipping %s: %v", name, err)
			continue
		}

		if index == nil {
			index = embedding.NewIndex(len(vec))
		}
		if err := index.Add(vec, embedding.Reference{ID: refID, URL: url}); err != nil {
			log.Fatalf("Failed to add %s to index: %v", name, err)
		}

		log.Printf("[embedbuild] %d%% Image embedded: %s (%d/%d)", (i+1)*100/len(files), refID, i+1, len(files))
	}

	if index == nil || index.Len() == 0 {
		log.Fatal("No embeddings produced")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.EmbeddingIndexPath), 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}
	if err := index.Write(cfg.EmbeddingIndexPath, cfg.EmbeddingMetadataPath); err != nil {
		log.Fatalf("Failed to write index: %v", err)
	}

	log.Printf("[embedbuild] %d embeddings saved to %s", index.Len(), cfg.EmbeddingIndexPath)
}
