package config

import (
	"fmt"
	"os"
)

type Config struct {
	// OpenAI (image synthesis + description generation)
	OpenAIAPIKey     string
	OpenAIAPIBaseURL string

	// CLIP inference service (image embeddings for recommendation)
	ClipAPIBaseURL string
	ClipAPIKey     string

	// Embedding index artifact (built offline by cmd/embedbuild)
	EmbeddingIndexPath    string
	EmbeddingMetadataPath string

	// Supabase
	SupabaseURL            string
	SupabaseServiceRoleKey string
	SupabaseJWTSecret      string
	SupabaseStorageBucket  string

	// Database
	DatabaseURL string

	// Server
	Port        string
	Environment string
}

func Load() (*Config, error) {
	cfg := &Config{
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenAIAPIBaseURL: getEnv("OPENAI_API_BASE_URL", "https://api.openai.com/v1"),

		ClipAPIBaseURL: getEnv("CLIP_API_BASE_URL", "http://localhost:8090"),
		ClipAPIKey:     getEnv("CLIP_API_KEY", ""),

		EmbeddingIndexPath:    getEnv("EMBEDDING_INDEX_PATH", "batch/embeddings/image_embeddings.index"),
		EmbeddingMetadataPath: getEnv("EMBEDDING_METADATA_PATH", "batch/embeddings/image_embeddings_metadata.csv"),

		SupabaseURL:            getEnv("SUPABASE_URL", ""),
		SupabaseServiceRoleKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
		SupabaseJWTSecret:      getEnv("SUPABASE_JWT_SECRET", ""),
		SupabaseStorageBucket:  getEnv("SUPABASE_STORAGE_BUCKET", "layerminder"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if c.SupabaseServiceRoleKey == "" {
		return fmt.Errorf("SUPABASE_SERVICE_ROLE_KEY is required")
	}
	if c.SupabaseJWTSecret == "" {
		return fmt.Errorf("SUPABASE_JWT_SECRET is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
