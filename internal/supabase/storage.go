package supabase

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
	storage "github.com/supabase-community/storage-go"
)

type StorageClient struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

func NewStorageClient(supabaseURL, serviceRoleKey, bucket string) (*StorageClient, error) {
	// Ensure URL doesn't have trailing slash
	baseURL := supabaseURL
	if len(baseURL) > 0 && baseURL[len(baseURL)-1] == '/' {
		baseURL = baseURL[:len(baseURL)-1]
	}
	client := storage.NewClient(baseURL+"/storage/v1", serviceRoleKey, nil)

	return &StorageClient{
		client:  client,
		bucket:  bucket,
		baseURL: baseURL,
	}, nil
}

// UploadGenerated stores one synthesized image under
// generated/{user_id}/{filename} and returns the durable public URL.
func (s *StorageClient) UploadGenerated(userID uuid.UUID, filename string, data []byte) (string, error) {
	fileKey := fmt.Sprintf("generated/%s/%s", userID.String(), filename)

	contentType := "image/jpeg"
	upsert := true
	_, err := s.client.UploadFile(s.bucket, fileKey, bytes.NewReader(data), storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}

	return s.GetPublicURL(fileKey), nil
}

func (s *StorageClient) GetPublicURL(fileKey string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s",
		s.baseURL, s.bucket, fileKey)
}

// DownloadObject reads an input image the user previously uploaded via the
// presigned-upload flow.
func (s *StorageClient) DownloadObject(fileKey string) ([]byte, error) {
	data, err := s.client.DownloadFile(s.bucket, fileKey)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}

	return data, nil
}

// CreateSignedUploadURL issues a short-lived URL a client can PUT an input
// image to, under user-uploads/{user_id}/.
func (s *StorageClient) CreateSignedUploadURL(userID uuid.UUID, fileExt string) (string, string, error) {
	fileKey := fmt.Sprintf("user-uploads/%s/%s.%s", userID.String(), uuid.New().String(), fileExt)

	resp, err := s.client.CreateSignedUploadUrl(s.bucket, fileKey)
	if err != nil {
		return "", "", fmt.Errorf("failed to create signed upload url: %w", err)
	}

	return resp.Url, fileKey, nil
}

// ListFolder lists object names under a prefix. Used by the offline embedding
// builder to enumerate the reference pool.
func (s *StorageClient) ListFolder(prefix string) ([]string, error) {
	files, err := s.client.ListFiles(s.bucket, prefix, storage.FileSearchOptions{
		Limit: 1000,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	names := make([]string, 0, len(files))
	for _, file := range files {
		names = append(names, file.Name)
	}
	return names, nil
}
