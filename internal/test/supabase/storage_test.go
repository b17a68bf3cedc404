package supabase_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"layerminder-backend/internal/supabase"
)

func TestStorageClient_GetPublicURL(t *testing.T) {
	client, err := supabase.NewStorageClient("https://test.supabase.co", "service-key", "layerminder")
	require.NoError(t, err)

	url := client.GetPublicURL("generated/user-1/abc.jpeg")
	assert.Equal(t, "https://test.supabase.co/storage/v1/object/public/layerminder/generated/user-1/abc.jpeg", url)
}

func TestStorageClient_GetPublicURL_TrailingSlash(t *testing.T) {
	client, err := supabase.NewStorageClient("https://test.supabase.co/", "service-key", "layerminder")
	require.NoError(t, err)

	url := client.GetPublicURL("reference/chair_01.jpg")
	assert.Equal(t, "https://test.supabase.co/storage/v1/object/public/layerminder/reference/chair_01.jpg", url)
}
