package openai_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"layerminder-backend/internal/openai"
)

func TestClient_Synthesize(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/images/edits", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		assert.NoError(t, r.ParseMultipartForm(32<<20))
		assert.Equal(t, "gpt-image-1", r.FormValue("model"))
		assert.Contains(t, r.FormValue("prompt"), "scandinavian")
		assert.Len(t, r.MultipartForm.File["image[]"], 2)

		calls.Add(1)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]string{
				{"b64_json": base64.StdEncoding.EncodeToString([]byte("jpeg-bytes"))},
			},
		})
	}))
	defer server.Close()

	client := openai.NewClient(server.URL, "test-key")
	inputs := [][]byte{[]byte("input-a"), []byte("input-b")}
	outputs, err := client.Synthesize(context.Background(), inputs, "scandinavian", 4)

	require.NoError(t, err)
	require.Len(t, outputs, 4)
	for _, output := range outputs {
		assert.Equal(t, []byte("jpeg-bytes"), output)
	}
	// One edit call per variant.
	assert.Equal(t, int32(4), calls.Load())
}

func TestClient_Synthesize_NoInputs(t *testing.T) {
	client := openai.NewClient("http://localhost:1", "test-key")

	_, err := client.Synthesize(context.Background(), nil, "", 4)
	assert.Error(t, err)
}

func TestClient_Synthesize_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := openai.NewClient(server.URL, "test-key")
	_, err := client.Synthesize(context.Background(), [][]byte{[]byte("input")}, "", 4)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

func TestClient_Describe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var payload struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content []struct {
					Type     string `json:"type"`
					ImageURL *struct {
						URL string `json:"url"`
					} `json:"image_url"`
				} `json:"content"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "gpt-4o", payload.Model)
		if assert.Len(t, payload.Messages, 2) {
			// Text part plus one image_url part per URL.
			userContent := payload.Messages[1].Content
			if assert.Len(t, userContent, 3) {
				assert.Equal(t, "image_url", userContent[1].Type)
				assert.Equal(t, "https://cdn.test/g1.jpeg", userContent[1].ImageURL.URL)
			}
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "  A story.\n\nKeywords: oak, bench  "}},
			},
		})
	}))
	defer server.Close()

	client := openai.NewClient(server.URL, "test-key")
	response, err := client.Describe(context.Background(), []string{
		"https://cdn.test/g1.jpeg",
		"https://cdn.test/g2.jpeg",
	})

	require.NoError(t, err)
	assert.Equal(t, "A story.\n\nKeywords: oak, bench", response)
}

func TestClient_Describe_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"choices": []interface{}{}})
	}))
	defer server.Close()

	client := openai.NewClient(server.URL, "test-key")
	_, err := client.Describe(context.Background(), []string{"https://cdn.test/g1.jpeg"})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no completion")
}
