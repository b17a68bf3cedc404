package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	imageModel = "gpt-image-1"
	chatModel  = "gpt-4o"
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type imageEditResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Synthesize produces `count` variants mixing the input images, issuing the
// edit calls concurrently since each call yields a single output.
func (c *Client) Synthesize(ctx context.Context, inputs [][]byte, styleHint string, count int) ([][]byte, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("at least one input image is required")
	}

	prompt := "Combine the input images into one furniture design."
	if styleHint != "" {
		prompt = fmt.Sprintf("Combine the input images into one %s furniture design.", styleHint)
	}

	outputs := make([][]byte, count)
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < count; i++ {
		i := i
		g.Go(func() error {
			data, err := c.editImage(ctx, inputs, prompt)
			if err != nil {
				return err
			}
			outputs[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return outputs, nil
}

func (c *Client) editImage(ctx context.Context, inputs [][]byte, prompt string) ([]byte, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	fields := map[string]string{
		"model":              imageModel,
		"prompt":             prompt,
		"quality":            "low",
		"size":               "1024x1024",
		"output_format":      "jpeg",
		"output_compression": "50",
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("failed to write form field: %w", err)
		}
	}
	for i, input := range inputs {
		part, err := writer.CreateFormFile("image[]", fmt.Sprintf("input_%d.png", i))
		if err != nil {
			return nil, fmt.Errorf("failed to create form file: %w", err)
		}
		if _, err := part.Write(input); err != nil {
			return nil, fmt.Errorf("failed to write image data: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize form: %w", err)
	}

	url := strings.TrimSuffix(c.baseURL, "/") + "/images/edits"
	req, err := http.NewRequestWithContext(ctx, "POST", url, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to generate image: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	var result imageEditResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("no image returned, body: %s", string(respBody))
	}

	data, err := base64.StdEncoding.DecodeString(result.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image payload: %w", err)
	}

	return data, nil
}

const describeSystemPrompt = "You are a specialist in writing elegant and culturally-informed " +
	"product descriptions for a premium furniture brand. Avoid fictional names. " +
	"Focus on real-world design, material inspiration, and symbolic language in a minimalist tone."

const describeUserPrompt = `You are a product description writer for a premium furniture brand that values
cultural inspiration, minimal design, and material storytelling.

Analyze the furniture shown in the image(s) and generate a description with the
following format:

Name: <concise name including object type>
Dimensions: Width: <value> cm, Depth: <value> cm, Height: <value> cm
Material: <realistic material>

Title: "<longer, expressive title capturing cultural or emotional inspiration>"

Story: Two refined paragraphs (one blank line between):
- Paragraph 1: Cultural/environmental inspiration
- Paragraph 2: Symbolic or functional design elements

Then extract exactly 12 single-word English keywords:
- 5+ must come from the story
- Categories: style, form, materials

Return as:

<Full Description Text>

Keywords: word1, word2, ..., word12`

type chatMessage struct {
	Role    string        `json:"role"`
	Content []chatContent `json:"content"`
}

type chatContent struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

// Describe asks the chat model for a product story over the generated image
// URLs. The caller parses the "Keywords:" tail out of the returned text.
func (c *Client) Describe(ctx context.Context, imageURLs []string) (string, error) {
	content := []chatContent{{Type: "text", Text: describeUserPrompt}}
	for _, url := range imageURLs {
		content = append(content, chatContent{
			Type:     "image_url",
			ImageURL: &chatImageURL{URL: url},
		})
	}

	payload := map[string]interface{}{
		"model": chatModel,
		"messages": []chatMessage{
			{Role: "system", Content: []chatContent{{Type: "text", Text: describeSystemPrompt}}},
			{Role: "user", Content: content},
		},
		"temperature": 0.75,
		"max_tokens":  1200,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimSuffix(c.baseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to generate description: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	var result chatCompletionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no completion returned, body: %s", string(respBody))
	}

	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}
