// Package ai is a minimal client for an OpenAI-compatible API: chat
// completions (streaming and non-streaming), image generation, and the turn
// classifier built on top of them. It deliberately speaks raw HTTP so the
// streaming relay can pass the provider's chunk-record framing through to
// browsers untouched.
package ai

import (
	"bardchat-backend/internal/config"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

var (
	// ErrNoContent is returned when a completion reply carries no message
	// content. Generation paths treat this as fatal; there is no safe
	// default for a missing chat or image prompt.
	ErrNoContent = errors.New("no content in model response")

	// ErrNoImage is returned when an image-generation reply carries no URL.
	ErrNoImage = errors.New("no image url in model response")
)

// Client talks to one configured model backend. Construct it once at startup
// and pass it by injection; there is no package-level client state.
type Client struct {
	backend    config.AIBackend
	httpClient *http.Client
}

// NewClient creates a Client for the given backend.
func NewClient(backend config.AIBackend) *Client {
	return &Client{
		backend: backend,
		// No overall timeout: streaming completions are long-lived.
		httpClient: &http.Client{},
	}
}

// ChatModel returns the configured chat model identifier.
func (c *Client) ChatModel() string {
	return c.backend.ChatModel
}

// ChatMessage is one entry of a completion request. Content is either a
// plain string or, for multimodal entries, a slice of content parts.
type ChatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// Text builds an ordinary text message.
func Text(role, content string) ChatMessage {
	return ChatMessage{Role: role, Content: content}
}

type imageURLPart struct {
	URL string `json:"url"`
}

type contentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *imageURLPart `json:"image_url,omitempty"`
}

// UserImageReference builds a multimodal user message pairing a referenced
// image URL with text, for vision-capable models.
func UserImageReference(url, text string) ChatMessage {
	return ChatMessage{
		Role: "user",
		Content: []contentPart{
			{Type: "image_url", ImageURL: &imageURLPart{URL: url}},
			{Type: "text", Text: text},
		},
	}
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// CreateChatCompletion makes one non-streaming completion call and returns
// the reply content. Returns ErrNoContent when the reply has no usable
// content.
func (c *Client) CreateChatCompletion(ctx context.Context, messages []ChatMessage) (string, error) {
	body, err := c.post(ctx, "/chat/completions", chatCompletionRequest{
		Model:    c.backend.ChatModel,
		Messages: messages,
	})
	if err != nil {
		return "", err
	}
	defer body.Close()

	var resp chatCompletionResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return "", fmt.Errorf("decoding completion response: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrNoContent
	}

	return resp.Choices[0].Message.Content, nil
}

type imageGenerationRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Size   string `json:"size"`
}

type imageGenerationResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

// GenerateImage asks the image model for one image at the fixed target
// resolution and returns the URL of the generated asset. Returns ErrNoImage
// when the reply has no URL.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	body, err := c.post(ctx, "/images/generations", imageGenerationRequest{
		Model:  c.backend.ImageModel,
		Prompt: prompt,
		Size:   "1792x1024",
	})
	if err != nil {
		return "", err
	}
	defer body.Close()

	var resp imageGenerationResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return "", fmt.Errorf("decoding image response: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", ErrNoImage
	}

	return resp.Data[0].URL, nil
}

// post issues one JSON POST against the backend and returns the response
// body. Non-2xx responses are read and surfaced as errors.
func (c *Client) post(ctx context.Context, path string, payload any) (io.ReadCloser, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.backend.BaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.backend.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling model backend: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("model backend returned %s: %s", resp.Status, bytes.TrimSpace(detail))
	}

	return resp.Body, nil
}
