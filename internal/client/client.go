// Package client is the consumer-side counterpart of the chat API: an HTTP
// client that demuxes relayed completion streams, a transcript state machine
// for in-flight turns, and a collection cache driven by the server's
// X-Changed-Collections invalidation header.
package client

import (
	"bardchat-backend/internal/models"
	"bardchat-backend/internal/stream"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// changedCollectionsHeader mirrors the server's invalidation contract: every
// mutating response names the collections it touched.
const changedCollectionsHeader = "X-Changed-Collections"

// Client talks to a bardchat server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string

	mu    sync.Mutex
	cache map[string]any
}

// New creates a client for the server at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{},
		cache:      make(map[string]any),
	}
}

// SetToken installs the bearer token used on authenticated calls.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Signup registers a new account.
func (c *Client) Signup(ctx context.Context, email, password, name string) (*models.UserResponse, error) {
	var resp models.UserResponse
	err := c.doJSON(ctx, http.MethodPost, "/v1/auth/signup",
		models.SignupRequest{Email: email, Password: password, Name: name}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Login authenticates and installs the returned token on the client.
func (c *Client) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	err := c.doJSON(ctx, http.MethodPost, "/v1/auth/login",
		models.LoginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		return nil, err
	}
	c.token = resp.AccessToken
	return &resp, nil
}

// CreateChat creates a chat seeded with prompt and returns its ID.
func (c *Client) CreateChat(ctx context.Context, prompt string) (uuid.UUID, error) {
	var resp models.CreateChatResponse
	err := c.doJSON(ctx, http.MethodPost, "/v1/chats",
		models.CreateChatRequest{Prompt: prompt}, &resp)
	if err != nil {
		return uuid.Nil, err
	}
	return resp.ID, nil
}

// ListChats returns the user's chats, served from cache until a mutating
// call invalidates the chats collection.
func (c *Client) ListChats(ctx context.Context) (*models.ListChatsResponse, error) {
	if cached, ok := c.cached("chats"); ok {
		return cached.(*models.ListChatsResponse), nil
	}

	var resp models.ListChatsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/chats", nil, &resp); err != nil {
		return nil, err
	}
	c.put("chats", &resp)
	return &resp, nil
}

// GetChat returns a chat with its recent messages, cached per chat under the
// messages collection.
func (c *Client) GetChat(ctx context.Context, chatID uuid.UUID) (*models.ChatResponse, error) {
	key := "messages:" + chatID.String()
	if cached, ok := c.cached(key); ok {
		return cached.(*models.ChatResponse), nil
	}

	var resp models.ChatResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/chats/"+chatID.String(), nil, &resp); err != nil {
		return nil, err
	}
	c.put(key, &resp)
	return &resp, nil
}

// Classify asks the server whether the prompt is a chat or an image turn.
func (c *Client) Classify(ctx context.Context, chatID uuid.UUID, prompt string) (string, error) {
	var resp models.ClassifyResponse
	err := c.doJSON(ctx, http.MethodPost, "/v1/chats/"+chatID.String()+"/classify",
		models.ClassifyRequest{Prompt: prompt}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Type, nil
}

// GenerateImage runs the image path for an already-classified turn and
// returns the persisted image message.
func (c *Client) GenerateImage(ctx context.Context, chatID uuid.UUID, req models.GenerateImageRequest) (*models.Message, error) {
	var resp models.GenerateImageResponse
	err := c.doJSON(ctx, http.MethodPost, "/v1/chats/"+chatID.String()+"/image", req, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.Message, nil
}

// StreamMessage submits a chat turn and consumes the relayed byte stream,
// invoking onDelta for each text fragment as it arrives. It returns the full
// assembled response once the stream ends cleanly.
func (c *Client) StreamMessage(ctx context.Context, chatID uuid.UUID, req models.StreamMessageRequest, onDelta func(string)) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/chats/"+chatID.String()+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.errorFromResponse(resp)
	}
	c.invalidate(resp.Header.Get(changedCollectionsHeader))

	demux := stream.NewDemuxer(onDelta)
	if _, err := io.Copy(demux, resp.Body); err != nil {
		return "", fmt.Errorf("stream read failed: %w", err)
	}
	if err := demux.Close(); err != nil {
		return "", fmt.Errorf("stream decode failed: %w", err)
	}
	return demux.Text(), nil
}

// doJSON performs a request/response call, decoding the JSON reply into out
// when out is non-nil and applying cache invalidation from the response.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.errorFromResponse(resp)
	}
	c.invalidate(resp.Header.Get(changedCollectionsHeader))

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) errorFromResponse(resp *http.Response) error {
	var apiErr models.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&apiErr); err == nil && apiErr.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
	}
	return fmt.Errorf("server returned %d", resp.StatusCode)
}

// --- collection cache ---

func (c *Client) cached(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.cache[key]
	return v, ok
}

func (c *Client) put(key string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[key] = v
}

// invalidate drops cached entries for every collection the server declared
// changed. A "messages" declaration drops all per-chat entries.
func (c *Client) invalidate(header string) {
	if header == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, collection := range strings.Split(header, ",") {
		collection = strings.TrimSpace(collection)
		if collection == "" {
			continue
		}
		delete(c.cache, collection)
		prefix := collection + ":"
		for key := range c.cache {
			if strings.HasPrefix(key, prefix) {
				delete(c.cache, key)
			}
		}
	}
}
