package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"bardchat-backend/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamMessageDemuxesRelayedBytes(t *testing.T) {
	chatID := uuid.New()
	body := `{"id":"chatcmpl-1","choices":[{"delta":{"content":"Hi"}}]}` + "\n" +
		`{"id":"chatcmpl-1","choices":[{"delta":{"content":" there"}}]}` + "\n" +
		`{"id":"chatcmpl-1","choices":[]}` + "\n"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chats/"+chatID.String()+"/messages", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.SetToken("tok")

	var deltas []string
	full, err := c.StreamMessage(context.Background(), chatID,
		models.StreamMessageRequest{Role: models.RoleUser, Content: "Hello"},
		func(d string) { deltas = append(deltas, d) })
	require.NoError(t, err)

	assert.Equal(t, "Hi there", full)
	assert.Equal(t, "Hi there", strings.Join(deltas, ""))
}

func TestStreamMessageServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(models.ErrorResponse{Error: "Chat not found"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.StreamMessage(context.Background(), uuid.New(),
		models.StreamMessageRequest{Role: models.RoleUser, Content: "Hello"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Chat not found")
}

func TestChangedCollectionsInvalidatesCache(t *testing.T) {
	var listCalls atomic.Int32
	chatID := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v1/chats":
			listCalls.Add(1)
			json.NewEncoder(w).Encode(models.ListChatsResponse{})
		case r.Method == http.MethodPost && r.URL.Path == "/v1/chats":
			w.Header().Set("X-Changed-Collections", "chats,messages")
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(models.CreateChatResponse{ID: chatID})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()

	_, err := c.ListChats(ctx)
	require.NoError(t, err)
	_, err = c.ListChats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), listCalls.Load(), "second list is served from cache")

	_, err = c.CreateChat(ctx, "Hello")
	require.NoError(t, err)

	_, err = c.ListChats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), listCalls.Load(), "mutation invalidated the chats collection")
}

func TestGetChatCachedPerChat(t *testing.T) {
	var getCalls atomic.Int32
	chatID := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		getCalls.Add(1)
		json.NewEncoder(w).Encode(models.ChatResponse{ID: chatID})
	}))
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()

	_, err := c.GetChat(ctx, chatID)
	require.NoError(t, err)
	_, err = c.GetChat(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, int32(1), getCalls.Load())

	// An unrelated chat is a cache miss.
	_, err = c.GetChat(ctx, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, int32(2), getCalls.Load())
}

func TestLoginInstallsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/auth/login":
			json.NewEncoder(w).Encode(models.AuthResponse{AccessToken: "tok-123"})
		case "/v1/chats":
			assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
			json.NewEncoder(w).Encode(models.ListChatsResponse{})
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Login(context.Background(), "a@b.com", "pw")
	require.NoError(t, err)
	_, err = c.ListChats(context.Background())
	require.NoError(t, err)
}
