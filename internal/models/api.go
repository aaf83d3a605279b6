package models

import (
	"time"

	"github.com/google/uuid"
)

// --- Request Structs ---

// SignupRequest defines the expected body for the signup endpoint.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

// LoginRequest defines the expected body for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CreateChatRequest defines the body for creating a new chat. The prompt
// becomes the chat's first user message.
type CreateChatRequest struct {
	Prompt string `json:"prompt"`
}

// StreamMessageRequest defines the body for the streaming messages endpoint.
// When ID is empty, the message has not been persisted yet and the server
// stores it before calling the model.
type StreamMessageRequest struct {
	ID      *uuid.UUID  `json:"id,omitempty"`
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// ClassifyRequest defines the body for the turn classification endpoint.
type ClassifyRequest struct {
	Prompt string `json:"prompt"`
}

// GenerateImageRequest defines the body for the image generation endpoint.
// Input mirrors StreamMessageRequest plus the message type; ReferenceURL
// optionally names an image the user wants the generation to reference.
type GenerateImageRequest struct {
	Input        StreamMessageRequest `json:"input"`
	ReferenceURL string               `json:"reference_url,omitempty"`
}

// --- Response Structs ---

// UserResponse defines the user information returned by the API.
// Avoid returning sensitive info like HashedPassword.
type UserResponse struct {
	ID      uuid.UUID `json:"id"`
	Email   string    `json:"email"`
	Name    string    `json:"name,omitempty"`
	Picture string    `json:"picture,omitempty"`
}

// AuthResponse defines the response body for successful authentication.
type AuthResponse struct {
	AccessToken string       `json:"access_token"`
	User        UserResponse `json:"user"`
}

// ErrorResponse defines the standard structure for API errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CreateChatResponse returns the ID of a freshly created chat.
type CreateChatResponse struct {
	ID uuid.UUID `json:"id"`
}

// ChatSummary is the list-view projection of a chat, including its message
// count (the original home page fetches chats withCounts: ['messages']).
type ChatSummary struct {
	ID            uuid.UUID `json:"id"`
	Summary       *string   `json:"summary"`
	MessagesCount int       `json:"messages_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// ListChatsResponse wraps the chat list endpoint payload.
type ListChatsResponse struct {
	Chats []ChatSummary `json:"chats"`
}

// ChatResponse is the detail view of a chat: the chat row plus its most
// recent messages. Messages are ordered newest-first with a limit; clients
// reverse them for oldest-first display.
type ChatResponse struct {
	ID                           uuid.UUID `json:"id"`
	UserID                       uuid.UUID `json:"user_id"`
	Summary                      *string   `json:"summary"`
	LastSummarizedAtMessageCount int       `json:"last_summarized_at_message_count"`
	IsArchived                   bool      `json:"is_archived"`
	CreatedAt                    time.Time `json:"created_at"`
	Messages                     []Message `json:"messages"`
}

// ClassifyResponse reports the classifier's decision for a turn.
type ClassifyResponse struct {
	Type string `json:"type"` // "chat" or "image"
}

// GenerateImageResponse wraps the persisted image message.
type GenerateImageResponse struct {
	Message Message `json:"message"`
}

// ClientMessage is the transient, UI-only projection of a message used while
// a turn is in flight: it may not be persisted yet (no ID), and the last
// entry of an active transcript may have empty content meaning "response
// pending".
type ClientMessage struct {
	ID        *uuid.UUID  `json:"id,omitempty"`
	Role      MessageRole `json:"role"`
	Type      MessageType `json:"type"`
	Content   string      `json:"content"`
	Image     *ImageMeta  `json:"image,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}
