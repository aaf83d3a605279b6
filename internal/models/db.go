package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageRole identifies the author side of a message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// MessageType distinguishes ordinary chat messages from generated images.
type MessageType string

const (
	MessageTypeChat  MessageType = "chat"
	MessageTypeImage MessageType = "image"
)

// User represents a user in the database. Identity may originate from an
// external provider; Sub holds the external subject identifier when it does.
type User struct {
	ID             uuid.UUID `db:"id"`
	Sub            string    `db:"sub"`
	Email          string    `db:"email"`
	Name           string    `db:"name"`
	Picture        string    `db:"picture"`
	HashedPassword string    `db:"hashed_password"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// Chat represents a conversation owned by a single user.
// Summary starts as nil and is filled in by the summarizer.
// LastSummarizedAtMessageCount records the message count at which the summary
// was last regenerated; it never exceeds the chat's current message count.
type Chat struct {
	ID                           uuid.UUID `db:"id"`
	UserID                       uuid.UUID `db:"user_id"`
	Summary                      *string   `db:"summary"`
	LastSummarizedAtMessageCount int       `db:"last_summarized_at_message_count"`
	IsArchived                   bool      `db:"is_archived"`
	CreatedAt                    time.Time `db:"created_at"`
	UpdatedAt                    time.Time `db:"updated_at"`
}

// ImageMeta describes a generated image written to file storage.
// Stored as JSONB on the message row.
type ImageMeta struct {
	Path   string `json:"path"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Message represents a single message in a chat. Messages are immutable once
// created; they are written either directly from a user submission or by the
// server after a generation completes. Image-type messages always carry a
// non-nil Image reference once persisted.
type Message struct {
	ID        uuid.UUID   `db:"id" json:"id"`
	ChatID    uuid.UUID   `db:"chat_id" json:"chat_id"`
	UserID    uuid.UUID   `db:"user_id" json:"user_id"`
	Role      MessageRole `db:"role" json:"role"`
	Type      MessageType `db:"type" json:"type"`
	Content   string      `db:"content" json:"content"`
	Image     *ImageMeta  `db:"image" json:"image,omitempty"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
}
