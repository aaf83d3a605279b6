package store

import (
	db_models "bardchat-backend/internal/models"
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a specific record is not found. It is also
// returned when a record exists but is not owned by the requesting user, so
// ownership scoping never leaks existence.
var ErrNotFound = errors.New("record not found")

// CreateChatParams contains parameters for creating a chat.
type CreateChatParams struct {
	ID     uuid.UUID
	UserID uuid.UUID
}

// CreateMessageParams contains parameters for creating a message.
// Type defaults to "chat" when empty. Image must be non-nil for image-type
// messages; implementations reject the combination otherwise.
type CreateMessageParams struct {
	ID      uuid.UUID
	ChatID  uuid.UUID
	UserID  uuid.UUID
	Role    db_models.MessageRole
	Type    db_models.MessageType
	Content string
	Image   *db_models.ImageMeta
}

// MessageHook is a side-effect callback invoked after a message is created.
// Hooks run asynchronously on a context detached from the originating
// request; the summarizer registers itself here.
type MessageHook func(ctx context.Context, msg *db_models.Message)

// ChatWithCount pairs a chat row with its message count for list views.
type ChatWithCount struct {
	Chat          db_models.Chat
	MessagesCount int
}

// Store defines the interface for database operations.
// This allows for mocking in tests and potential DB backend switching.
//
// Every chat- or message-scoped read takes the owning user's ID; lookups are
// only expressible as ID/foreign-key-scoped queries, which is how the
// query-guard policy is enforced at the type level.
type Store interface {
	// User operations
	GetUserByEmail(ctx context.Context, email string) (*db_models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*db_models.User, error)
	CreateUser(ctx context.Context, user *db_models.User) error

	// Chat operations
	CreateChat(ctx context.Context, arg CreateChatParams) (*db_models.Chat, error)
	GetChatByID(ctx context.Context, chatID, userID uuid.UUID) (*db_models.Chat, error)
	ListChatsByUser(ctx context.Context, userID uuid.UUID, limit int) ([]ChatWithCount, error)
	// UpdateChatSummary sets summary and the high-water mark together in a
	// single statement; the two are never updated independently.
	UpdateChatSummary(ctx context.Context, chatID uuid.UUID, summary string, messageCount int) error

	// Message operations
	CreateMessage(ctx context.Context, arg CreateMessageParams) (*db_models.Message, error)
	// ListRecentMessages returns up to limit messages sorted newest-first;
	// a limit <= 0 returns the full history. Callers reverse for
	// oldest-first display.
	ListRecentMessages(ctx context.Context, chatID uuid.UUID, limit int) ([]db_models.Message, error)
	CountMessages(ctx context.Context, chatID uuid.UUID) (int, error)
	// LastMessage returns the most recent message in a chat, or ErrNotFound
	// for an empty chat.
	LastMessage(ctx context.Context, chatID uuid.UUID) (*db_models.Message, error)

	// RegisterMessageAfterCreate registers a hook fired after every
	// successful CreateMessage. Registration is not safe for concurrent use;
	// wire hooks during startup.
	RegisterMessageAfterCreate(hook MessageHook)
}
