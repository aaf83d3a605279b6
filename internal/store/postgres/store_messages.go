package postgres

import (
	db_models "bardchat-backend/internal/models"
	"bardchat-backend/internal/store"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateMessage inserts a message row and fires registered after-create
// hooks. Hooks run asynchronously on a background context so they survive
// the originating request; message rows are immutable once written.
func (s *PostgresStore) CreateMessage(ctx context.Context, arg store.CreateMessageParams) (*db_models.Message, error) {
	if arg.Type == "" {
		arg.Type = db_models.MessageTypeChat
	}
	if arg.Type == db_models.MessageTypeImage && arg.Image == nil {
		return nil, fmt.Errorf("image-type message requires image metadata")
	}

	var imageJSON []byte
	if arg.Image != nil {
		var err error
		imageJSON, err = json.Marshal(arg.Image)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal image metadata: %w", err)
		}
	}

	query := `
		INSERT INTO messages (id, chat_id, user_id, role, type, content, image)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, chat_id, user_id, role, type, content, image, created_at`

	msg := &db_models.Message{}
	var imageOut []byte
	err := s.db.QueryRow(ctx, query,
		arg.ID,
		arg.ChatID,
		arg.UserID,
		arg.Role,
		arg.Type,
		arg.Content,
		imageJSON,
	).Scan(
		&msg.ID,
		&msg.ChatID,
		&msg.UserID,
		&msg.Role,
		&msg.Type,
		&msg.Content,
		&imageOut,
		&msg.CreatedAt,
	)
	if err != nil {
		log.Printf("ERROR [PostgresStore] CreateMessage: Failed to insert message for chat %s: %v", arg.ChatID, err)
		return nil, fmt.Errorf("database error creating message: %w", err)
	}

	if len(imageOut) > 0 {
		meta := &db_models.ImageMeta{}
		if err := json.Unmarshal(imageOut, meta); err != nil {
			return nil, fmt.Errorf("failed to unmarshal image metadata: %w", err)
		}
		msg.Image = meta
	}

	for _, hook := range s.afterCreateMessage {
		h := hook
		go h(context.Background(), msg)
	}

	return msg, nil
}

// ListRecentMessages returns up to limit messages for a chat sorted
// newest-first. A limit <= 0 returns the full history. Display order is
// oldest-first; callers reverse.
func (s *PostgresStore) ListRecentMessages(ctx context.Context, chatID uuid.UUID, limit int) ([]db_models.Message, error) {
	query := `
		SELECT id, chat_id, user_id, role, type, content, image, created_at
		FROM messages
		WHERE chat_id = $1
		ORDER BY created_at DESC`

	args := []any{chatID}
	if limit > 0 {
		query += `
		LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		log.Printf("ERROR [PostgresStore] ListRecentMessages: query failed for chat %s: %v", chatID, err)
		return nil, fmt.Errorf("database error listing messages: %w", err)
	}
	defer rows.Close()

	var messages []db_models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database error iterating messages: %w", err)
	}

	return messages, nil
}

// CountMessages returns the total number of messages in a chat.
func (s *PostgresStore) CountMessages(ctx context.Context, chatID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM messages WHERE chat_id = $1`, chatID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("database error counting messages: %w", err)
	}
	return count, nil
}

// LastMessage returns the most recent message in a chat, or store.ErrNotFound
// for an empty chat.
func (s *PostgresStore) LastMessage(ctx context.Context, chatID uuid.UUID) (*db_models.Message, error) {
	query := `
		SELECT id, chat_id, user_id, role, type, content, image, created_at
		FROM messages
		WHERE chat_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	row := s.db.QueryRow(ctx, query, chatID)
	msg, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return msg, nil
}

// scanMessage scans one message row, decoding the image JSONB column when
// present.
func scanMessage(row pgx.Row) (*db_models.Message, error) {
	msg := &db_models.Message{}
	var imageJSON []byte
	err := row.Scan(
		&msg.ID,
		&msg.ChatID,
		&msg.UserID,
		&msg.Role,
		&msg.Type,
		&msg.Content,
		&imageJSON,
		&msg.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, fmt.Errorf("database error scanning message row: %w", err)
	}

	if len(imageJSON) > 0 {
		meta := &db_models.ImageMeta{}
		if err := json.Unmarshal(imageJSON, meta); err != nil {
			return nil, fmt.Errorf("failed to unmarshal image metadata: %w", err)
		}
		msg.Image = meta
	}

	return msg, nil
}
